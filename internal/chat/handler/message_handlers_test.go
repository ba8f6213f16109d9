package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"collegovibe/internal/common"
	"collegovibe/internal/dbmongo"
	"collegovibe/internal/dbmysql"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *chatEnv) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(common.HTTPAuth(issuer))
	NewMessageHandlers(e.relay, e.store).RegisterRoutes(r)
	return r
}

func call(t *testing.T, r http.Handler, method, path string, as *dbmongo.User, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	tok, err := issuer.GenerateToken(as.ID.Hex(), as.Username)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestMessageHandlers_SendThenHistory(t *testing.T) {
	env := newChatEnv(t)
	r := env.router()

	rec, _ := call(t, r, http.MethodPost, "/messages/bob", env.alice, `{"text":"hi bob"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = call(t, r, http.MethodPost, "/messages/alice", env.bob, `{"text":"hi alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := call(t, r, http.MethodGet, "/messages/alice", env.bob, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []dbmysql.Message
	require.NoError(t, json.Unmarshal(body.Data, &history))
	require.Len(t, history, 2)
	assert.Equal(t, "hi bob", history[0].Text)
	assert.Equal(t, "bob", history[1].Sender)
}

func TestMessageHandlers_Errors(t *testing.T) {
	env := newChatEnv(t)
	r := env.router()

	rec, _ := call(t, r, http.MethodPost, "/messages/ghost", env.alice, `{"text":"boo"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = call(t, r, http.MethodPost, "/messages/bob", env.alice, `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = call(t, r, http.MethodPost, "/messages/bob", env.alice, `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stranger := &dbmongo.User{ID: primitive.NewObjectID(), Username: "stranger"}
	rec, _ = call(t, r, http.MethodGet, "/messages/bob", stranger, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
