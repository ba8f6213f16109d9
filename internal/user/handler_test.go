package user

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"

	"collegovibe/internal/common"
	"collegovibe/internal/dbmongo"
	"collegovibe/internal/memstore"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(common.HTTPAuth(testIssuer(), "/register", "/login"))
	h.RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestHandler_RegisterMapsErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", common.Validationf("invalid handle"), http.StatusBadRequest},
		{"conflict", common.Conflictf("handle taken"), http.StatusConflict},
		{"store down", common.Transient("insert", assert.AnError), http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := NewMockUserService(ctrl)
			svc.EXPECT().RegisterUser(gomock.Any(), "alice", "Alice", "a@x.com", "pwgood1").Return(nil, "", tc.err)

			rec, env := do(t, newRouter(NewHandler(svc, nil, nil, zerolog.Nop())), http.MethodPost, "/register", "",
				registerRequest{Username: "alice", Name: "Alice", Email: "a@x.com", Password: "pwgood1"})
			assert.Equal(t, tc.status, rec.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestHandler_RegisterSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := NewMockUserService(ctrl)
	id := primitive.NewObjectID()
	svc.EXPECT().RegisterUser(gomock.Any(), "alice", "", "", "pwgood1").
		Return(&dbmongo.User{ID: id, Username: "alice"}, "tok", nil)

	rec, env := do(t, newRouter(NewHandler(svc, nil, nil, zerolog.Nop())), http.MethodPost, "/register", "",
		registerRequest{Username: "alice", Password: "pwgood1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp authResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "tok", resp.Token)
	assert.Equal(t, "alice", resp.User.Username)
}

func TestHandler_ProtectedRoutesNeedToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := NewMockUserService(ctrl)
	r := newRouter(NewHandler(svc, nil, nil, zerolog.Nop()))

	rec, _ := do(t, r, http.MethodGet, "/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, r, http.MethodPost, "/follow/"+primitive.NewObjectID().Hex(), "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_FollowFlowAndProfile(t *testing.T) {
	store := memstore.New("http://media.test")
	svc := NewUserService(store, testIssuer(), clockwork.NewRealClock(), zerolog.Nop())
	r := newRouter(NewHandler(svc, store, store, zerolog.Nop()))

	_, env := do(t, r, http.MethodPost, "/register", "", registerRequest{Username: "alice", Password: "Password123"})
	var alice authResponse
	require.NoError(t, json.Unmarshal(env.Data, &alice))

	_, env = do(t, r, http.MethodPost, "/register", "", registerRequest{Username: "bob", Password: "Password123"})
	var bob authResponse
	require.NoError(t, json.Unmarshal(env.Data, &bob))

	rec, env := do(t, r, http.MethodPost, "/follow/"+bob.User.ID.Hex(), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"following":true}`, string(env.Data))

	rec, env = do(t, r, http.MethodGet, "/profile/"+bob.User.ID.Hex(), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile profileResponse
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, []primitive.ObjectID{alice.User.ID}, profile.User.Followers)
	require.NotNil(t, profile.Following)
	assert.True(t, *profile.Following)
	assert.Empty(t, profile.Posts)

	rec, _ = do(t, r, http.MethodPost, "/follow/"+alice.User.ID.Hex(), alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, r, http.MethodPost, "/follow/nope", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, r, http.MethodGet, "/profile/"+primitive.NewObjectID().Hex(), alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_LoginAndSearch(t *testing.T) {
	store := memstore.New("http://media.test")
	svc := NewUserService(store, testIssuer(), clockwork.NewRealClock(), zerolog.Nop())
	r := newRouter(NewHandler(svc, store, store, zerolog.Nop()))

	for _, h := range []string{"bob", "bobby", "carol"} {
		rec, _ := do(t, r, http.MethodPost, "/register", "", registerRequest{Username: h, Password: "Password123"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, _ := do(t, r, http.MethodPost, "/login", "", loginRequest{Username: "bob", Password: "wrong-pass"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := do(t, r, http.MethodPost, "/login", "", loginRequest{Username: "bob", Password: "Password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var auth authResponse
	require.NoError(t, json.Unmarshal(env.Data, &auth))

	rec, env = do(t, r, http.MethodGet, "/search/bob", auth.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []*dbmongo.User
	require.NoError(t, json.Unmarshal(env.Data, &found))
	require.Len(t, found, 2)
	assert.Equal(t, "bob", found[0].Username)
	assert.Equal(t, "bobby", found[1].Username)
}

func TestHandler_UploadProfileImage(t *testing.T) {
	store := memstore.New("http://media.test/media")
	svc := NewUserService(store, testIssuer(), clockwork.NewRealClock(), zerolog.Nop())
	r := newRouter(NewHandler(svc, store, store, zerolog.Nop()))

	_, env := do(t, r, http.MethodPost, "/register", "", registerRequest{Username: "alice", Password: "Password123"})
	var alice authResponse
	require.NoError(t, json.Unmarshal(env.Data, &alice))

	upload := func(contentType string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="image"; filename="me.png"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, _ = part.Write([]byte("not really a png"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/profile/image", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+alice.Token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("video/mp4")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, store.MediaCount())

	rec = upload("image/png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.MediaCount())

	u, err := store.GetUserByHandle(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.ProfileImage, "http://media.test/media/"))
}
