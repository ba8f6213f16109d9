package di

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collegovibe/internal/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{MediaBaseURL: "http://media.test/media"},
		Auth:    config.AuthConfig{JWTSecret: "di-secret", TokenTTL: time.Hour},
		Story:   config.StoryConfig{Lifetime: 24 * time.Hour},
		Worker:  config.WorkerConfig{Workers: 2, BufferSize: 16},
		Logging: config.LoggingConfig{Level: "error"},
		Store:   config.StoreConfig{Backend: "memory"},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, h http.Handler, method, path, token, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec.Code, env
}

func register(t *testing.T, h http.Handler, handle string) string {
	t.Helper()
	code, env := do(t, h, http.MethodPost, "/api/v1/register", "",
		`{"username":"`+handle+`","name":"`+handle+`","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, code)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func TestInitializeApplication_MemoryBackend(t *testing.T) {
	app, cleanup, err := InitializeApplication(memoryConfig())
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, app.Stores.Mongo)
	assert.Nil(t, app.Stores.MySQL)
	require.NotNil(t, app.Router)
	require.NotNil(t, app.GRPC)
	assert.Contains(t, app.GRPC.GetServiceInfo(), "collegovibe.chat.v1.ChatRelay")
}

func TestInitializeApplication_ServesAPI(t *testing.T) {
	app, cleanup, err := InitializeApplication(memoryConfig())
	require.NoError(t, err)
	defer cleanup()
	h := app.Router

	code, _ := do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, h, http.MethodGet, "/api/v1/feed", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	alice := register(t, h, "alice")
	bob := register(t, h, "bob")

	code, _ = do(t, h, http.MethodGet, "/api/v1/feed", alice, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, h, http.MethodPost, "/api/v1/messages/bob", alice, `{"text":"see you at the library"}`)
	require.Equal(t, http.StatusCreated, code)

	code, env := do(t, h, http.MethodGet, "/api/v1/messages/alice", bob, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "see you at the library")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "collegovibe_relay_messages_persisted_total 1"))
}
