package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"yomiage-bot/backend/internal/dictionary"
	"yomiage-bot/backend/internal/preferences"
	"yomiage-bot/backend/internal/state"
	"yomiage-bot/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type voiceSet []string

func (v voiceSet) HasVoice(voice string) bool {
	for _, known := range v {
		if known == voice {
			return true
		}
	}
	return false
}

// fakeAdmin serves sessions from a fixed list and delegates the rest to real stores
type fakeAdmin struct {
	*dictionary.Dictionary
	prefs    *preferences.Store
	voices   voiceSet
	sessions []state.SessionSnapshot
	left     []string
}

func (f *fakeAdmin) Sessions() []state.SessionSnapshot { return f.sessions }

func (f *fakeAdmin) Leave(guildID string) error {
	f.left = append(f.left, guildID)
	return nil
}

func (f *fakeAdmin) DictionaryEntries(ctx context.Context, limit, offset int) ([]state.PronunciationEntry, error) {
	return f.List(ctx, limit, offset)
}

func (f *fakeAdmin) AddDictionaryEntry(ctx context.Context, word, reading string) (state.PronunciationEntry, error) {
	return f.Add(ctx, word, reading)
}

func (f *fakeAdmin) RemoveDictionaryEntry(ctx context.Context, word string) error {
	return f.Remove(ctx, word)
}

func (f *fakeAdmin) Voices() []string { return f.voices }

func (f *fakeAdmin) VoicePreference(ctx context.Context, userID string) string {
	return f.prefs.Resolve(ctx, userID)
}

func (f *fakeAdmin) SetVoicePreference(ctx context.Context, userID, voice string) error {
	return f.prefs.Set(ctx, userID, voice)
}

func (f *fakeAdmin) ClearVoicePreference(ctx context.Context, userID string) error {
	return f.prefs.Clear(ctx, userID)
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeAdmin) {
	return newTestRouterWithToken(t, "")
}

func newTestRouterWithToken(t *testing.T, token string) (*gin.Engine, *fakeAdmin) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := storage.NewMemory()
	voices := voiceSet{"alloy", "nova"}
	admin := &fakeAdmin{
		Dictionary: dictionary.New(backend.Bucket(storage.BucketDictionary), nil),
		prefs:      preferences.New(backend.Bucket(storage.BucketVoicePreferences), voices, "alloy", nil),
		voices:     voices,
		sessions: []state.SessionSnapshot{
			{GuildID: "1", VoiceChannelID: "10", SourceChannelID: "5", State: state.SessionIdle},
		},
	}
	return NewRouter(admin, token, nil), admin
}

func do(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &response)
	return w, response
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w, response := do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, float64(1), response["sessions"])
}

func TestSessionsEndpoints(t *testing.T) {
	router, admin := newTestRouter(t)

	w, response := do(t, router, http.MethodGet, "/api/sessions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	sessions, ok := response["sessions"].([]interface{})
	require.True(t, ok)
	require.Len(t, sessions, 1)
	assert.Equal(t, "idle", sessions[0].(map[string]interface{})["state"])

	w, _ = do(t, router, http.MethodDelete, "/api/sessions/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"1"}, admin.left)
}

func TestDictionaryEndpoints(t *testing.T) {
	router, admin := newTestRouter(t)

	w, response := do(t, router, http.MethodPut, "/api/dictionary/草", `{"reading":"くさ"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "くさ", response["reading"])
	got, ok := admin.Get("草")
	require.True(t, ok)
	assert.Equal(t, "くさ", got)

	w, _ = do(t, router, http.MethodPut, "/api/dictionary/草", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, http.MethodPut, "/api/dictionary/草", `{"reading":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, response = do(t, router, http.MethodGet, "/api/dictionary?limit=10&offset=0", "")
	assert.Equal(t, http.StatusOK, w.Code)
	entries, ok := response["entries"].([]interface{})
	require.True(t, ok)
	assert.Len(t, entries, 1)

	w, _ = do(t, router, http.MethodDelete, "/api/dictionary/草", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, http.MethodDelete, "/api/dictionary/草", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, response = do(t, router, http.MethodGet, "/api/dictionary", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, response["entries"])
	assert.Equal(t, float64(defaultListLimit), response["limit"])
}

func TestVoiceEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	w, response := do(t, router, http.MethodGet, "/api/voices", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"alloy", "nova"}, response["voices"])

	w, _ = do(t, router, http.MethodPut, "/api/users/9/voice", `{"voice":"robot"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, http.MethodPut, "/api/users/9/voice", `{"voice":"nova"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	_, response = do(t, router, http.MethodGet, "/api/users/9/voice", "")
	assert.Equal(t, "nova", response["voice"])

	w, response = do(t, router, http.MethodDelete, "/api/users/9/voice", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alloy", response["voice"])
}

func TestAdminToken(t *testing.T) {
	router, admin := newTestRouterWithToken(t, "s3cret")

	w, _ := do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, http.MethodDelete, "/api/sessions/1", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, admin.left)

	for _, header := range []string{"s3cret", "Bearer wrong", "Bearer s3cret2"} {
		req, err := http.NewRequest(http.MethodGet, "/api/sessions", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", header)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}

	req, err := http.NewRequest(http.MethodDelete, "/api/sessions/1", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"1"}, admin.left)
}
