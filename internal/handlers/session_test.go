package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/lingua-quest/pkg/chat"
	"github.com/jwebster45206/lingua-quest/pkg/contract"
	"github.com/jwebster45206/lingua-quest/pkg/state"
	"github.com/jwebster45206/lingua-quest/pkg/storage"
)

type sessionBody struct {
	state.GameState
	GameOver bool              `json:"game_over"`
	Last     *contract.Display `json:"last"`
}

func newSessionHandler(store storage.Storage) *SessionHandler {
	return NewSessionHandler(store, contract.VersionEvaluator, state.Seed{TargetLanguage: "Spanish"}, testLogger())
}

func decodeSession(t *testing.T, rr *httptest.ResponseRecorder) sessionBody {
	t.Helper()
	var body sessionBody
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body), rr.Body.String())
	return body
}

func TestSessionHandler_Create(t *testing.T) {
	tests := []struct {
		name             string
		body             string
		expectedStatus   int
		expectedContract string
		expectedLang     string
		expectedLocation string
	}{
		{
			name:             "empty body uses server defaults",
			body:             "",
			expectedStatus:   http.StatusCreated,
			expectedContract: contract.VersionEvaluator,
			expectedLang:     "Spanish",
			expectedLocation: state.DefaultLocation,
		},
		{
			name:             "request overrides seed and contract",
			body:             `{"contract":"scene.v1","target_language":"French","location":"Gare du Nord"}`,
			expectedStatus:   http.StatusCreated,
			expectedContract: contract.VersionScene,
			expectedLang:     "French",
			expectedLocation: "Gare du Nord",
		},
		{
			name:           "unknown contract",
			body:           `{"contract":"scene.v9"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			body:           `{"contract":`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStorage()
			handler := newSessionHandler(store)

			req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			require.Equal(t, tt.expectedStatus, rr.Code, rr.Body.String())
			if tt.expectedStatus != http.StatusCreated {
				assert.Equal(t, 0, store.Count())
				return
			}

			body := decodeSession(t, rr)
			assert.NotEqual(t, uuid.Nil, body.ID)
			assert.Equal(t, tt.expectedContract, body.Contract)
			assert.Equal(t, tt.expectedLang, body.TargetLanguage)
			assert.Equal(t, tt.expectedLocation, body.Location)
			assert.Empty(t, body.ChatHistory)
			assert.False(t, body.GameOver)
			assert.Equal(t, 1, store.Count())
		})
	}
}

func TestSessionHandler_Read(t *testing.T) {
	store := storage.NewMemoryStorage()
	handler := newSessionHandler(store)

	gs := state.NewGameState(state.Seed{}, contract.VersionEvaluator)
	gs.Health = 0
	gs.AppendHistory(chat.ChatMessage{
		Role:    chat.ChatRoleNarrator,
		Content: `{"internalEvaluation":"Good.","npcDialogue":"Cheers!","sceneDescription":"A pub.","stateChange":{}}`,
	})
	require.NoError(t, store.SaveGameState(context.Background(), gs.ID, gs))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+gs.ID.String(), nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeSession(t, rr)
	assert.Equal(t, gs.ID, body.ID)
	assert.True(t, body.GameOver)
	require.NotNil(t, body.Last)
	assert.Equal(t, "Cheers!", body.Last.Dialogue)
	assert.Equal(t, "Good.", body.Last.Feedback)
}

func TestSessionHandler_Errors(t *testing.T) {
	handler := newSessionHandler(storage.NewMemoryStorage())

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"read missing", http.MethodGet, "/v1/sessions/" + uuid.New().String(), http.StatusNotFound},
		{"read without id", http.MethodGet, "/v1/sessions", http.StatusBadRequest},
		{"bad id", http.MethodGet, "/v1/sessions/abc", http.StatusBadRequest},
		{"delete missing", http.MethodDelete, "/v1/sessions/" + uuid.New().String(), http.StatusNotFound},
		{"delete without id", http.MethodDelete, "/v1/sessions", http.StatusBadRequest},
		{"post to item", http.MethodPost, "/v1/sessions/" + uuid.New().String(), http.StatusMethodNotAllowed},
		{"patch", http.MethodPatch, "/v1/sessions", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.expectedStatus, rr.Code)

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
			assert.NotEmpty(t, response.Error)
		})
	}
}

func TestSessionHandler_Delete(t *testing.T) {
	store := storage.NewMemoryStorage()
	handler := newSessionHandler(store)

	gs := state.NewGameState(state.Seed{}, contract.VersionEvaluator)
	require.NoError(t, store.SaveGameState(context.Background(), gs.ID, gs))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+gs.ID.String(), nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 0, store.Count())
}

func TestMergeSeed(t *testing.T) {
	health := 50
	base := state.Seed{TargetLanguage: "Spanish", Location: "Madrid"}
	merged := mergeSeed(base, state.Seed{Location: "Seville", Health: &health, Inventory: []string{}})

	assert.Equal(t, "Spanish", merged.TargetLanguage)
	assert.Equal(t, "Seville", merged.Location)
	assert.Equal(t, 50, *merged.Health)
	assert.NotNil(t, merged.Inventory)
	assert.Equal(t, "Madrid", base.Location, "base must not change")
}
