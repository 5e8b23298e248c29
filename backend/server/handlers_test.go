package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jghoshh/arise/backend/models"
	authservice "github.com/jghoshh/arise/backend/server/auth"
	"github.com/jghoshh/arise/backend/store"
	cache "github.com/jghoshh/arise/backend/storage/cache"
	storage "github.com/jghoshh/arise/backend/storage/persistent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "test-signing-key"

var (
	testEmail    = "hunter@example.com"
	testName     = "Hunter"
	testPassword = "Train1234"
)

// newTestServer builds a full server over the memory backend with one signed
// up user and returns the router plus a valid bearer token for that user.
func newTestServer(t *testing.T) (http.Handler, storage.StorageInterface, string) {
	t.Helper()

	backend := storage.NewMemoryStorage()
	auth := authservice.NewAuth(backend, testSigningKey)
	st := store.NewStore(backend, cache.NewNoopCache())
	srv := NewServer(st, auth, nil, testSigningKey)

	_, err := auth.SignUp(context.Background(), testEmail, testName, testPassword)
	require.NoError(t, err)

	token, err := auth.CreateAuthToken(testEmail)
	require.NoError(t, err)

	return srv.Router(), backend, token
}

// doJSON performs a request with an optional bearer token and JSON body,
// returning the response recorder and the decoded body.
func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	decoded := map[string]interface{}{}
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func completeBody(questID, taskID string, progress float64) map[string]interface{} {
	return map[string]interface{}{
		"questId":  questID,
		"taskId":   taskID,
		"progress": progress,
	}
}

func seedNearCompleteQuest(t *testing.T, backend storage.StorageInterface) {
	t.Helper()
	err := backend.UpdateQuests(context.Background(), testEmail, []models.Quest{
		{
			ID:    "daily",
			Title: "DAILY TRAINING",
			Tasks: []models.QuestTask{
				{ID: "push-ups", Name: "PUSH-UPS", Goal: 10, Current: 9},
			},
		},
	})
	require.NoError(t, err)
}

func TestCompleteTaskUnauthorized(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/quests/complete", "", completeBody("daily", "push-ups", 10))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", body["error"])
}

func TestCompleteTaskRejectsGarbageToken(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/quests/complete", "not.a.jwt", completeBody("daily", "push-ups", 10))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCompleteTaskMissingTaskID(t *testing.T) {
	router, _, token := newTestServer(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/quests/complete", token, map[string]interface{}{
		"questId":  "daily",
		"progress": 10,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid data", body["error"])
}

func TestCompleteTaskMissingProgress(t *testing.T) {
	router, _, token := newTestServer(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/quests/complete", token, map[string]interface{}{
		"questId": "daily",
		"taskId":  "push-ups",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteTaskZeroProgressIsValid(t *testing.T) {
	// Zero is a legitimate progress value, only a missing field is invalid.
	router, _, token := newTestServer(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/quests/complete", token, completeBody("daily", "push-ups", 0))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
}

func TestCompleteTaskUpdatesProgress(t *testing.T) {
	router, backend, token := newTestServer(t)
	seedNearCompleteQuest(t, backend)

	rec, body := doJSON(t, router, http.MethodPost, "/api/quests/complete", token, completeBody("daily", "push-ups", 5))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	user, err := backend.FindUser(context.Background(), testEmail)
	require.NoError(t, err)
	assert.Equal(t, float64(5), user.Quests[0].Tasks[0].Current)
	assert.False(t, user.Quests[0].IsCompleted)
	assert.Equal(t, 0, user.Stats.Exp)
}

func TestCompleteTaskCompletionRewardsOnce(t *testing.T) {
	router, backend, token := newTestServer(t)
	seedNearCompleteQuest(t, backend)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/quests/complete", token, completeBody("daily", "push-ups", 10))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Replaying the completion must not grant experience again.
	rec, _ = doJSON(t, router, http.MethodPost, "/api/quests/complete", token, completeBody("daily", "push-ups", 10))
	assert.Equal(t, http.StatusOK, rec.Code)

	user, err := backend.FindUser(context.Background(), testEmail)
	require.NoError(t, err)
	assert.True(t, user.Quests[0].IsCompleted)
	assert.Equal(t, 50, user.Stats.Exp)
	assert.Equal(t, 1, user.Stats.Level)
}

func TestCompleteTaskIgnoresClientCompletionClaim(t *testing.T) {
	router, backend, token := newTestServer(t)
	seedNearCompleteQuest(t, backend)

	// The quest is not actually complete at progress 5, whatever the client says.
	req := completeBody("daily", "push-ups", 5)
	req["isCompleted"] = true

	rec, _ := doJSON(t, router, http.MethodPost, "/api/quests/complete", token, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	user, err := backend.FindUser(context.Background(), testEmail)
	require.NoError(t, err)
	assert.False(t, user.Quests[0].IsCompleted)
	assert.Equal(t, 0, user.Stats.Exp)
}

func TestCompleteTaskAppliesStatUpdates(t *testing.T) {
	router, backend, token := newTestServer(t)
	seedNearCompleteQuest(t, backend)

	req := completeBody("daily", "push-ups", 10)
	req["statUpdates"] = map[string]interface{}{"str": 11, "fatigue": 20}

	rec, _ := doJSON(t, router, http.MethodPost, "/api/quests/complete", token, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	user, err := backend.FindUser(context.Background(), testEmail)
	require.NoError(t, err)
	assert.Equal(t, 11, user.Stats.Str)
	assert.Equal(t, 20, user.Stats.Fatigue)
	assert.Equal(t, 50, user.Stats.Exp)
}

func TestCompleteTaskUnknownQuestSucceedsUnchanged(t *testing.T) {
	router, backend, token := newTestServer(t)
	seedNearCompleteQuest(t, backend)

	before, err := backend.FindUser(context.Background(), testEmail)
	require.NoError(t, err)

	rec, body := doJSON(t, router, http.MethodPost, "/api/quests/complete", token, completeBody("no-such-quest", "push-ups", 10))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	after, err := backend.FindUser(context.Background(), testEmail)
	require.NoError(t, err)
	assert.Equal(t, before.Quests, after.Quests)
}

func TestCompleteTaskNoDocument(t *testing.T) {
	router, _, _ := newTestServer(t)

	// A valid session for a user whose document was never created.
	backendless := authservice.NewAuth(storage.NewMemoryStorage(), testSigningKey)
	token, err := backendless.CreateAuthToken("ghost@example.com")
	require.NoError(t, err)

	rec, body := doJSON(t, router, http.MethodPost, "/api/quests/complete", token, completeBody("daily", "push-ups", 10))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", body["error"])
}

func TestUpdateQuestsUnauthorized(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/quests/update", "", map[string]interface{}{"quests": []models.Quest{}})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateQuestsMissingField(t *testing.T) {
	router, _, token := newTestServer(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/quests/update", token, map[string]interface{}{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid data", body["error"])
}

func TestUpdateQuestsReplacesWholesale(t *testing.T) {
	router, backend, token := newTestServer(t)

	quests := []models.Quest{
		{
			ID:    "custom",
			Title: "CUSTOM TRAINING",
			Tasks: []models.QuestTask{
				{ID: "meditate", Name: "MEDITATE", Goal: 20, Unit: "MIN"},
			},
			IsCompleted: true, // client claim, recomputed away
		},
	}

	rec, body := doJSON(t, router, http.MethodPost, "/api/quests/update", token, map[string]interface{}{"quests": quests})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	user, err := backend.FindUser(context.Background(), testEmail)
	require.NoError(t, err)
	require.Len(t, user.Quests, 1)
	assert.Equal(t, "custom", user.Quests[0].ID)
	assert.False(t, user.Quests[0].IsCompleted)
}

func TestGetStats(t *testing.T) {
	router, _, token := newTestServer(t)

	rec, body := doJSON(t, router, http.MethodGet, "/api/user/stats", token, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["level"])
	assert.Equal(t, float64(100), body["expToNextLevel"])
}

func TestGetQuestsDefaultsForUnknownUser(t *testing.T) {
	router, _, _ := newTestServer(t)

	// Reads never fail: a session without a document sees the defaults.
	backendless := authservice.NewAuth(storage.NewMemoryStorage(), testSigningKey)
	token, err := backendless.CreateAuthToken("ghost@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/user/quests", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var quests []models.Quest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quests))
	require.Len(t, quests, 1)
	assert.Equal(t, "daily", quests[0].ID)
}

func TestSignUpSignInRoundTrip(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    "newcomer@example.com",
		"name":     "Newcomer",
		"password": "Sweat1234",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["refreshToken"])

	rec, body = doJSON(t, router, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    "newcomer@example.com",
		"password": "Sweat1234",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// The issued token opens the authenticated routes.
	token, _ := body["token"].(string)
	rec, _ = doJSON(t, router, http.MethodGet, "/api/user/stats", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignInWrongPassword(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    testEmail,
		"password": "Wrong9999",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", body["error"])
}

func TestRefreshRotation(t *testing.T) {
	router, _, _ := newTestServer(t)

	_, body := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    "rotator@example.com",
		"name":     "Rotator",
		"password": "Spin1234",
	})
	refresh, _ := body["refreshToken"].(string)
	require.NotEmpty(t, refresh)

	rec, renewed := doJSON(t, router, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, refresh, renewed["refreshToken"])

	// The consumed token is gone.
	rec, _ = doJSON(t, router, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	router, _, token := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/quests/complete", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenarioCompleteFinalTaskLevelsQuest(t *testing.T) {
	// A daily quest with one task at 9/10; posting 10 completes the quest
	// and banks the 50 exp reward.
	router, backend, token := newTestServer(t)
	seedNearCompleteQuest(t, backend)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/quests/complete", token,
		completeBody("daily", "push-ups", 10))
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := backend.FindUser(context.Background(), testEmail)
	require.NoError(t, err)
	assert.Equal(t, float64(10), user.Quests[0].Tasks[0].Current)
	assert.True(t, user.Quests[0].IsCompleted)
	assert.Equal(t, 50, user.Stats.Exp)
}
