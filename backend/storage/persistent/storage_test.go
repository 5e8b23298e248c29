package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jghoshh/arise/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test variables
var (
	testEmail1 = "hunter1@example.com"
	testName1  = "Hunter One"

	testEmail2 = "hunter2@example.com"
	testName2  = "Hunter Two"
)

func newTestStore(t *testing.T) StorageInterface {
	t.Helper()
	store := NewMemoryStorage()

	_, err := store.AddUser(context.Background(), models.DefaultUser(testEmail1, testName1))
	require.NoError(t, err)

	return store
}

func TestAddUser(t *testing.T) {
	store := newTestStore(t)

	added, err := store.AddUser(context.Background(), models.DefaultUser(testEmail2, testName2))
	require.NoError(t, err)
	assert.Equal(t, testEmail2, added.Email)

	count, err := store.UserCount(context.Background(), testEmail2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAddUserDuplicateEmail(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AddUser(context.Background(), models.DefaultUser(testEmail1, "Impostor"))
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestFindUser(t *testing.T) {
	store := newTestStore(t)

	found, err := store.FindUser(context.Background(), testEmail1)
	require.NoError(t, err)
	assert.Equal(t, testName1, found.Name)
	assert.Equal(t, models.DefaultStats(), found.Stats)
	require.Len(t, found.Quests, 1)
	assert.Equal(t, "daily", found.Quests[0].ID)
}

func TestFindUserAbsent(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FindUser(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestUpdateQuests(t *testing.T) {
	store := newTestStore(t)

	quests := []models.Quest{
		{ID: "custom", Title: "CUSTOM QUEST", Tasks: []models.QuestTask{
			{ID: "meditate", Name: "MEDITATE", Goal: 20, Current: 0, Unit: "MIN"},
		}},
	}

	err := store.UpdateQuests(context.Background(), testEmail1, quests)
	require.NoError(t, err)

	found, err := store.FindUser(context.Background(), testEmail1)
	require.NoError(t, err)
	assert.Equal(t, quests, found.Quests)
}

func TestUpdateQuestsAbsentUser(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateQuests(context.Background(), "nobody@example.com", nil)
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestUpdateProgressWritesBothFields(t *testing.T) {
	store := newTestStore(t)

	quests := []models.Quest{{ID: "daily", Title: "DAILY", IsCompleted: false}}
	stats := models.DefaultStats()
	stats.Exp = 50

	err := store.UpdateProgress(context.Background(), testEmail1, quests, stats)
	require.NoError(t, err)

	found, err := store.FindUser(context.Background(), testEmail1)
	require.NoError(t, err)
	assert.Equal(t, quests, found.Quests)
	assert.Equal(t, stats, found.Stats)
}

func TestStoredQuestsAreNotAliased(t *testing.T) {
	store := newTestStore(t)

	quests := []models.Quest{
		{ID: "q", Tasks: []models.QuestTask{{ID: "t", Goal: 10, Current: 1}}},
	}
	require.NoError(t, store.UpdateQuests(context.Background(), testEmail1, quests))

	// Mutating the caller's slice after the write must not leak into storage.
	quests[0].Tasks[0].Current = 999

	found, err := store.FindUser(context.Background(), testEmail1)
	require.NoError(t, err)
	assert.Equal(t, float64(1), found.Quests[0].Tasks[0].Current)
}

func TestDeleteUser(t *testing.T) {
	store := newTestStore(t)

	result, err := store.DeleteUser(context.Background(), testEmail1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.DeletedCount)

	_, err = store.FindUser(context.Background(), testEmail1)
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	store := newTestStore(t)

	record := &models.RefreshToken{
		Email:  testEmail1,
		Token:  "some-refresh-token",
		Expiry: time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, store.AddRefreshToken(context.Background(), record))

	found, err := store.FindRefreshToken(context.Background(), "some-refresh-token")
	require.NoError(t, err)
	assert.Equal(t, testEmail1, found.Email)

	require.NoError(t, store.DeleteRefreshToken(context.Background(), "some-refresh-token"))
	_, err = store.FindRefreshToken(context.Background(), "some-refresh-token")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestDeleteUserRemovesRefreshTokens(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AddRefreshToken(context.Background(), &models.RefreshToken{
		Email:  testEmail1,
		Token:  "token-to-reap",
		Expiry: time.Now().Add(30 * time.Minute),
	}))

	_, err := store.DeleteUser(context.Background(), testEmail1)
	require.NoError(t, err)

	_, err = store.FindRefreshToken(context.Background(), "token-to-reap")
	assert.ErrorIs(t, err, ErrNoToken)
}
