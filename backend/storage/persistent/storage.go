package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jghoshh/arise/backend/models"
)

// ErrNoUser is returned by FindUser when no document exists for the given
// email, regardless of which backend is in use.
var ErrNoUser = errors.New("user not found")

// ErrNoToken is returned by FindRefreshToken when the token is unknown.
var ErrNoToken = errors.New("refresh token not found")

// ErrUserExists is returned by AddUser when a document already exists for
// the email.
var ErrUserExists = errors.New("user already exists")

// DeleteResult represents the result of a deletion operation,
// specifically the count of documents deleted.
type DeleteResult struct {
	DeletedCount int64
}

// StorageInterface defines the set of methods that any persistent storage
// backend needs to implement. Users are keyed by email.
type StorageInterface interface {
	// Establishes a connection to the storage backend.
	Connect(dbName, uri string) error
	// Disconnects from the storage backend.
	Disconnect() error
	// Adds a new user document to the storage backend.
	AddUser(ctx context.Context, user *models.User) (*models.User, error)
	// Finds a user document by email. Returns ErrNoUser when absent.
	FindUser(ctx context.Context, email string) (*models.User, error)
	// Returns the count of user documents with the given email (0 or 1).
	UserCount(ctx context.Context, email string) (int64, error)
	// Replaces the quests field of a user document wholesale.
	UpdateQuests(ctx context.Context, email string, quests []models.Quest) error
	// Replaces the stats field of a user document wholesale.
	UpdateStats(ctx context.Context, email string, stats models.UserStats) error
	// Replaces the quests and stats fields in a single write, so a quest
	// completion can never be persisted without its reward.
	UpdateProgress(ctx context.Context, email string, quests []models.Quest, stats models.UserStats) error
	// Deletes a user document and its refresh tokens.
	DeleteUser(ctx context.Context, email string) (*DeleteResult, error)
	// Adds a refresh token record.
	AddRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// Finds a refresh token record. Returns ErrNoToken when absent.
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	// Deletes a refresh token record.
	DeleteRefreshToken(ctx context.Context, token string) error
}

// NewStorage creates a new StorageInterface with a MongoDB backend,
// using the provided URI to connect to the MongoDB server.
func NewStorage(dbName, uri string) (StorageInterface, error) {
	storage := NewMongoStorage()
	err := storage.Connect(dbName, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return storage, nil
}
