package storage

import (
	"context"
	"sync"

	"github.com/jghoshh/arise/backend/models"
)

// MemoryStorage is an in-process StorageInterface used when no MongoDB
// credentials are configured or the server is unreachable. Data does not
// survive a restart; it exists so the product stays demoable without
// persistence and so handler tests can run against a real storage backend.
type MemoryStorage struct {
	mu     sync.RWMutex
	users  map[string]models.User
	tokens map[string]models.RefreshToken
}

// NewMemoryStorage creates an empty, ready-to-use MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:  make(map[string]models.User),
		tokens: make(map[string]models.RefreshToken),
	}
}

// Connect is a no-op; the memory backend is always reachable.
func (m *MemoryStorage) Connect(dbName, uri string) error {
	return nil
}

// Disconnect is a no-op.
func (m *MemoryStorage) Disconnect() error {
	return nil
}

// copyUser returns a deep copy so callers can never alias the stored slices.
// Nil slices stay nil so copies compare equal to the original.
func copyUser(u models.User) models.User {
	if u.Quests == nil {
		return u
	}
	quests := make([]models.Quest, len(u.Quests))
	for i, q := range u.Quests {
		if q.Tasks != nil {
			tasks := make([]models.QuestTask, len(q.Tasks))
			copy(tasks, q.Tasks)
			q.Tasks = tasks
		}
		quests[i] = q
	}
	u.Quests = quests
	return u
}

// AddUser stores a new user document. Fails if the email is already taken,
// matching the unique index of the MongoDB backend.
func (m *MemoryStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.Email]; ok {
		return nil, ErrUserExists
	}
	m.users[user.Email] = copyUser(*user)
	return user, nil
}

// FindUser returns a copy of the stored user document, or ErrNoUser.
func (m *MemoryStorage) FindUser(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[email]
	if !ok {
		return nil, ErrNoUser
	}
	found := copyUser(u)
	return &found, nil
}

// UserCount returns 1 if a document exists for the email, 0 otherwise.
func (m *MemoryStorage) UserCount(ctx context.Context, email string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.users[email]; ok {
		return 1, nil
	}
	return 0, nil
}

// UpdateQuests replaces the quests field of the user document wholesale.
func (m *MemoryStorage) UpdateQuests(ctx context.Context, email string, quests []models.Quest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[email]
	if !ok {
		return ErrNoUser
	}
	u.Quests = quests
	m.users[email] = copyUser(u)
	return nil
}

// UpdateStats replaces the stats field of the user document wholesale.
func (m *MemoryStorage) UpdateStats(ctx context.Context, email string, stats models.UserStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[email]
	if !ok {
		return ErrNoUser
	}
	u.Stats = stats
	m.users[email] = u
	return nil
}

// UpdateProgress replaces the quests and stats fields under a single lock,
// mirroring the single-write semantics of the MongoDB backend.
func (m *MemoryStorage) UpdateProgress(ctx context.Context, email string, quests []models.Quest, stats models.UserStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[email]
	if !ok {
		return ErrNoUser
	}
	u.Quests = quests
	u.Stats = stats
	m.users[email] = copyUser(u)
	return nil
}

// DeleteUser removes the user document and any refresh tokens issued to it.
func (m *MemoryStorage) DeleteUser(ctx context.Context, email string) (*DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[email]; !ok {
		return nil, ErrNoUser
	}
	delete(m.users, email)
	for token, record := range m.tokens {
		if record.Email == email {
			delete(m.tokens, token)
		}
	}
	return &DeleteResult{DeletedCount: 1}, nil
}

// AddRefreshToken stores a refresh token record.
func (m *MemoryStorage) AddRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[token.Token] = *token
	return nil
}

// FindRefreshToken returns the refresh token record, or ErrNoToken.
func (m *MemoryStorage) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.tokens[token]
	if !ok {
		return nil, ErrNoToken
	}
	found := record
	return &found, nil
}

// DeleteRefreshToken removes the refresh token record.
func (m *MemoryStorage) DeleteRefreshToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tokens[token]; !ok {
		return ErrNoToken
	}
	delete(m.tokens, token)
	return nil
}

var _ StorageInterface = (*MemoryStorage)(nil)
