// Package store is the document store adapter: the only owner of persisted
// user state. It wraps the persistent backend with the read-or-default,
// idempotent-create and boolean-result semantics the API boundary relies on,
// and layers a read-through cache over document reads.
package store

import (
	"context"
	"log"

	"github.com/jghoshh/arise/backend/models"
	"github.com/jghoshh/arise/backend/quest"
	"github.com/jghoshh/arise/backend/stats"
	cache "github.com/jghoshh/arise/backend/storage/cache"
	storage "github.com/jghoshh/arise/backend/storage/persistent"
)

// cacheKeyPrefix namespaces user documents in the shared cache.
const cacheKeyPrefix = "user_"

// Store adapts a persistent backend and a cache into the document operations
// the handlers use. Construct it once at process start and inject it.
type Store struct {
	backend storage.StorageInterface
	cache   cache.CacheInterface
}

// CompleteResult reports what a CompleteTask call changed, so the boundary
// can decide whether to emit a reward notification.
type CompleteResult struct {
	Quests    []models.Quest
	Stats     models.UserStats
	Completed bool // the quest transitioned from incomplete to complete
	LeveledUp bool
	Level     int
}

// NewStore creates a Store over the given backend and cache.
func NewStore(backend storage.StorageInterface, c cache.CacheInterface) *Store {
	return &Store{backend: backend, cache: c}
}

// getUser reads a user document through the cache. Cache failures are logged
// and treated as misses.
func (s *Store) getUser(ctx context.Context, email string) (*models.User, error) {
	cached := &models.User{}
	err := s.cache.Get(ctx, cacheKeyPrefix+email, cached)
	if err == nil {
		return cached, nil
	}
	if err != cache.ErrCacheMiss {
		log.Printf("error reading user %q from cache: %v", email, err)
	}

	user, err := s.backend.FindUser(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cacheKeyPrefix+email, user); err != nil {
		log.Printf("error caching user %q: %v", email, err)
	}
	return user, nil
}

// invalidate drops the cached copy of a user document after a write.
func (s *Store) invalidate(ctx context.Context, email string) {
	if err := s.cache.Delete(ctx, cacheKeyPrefix+email); err != nil {
		log.Printf("error invalidating cached user %q: %v", email, err)
	}
}

// GetDocument returns the stored document for email, or a synthesized default
// (default stats plus the default daily quest) when none exists. It never
// fails the caller: internal errors are logged and the default is returned.
func (s *Store) GetDocument(ctx context.Context, email string) *models.User {
	user, err := s.getUser(ctx, email)
	if err != nil {
		if err != storage.ErrNoUser {
			log.Printf("error getting user %q: %v", email, err)
		}
		return models.DefaultUser(email, "")
	}
	return user
}

// CreateDocument creates the document for email only if it is absent; an
// existing document makes the call an idempotent no-op. Returns whether the
// store succeeded.
func (s *Store) CreateDocument(ctx context.Context, email, name string) bool {
	count, err := s.backend.UserCount(ctx, email)
	if err != nil {
		log.Printf("error checking user %q: %v", email, err)
		return false
	}
	if count > 0 {
		return true
	}

	_, err = s.backend.AddUser(ctx, models.DefaultUser(email, name))
	if err != nil && err != storage.ErrUserExists {
		log.Printf("error creating user %q: %v", email, err)
		return false
	}
	return true
}

// UpdateQuests replaces the quests field wholesale, recomputing every derived
// completion flag first so a client can never store a claimed completion.
// Returns false if the document does not exist or the store is unreachable.
func (s *Store) UpdateQuests(ctx context.Context, email string, quests []models.Quest) bool {
	err := s.backend.UpdateQuests(ctx, email, quest.Normalize(quests))
	if err != nil {
		log.Printf("error updating quests for %q: %v", email, err)
		return false
	}
	s.invalidate(ctx, email)
	return true
}

// UpdateStats runs the stat progression over the stored stats with the given
// patch and persists the result. Returns the updated stats and whether the
// write succeeded.
func (s *Store) UpdateStats(ctx context.Context, email string, patch models.StatPatch) (models.UserStats, bool) {
	user, err := s.getUser(ctx, email)
	if err != nil {
		log.Printf("error getting user %q for stat update: %v", email, err)
		return models.UserStats{}, false
	}

	updated := stats.ApplyStatUpdateLooped(user.Stats, patch)
	if err := s.backend.UpdateStats(ctx, email, updated); err != nil {
		log.Printf("error updating stats for %q: %v", email, err)
		return models.UserStats{}, false
	}
	s.invalidate(ctx, email)
	return updated, true
}

// CompleteTask applies a task progress update to the user's quests and, when
// the target quest transitions from incomplete to complete, runs the stat
// progression and persists quests and stats in a single write.
//
// The completion transition is derived here from the task goals, never taken
// from the client, and a quest that was already complete before the update
// never re-triggers the reward.
//
// Returns storage.ErrNoUser when no document exists for email.
func (s *Store) CompleteTask(ctx context.Context, email, questID, taskID string, progress float64, patch models.StatPatch) (*CompleteResult, error) {
	user, err := s.getUser(ctx, email)
	if err != nil {
		return nil, err
	}

	wasCompleted := false
	if target := quest.FindQuest(user.Quests, questID); target != nil {
		wasCompleted = quest.IsCompleted(*target)
	}

	updatedQuests := quest.ApplyTaskProgress(user.Quests, questID, taskID, progress)

	nowCompleted := false
	if target := quest.FindQuest(updatedQuests, questID); target != nil {
		nowCompleted = target.IsCompleted
	}

	result := &CompleteResult{
		Quests:    updatedQuests,
		Stats:     user.Stats,
		Completed: nowCompleted && !wasCompleted,
		Level:     user.Stats.Level,
	}

	if result.Completed {
		updatedStats := stats.ApplyStatUpdateLooped(user.Stats, patch)
		result.Stats = updatedStats
		result.LeveledUp = updatedStats.Level > user.Stats.Level
		result.Level = updatedStats.Level
		err = s.backend.UpdateProgress(ctx, email, updatedQuests, updatedStats)
	} else {
		err = s.backend.UpdateQuests(ctx, email, updatedQuests)
	}
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, email)
	return result, nil
}
