package models

import (
	"time"
)

// QuestTask is a single unit of progress inside a quest, such as a number of
// push-ups or kilometers to run. A task counts as complete once Current has
// reached Goal.
type QuestTask struct {
	ID      string  `bson:"id" json:"id"`
	Name    string  `bson:"name" json:"name"`
	Goal    float64 `bson:"goal" json:"goal"`
	Current float64 `bson:"current" json:"current"`
	Unit    string  `bson:"unit" json:"unit"`
}

// Quest is a named, ordered collection of tasks. IsCompleted is derived from
// the tasks and is recomputed on every mutation; it is never set on its own.
type Quest struct {
	ID          string      `bson:"id" json:"id"`
	Title       string      `bson:"title" json:"title"`
	Tasks       []QuestTask `bson:"tasks" json:"tasks"`
	IsCompleted bool        `bson:"isCompleted" json:"isCompleted"`
}

// UserStats holds the character sheet of a user. The progression service keeps
// the invariant 0 <= Exp < ExpToNextLevel after every update.
type UserStats struct {
	HP             int `bson:"hp" json:"hp"`
	MP             int `bson:"mp" json:"mp"`
	Fatigue        int `bson:"fatigue" json:"fatigue"`
	Str            int `bson:"str" json:"str"`
	Vit            int `bson:"vit" json:"vit"`
	Agi            int `bson:"agi" json:"agi"`
	Int            int `bson:"int" json:"int"`
	Per            int `bson:"per" json:"per"`
	Level          int `bson:"level" json:"level"`
	Exp            int `bson:"exp" json:"exp"`
	ExpToNextLevel int `bson:"expToNextLevel" json:"expToNextLevel"`
	AbilityPoints  int `bson:"abilityPoints" json:"abilityPoints"`
}

// StatPatch carries partial stat updates from the client. Pointer fields
// distinguish "not present" from an explicit zero so absent fields stay
// untouched when the patch is merged.
type StatPatch struct {
	HP            *int `json:"hp,omitempty"`
	MP            *int `json:"mp,omitempty"`
	Fatigue       *int `json:"fatigue,omitempty"`
	Str           *int `json:"str,omitempty"`
	Vit           *int `json:"vit,omitempty"`
	Agi           *int `json:"agi,omitempty"`
	Int           *int `json:"int,omitempty"`
	Per           *int `json:"per,omitempty"`
	Exp           *int `json:"exp,omitempty"`
	AbilityPoints *int `json:"abilityPoints,omitempty"`
}

// User is the per-user document persisted in the 'users' collection, keyed by
// email. It is created on first sign-up and never deleted by the application.
type User struct {
	Email        string    `bson:"email" json:"email"`
	Name         string    `bson:"name" json:"name"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	Stats        UserStats `bson:"stats" json:"stats"`
	Quests       []Quest   `bson:"quests" json:"quests"`
}

// RefreshToken records an issued refresh token so it can be rotated and
// revoked independently of the short-lived access token.
type RefreshToken struct {
	Email  string    `bson:"email" json:"email"`
	Token  string    `bson:"token" json:"token"`
	Expiry time.Time `bson:"expiry" json:"expiry"`
}

// DefaultStats returns the stats assigned to a brand new user.
func DefaultStats() UserStats {
	return UserStats{
		HP:             100,
		MP:             10,
		Fatigue:        0,
		Str:            10,
		Vit:            10,
		Agi:            10,
		Int:            10,
		Per:            10,
		Level:          1,
		Exp:            0,
		ExpToNextLevel: 100,
		AbilityPoints:  0,
	}
}

// DefaultDailyQuest returns the daily quest assigned to a brand new user.
func DefaultDailyQuest() Quest {
	return Quest{
		ID:    "daily",
		Title: "TRAIN TO BECOME A FORMIDABLE COMBATANT",
		Tasks: []QuestTask{
			{ID: "push-ups", Name: "PUSH-UPS", Goal: 100, Current: 0, Unit: ""},
			{ID: "sit-ups", Name: "SIT-UPS", Goal: 100, Current: 0, Unit: ""},
			{ID: "squats", Name: "SQUATS", Goal: 100, Current: 0, Unit: ""},
			{ID: "run", Name: "RUN", Goal: 10, Current: 0, Unit: "KM"},
		},
		IsCompleted: false,
	}
}

// DefaultUser synthesizes the document a first-time user would be created
// with. Callers that only read may use it without persisting anything.
func DefaultUser(email, name string) *User {
	return &User{
		Email:     email,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Stats:     DefaultStats(),
		Quests:    []Quest{DefaultDailyQuest()},
	}
}
