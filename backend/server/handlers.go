package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/jghoshh/arise/backend/models"
	"github.com/jghoshh/arise/backend/queue"
	storage "github.com/jghoshh/arise/backend/storage/persistent"
)

// completeTaskRequest is the body of POST /api/quests/complete. Progress is a
// pointer so a missing field can be told apart from an explicit zero.
// IsCompleted is accepted for compatibility with old clients but ignored;
// the completion transition is derived server-side from the task goals.
type completeTaskRequest struct {
	QuestID     string            `json:"questId"`
	TaskID      string            `json:"taskId"`
	Progress    *float64          `json:"progress"`
	IsCompleted *bool             `json:"isCompleted,omitempty"`
	StatUpdates *models.StatPatch `json:"statUpdates,omitempty"`
}

// updateQuestsRequest is the body of POST /api/quests/update.
type updateQuestsRequest struct {
	Quests []models.Quest `json:"quests"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

// writeError writes the structured {error} body. Internal detail never
// reaches the client; it is logged at the call site instead.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// requireSession returns the authenticated email or answers 401 and returns
// "" when the request carried no valid session.
func requireSession(w http.ResponseWriter, r *http.Request) string {
	email := emailFromContext(r.Context())
	if email == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return email
}

// decodeBody decodes the JSON request body into dst, answering 400 on
// malformed input. Returns whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid data")
		return false
	}
	return true
}

// handleSignUp registers a new user and returns a token pair. The user
// document with default stats and the default daily quest is created here,
// which is what the original product did on first sign-in.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Name == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	pair, err := s.auth.SignUp(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// handleSignIn authenticates email+password and returns a token pair.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	pair, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// handleRefresh exchanges a refresh token for a new token pair.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	pair, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// handleSignOut revokes the presented refresh token.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.auth.SignOut(r.Context(), req.RefreshToken); err != nil {
		log.Printf("error signing out: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeSuccess(w)
}

// handleGetStats returns the caller's stats, synthesizing the defaults for a
// user without a document.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	email := requireSession(w, r)
	if email == "" {
		return
	}

	doc := s.store.GetDocument(r.Context(), email)
	writeJSON(w, http.StatusOK, doc.Stats)
}

// handleGetQuests returns the caller's quest list, synthesizing the default
// daily quest for a user without a document.
func (s *Server) handleGetQuests(w http.ResponseWriter, r *http.Request) {
	email := requireSession(w, r)
	if email == "" {
		return
	}

	doc := s.store.GetDocument(r.Context(), email)
	writeJSON(w, http.StatusOK, doc.Quests)
}

// handleCompleteTask applies a task progress update. When the update
// completes the quest, the stat progression runs and quests and stats are
// persisted in a single write; a level-up additionally emits a reward
// notification event.
func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	email := requireSession(w, r)
	if email == "" {
		return
	}

	var req completeTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.QuestID == "" || req.TaskID == "" || req.Progress == nil || *req.Progress < 0 {
		writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	patch := models.StatPatch{}
	if req.StatUpdates != nil {
		patch = *req.StatUpdates
	}

	result, err := s.store.CompleteTask(r.Context(), email, req.QuestID, req.TaskID, *req.Progress, patch)
	if err != nil {
		if err == storage.ErrNoUser {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		log.Printf("error completing task for %q: %v", email, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if result.LeveledUp {
		s.publishLevelUp(email, result.Level)
	}

	writeSuccess(w)
}

// handleUpdateQuests replaces the caller's quest list wholesale, with every
// derived completion flag recomputed before the write.
func (s *Server) handleUpdateQuests(w http.ResponseWriter, r *http.Request) {
	email := requireSession(w, r)
	if email == "" {
		return
	}

	var req updateQuestsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quests == nil {
		writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	if ok := s.store.UpdateQuests(r.Context(), email, req.Quests); !ok {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeSuccess(w)
}

// publishLevelUp emits a reward notification event. The message id is
// email+level, so the consumer-side dedup also suppresses a replayed event
// for the same level. Losing the notification is acceptable; the reward
// itself is already persisted.
func (s *Server) publishLevelUp(email string, level int) {
	if s.rewards == nil {
		return
	}

	msg := &queue.RewardMessage{
		Id:    fmt.Sprintf("%s-%d", email, level),
		To:    email,
		Level: level,
	}
	if err := queue.PublishReward(msg, s.rewards); err != nil {
		log.Printf("error publishing level-up notification for %q: %v", email, err)
	}
}
