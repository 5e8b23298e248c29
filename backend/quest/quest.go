// Package quest implements the pure quest update rules. Nothing in this
// package performs I/O; the storage adapter feeds it copies of the persisted
// quest list and persists whatever it returns.
package quest

import (
	"github.com/jghoshh/arise/backend/models"
)

// IsTaskComplete reports whether a single task has reached its goal.
func IsTaskComplete(task models.QuestTask) bool {
	return task.Current >= task.Goal
}

// IsCompleted derives the completion flag of a quest: the conjunction of
// every task having reached its goal. A quest with no tasks is never
// considered completed, so it can never trigger a reward.
func IsCompleted(q models.Quest) bool {
	if len(q.Tasks) == 0 {
		return false
	}
	for _, task := range q.Tasks {
		if !IsTaskComplete(task) {
			return false
		}
	}
	return true
}

// FindQuest returns the quest with the given id, or nil if no quest matches.
func FindQuest(quests []models.Quest, questID string) *models.Quest {
	for i := range quests {
		if quests[i].ID == questID {
			return &quests[i]
		}
	}
	return nil
}

// ApplyTaskProgress returns a copy of quests in which the task taskID inside
// quest questID has its current progress set to newProgress, and that quest's
// completion flag recomputed from its tasks.
//
// The engine does not clamp newProgress to the task's goal; callers may clamp
// before calling, as the CLI does. Negative progress is clamped to zero.
// Unknown quest or task ids are a no-op: the list passes through with
// unchanged content. Quest and task order is preserved, and the input slice is
// never mutated.
func ApplyTaskProgress(quests []models.Quest, questID, taskID string, newProgress float64) []models.Quest {
	if newProgress < 0 {
		newProgress = 0
	}

	updated := make([]models.Quest, len(quests))
	for i, q := range quests {
		if q.ID != questID {
			updated[i] = q
			continue
		}

		tasks := make([]models.QuestTask, len(q.Tasks))
		copy(tasks, q.Tasks)
		for j := range tasks {
			if tasks[j].ID == taskID {
				tasks[j].Current = newProgress
			}
		}

		q.Tasks = tasks
		q.IsCompleted = IsCompleted(q)
		updated[i] = q
	}

	return updated
}

// Normalize returns a copy of quests with every completion flag recomputed
// from its tasks. The wholesale-replace endpoint runs client-supplied quest
// lists through this so the stored flag is always derived, never trusted.
func Normalize(quests []models.Quest) []models.Quest {
	updated := make([]models.Quest, len(quests))
	for i, q := range quests {
		q.IsCompleted = IsCompleted(q)
		updated[i] = q
	}
	return updated
}
