// Package stats implements the pure stat progression rules: patch merging,
// the flat experience reward for completing a quest, and the level-up rule.
package stats

import (
	"math"

	"github.com/jghoshh/arise/backend/models"
)

// QuestCompletionExp is the flat experience reward granted on every
// invocation of the progression. Callers must invoke the progression exactly
// once per quest completion; the API boundary guards against duplicate
// completion triggers.
const QuestCompletionExp = 50

// LevelUpAbilityPoints is the number of ability points granted per level.
const LevelUpAbilityPoints = 3

// expGrowthFactor raises the next-level threshold after each level-up.
const expGrowthFactor = 1.5

// mergePatch overlays the present fields of patch onto s, last value wins.
// Level and ExpToNextLevel are owned by the level-up rule and cannot be
// patched directly.
func mergePatch(s models.UserStats, patch models.StatPatch) models.UserStats {
	if patch.HP != nil {
		s.HP = *patch.HP
	}
	if patch.MP != nil {
		s.MP = *patch.MP
	}
	if patch.Fatigue != nil {
		s.Fatigue = *patch.Fatigue
	}
	if patch.Str != nil {
		s.Str = *patch.Str
	}
	if patch.Vit != nil {
		s.Vit = *patch.Vit
	}
	if patch.Agi != nil {
		s.Agi = *patch.Agi
	}
	if patch.Int != nil {
		s.Int = *patch.Int
	}
	if patch.Per != nil {
		s.Per = *patch.Per
	}
	if patch.Exp != nil {
		s.Exp = *patch.Exp
	}
	if patch.AbilityPoints != nil {
		s.AbilityPoints = *patch.AbilityPoints
	}
	return s
}

// levelUp advances one level: consume the threshold, raise it by the growth
// factor, grant ability points.
func levelUp(s models.UserStats) models.UserStats {
	s.Level++
	s.Exp -= s.ExpToNextLevel
	s.ExpToNextLevel = int(math.Floor(float64(s.ExpToNextLevel) * expGrowthFactor))
	s.AbilityPoints += LevelUpAbilityPoints
	return s
}

// ApplyStatUpdate merges patch over stats, adds the flat completion reward to
// Exp, and applies the level-up rule at most once. This reproduces the
// historical behavior: a single large experience patch can leave
// Exp >= ExpToNextLevel, since only one level is consumed per call.
func ApplyStatUpdate(stats models.UserStats, patch models.StatPatch) models.UserStats {
	s := mergePatch(stats, patch)
	s.Exp += QuestCompletionExp
	if s.Exp >= s.ExpToNextLevel {
		s = levelUp(s)
	}
	if s.Exp < 0 {
		s.Exp = 0
	}
	return s
}

// ApplyStatUpdateLooped is ApplyStatUpdate with the level-up rule repeated
// until Exp < ExpToNextLevel, so the stored stats always satisfy the
// 0 <= Exp < ExpToNextLevel invariant no matter how large the patch was.
// The progression service uses this variant.
func ApplyStatUpdateLooped(stats models.UserStats, patch models.StatPatch) models.UserStats {
	s := mergePatch(stats, patch)
	s.Exp += QuestCompletionExp
	for s.ExpToNextLevel > 0 && s.Exp >= s.ExpToNextLevel {
		s = levelUp(s)
	}
	if s.Exp < 0 {
		s.Exp = 0
	}
	return s
}
