package config

import (
	"fmt"
	"strings"
)

// Level is a coarse thinking setting mapped to a per-model token budget.
type Level string

const (
	LevelMinimal Level = "minimal"
	LevelLow     Level = "low"
	LevelMedium  Level = "medium"
	LevelHigh    Level = "high"
)

var allLevels = []Level{LevelMinimal, LevelLow, LevelMedium, LevelHigh}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	for _, known := range allLevels {
		if l == known {
			return true
		}
	}
	return false
}

// ParseLevel parses a level name case-insensitively.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown thinking level %q (want minimal, low, medium or high)", s)
	}
	return l, nil
}

// family groups models whose thinking budgets behave alike.
type family int

const (
	familyGeminiFlash family = iota
	familyGeminiPro
	familyClaude
	familyOllama
)

func familyOf(model string) family {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gemini") && strings.Contains(m, "pro"):
		return familyGeminiPro
	case strings.HasPrefix(m, "gemini"):
		return familyGeminiFlash
	case strings.Contains(m, "claude"):
		return familyClaude
	default:
		return familyOllama
	}
}

var budgets = map[family]map[Level]int{
	familyGeminiFlash: {LevelMinimal: 1024, LevelLow: 4096, LevelMedium: 12288, LevelHigh: 24576},
	familyGeminiPro:   {LevelLow: 4096, LevelHigh: 32768},
	familyClaude:      {LevelLow: 2048, LevelMedium: 8192, LevelHigh: 16384},
	familyOllama:      {LevelMinimal: 0, LevelLow: 1, LevelMedium: 1, LevelHigh: 1},
}

// ValidLevels lists the levels model supports, lowest first.
func ValidLevels(model string) []Level {
	table := budgets[familyOf(model)]
	var out []Level
	for _, l := range allLevels {
		if _, ok := table[l]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Supports reports whether model accepts level.
func Supports(model string, level Level) bool {
	_, ok := budgets[familyOf(model)][level]
	return ok
}

// ThinkingBudget maps level to a token budget for model. An unsupported
// level maps to the model's nearest lower supported level, or its lowest.
func ThinkingBudget(level Level, model string) int {
	table := budgets[familyOf(model)]
	if b, ok := table[level]; ok {
		return b
	}
	idx := -1
	for i, l := range allLevels {
		if l == level {
			idx = i
		}
	}
	for i := idx - 1; i >= 0; i-- {
		if b, ok := table[allLevels[i]]; ok {
			return b
		}
	}
	return table[ValidLevels(model)[0]]
}

// Normalize replaces levels model does not support: planning and expert
// fall back to low, synthesis to high. It reports whether anything changed.
func (t *ThinkingConfig) Normalize(model string) bool {
	changed := false
	fix := func(l *Level, fallback Level) {
		if !Supports(model, *l) {
			*l = fallback
			changed = true
		}
	}
	fix(&t.Planning, LevelLow)
	fix(&t.Expert, LevelLow)
	fix(&t.Synthesis, LevelHigh)
	return changed
}
