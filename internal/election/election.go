// Package election implements the pure, deterministic player-selection
// algorithm. It never mutates its inputs and acquires no
// external resources; calling it twice with identical inputs yields
// identical outputs.
package election

import (
	"sort"
	"strings"

	"github.com/mprisbridge/mpris-bridge/internal/config"
	"github.com/mprisbridge/mpris-bridge/internal/domain"
)

// Select runs the election algorithm over the given registry view and
// configuration, returning the empty PlayerID when no player qualifies.
//
// Go map iteration order is randomized per run, so candidates are sorted
// lexically right after the filter step; ties then resolve the same way on
// every call with the same inputs, preserving the engine's purity contract.
func Select(players map[domain.PlayerID]string, focusHint string, lastSelected domain.PlayerID, cfg config.Selection) domain.PlayerID {
	// Step 1: include/exclude filter.
	candidates := make([]domain.PlayerID, 0, len(players))
	for id := range players {
		if includeExcludeMatch(string(id), cfg.Include, cfg.Exclude) {
			candidates = append(candidates, id)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	// Step 2: empty survivor set.
	if len(candidates) == 0 {
		return ""
	}

	// Step 3: playing subset.
	var playing []domain.PlayerID
	for _, id := range candidates {
		if players[id] == "Playing" {
			playing = append(playing, id)
		}
	}

	// Step 4: playing set is non-empty.
	if len(playing) > 0 {
		if focusHint != "" {
			if p, ok := firstWithFamily(playing, focusHint); ok {
				return p
			}
		}
		for _, family := range cfg.Priority {
			if p, ok := firstWithFamily(playing, family); ok {
				return p
			}
		}
		return playing[0]
	}

	// Step 5: remember_last among non-playing candidates.
	if cfg.RememberLast && lastSelected != "" {
		for _, id := range candidates {
			if id == lastSelected {
				return lastSelected
			}
		}
	}

	// Step 6: repeat focus-hint and priority match against the full
	// candidate set.
	if focusHint != "" {
		if p, ok := firstWithFamily(candidates, focusHint); ok {
			return p
		}
	}
	for _, family := range cfg.Priority {
		if p, ok := firstWithFamily(candidates, family); ok {
			return p
		}
	}

	// Step 7: fallback.
	if cfg.Fallback == "any" {
		return candidates[0]
	}
	return ""
}

func firstWithFamily(ids []domain.PlayerID, family string) (domain.PlayerID, bool) {
	for _, id := range ids {
		if strings.HasPrefix(string(id), family) {
			return id, true
		}
	}
	return "", false
}

func includeExcludeMatch(id string, include, exclude []string) bool {
	if len(include) > 0 {
		matched := false
		for _, prefix := range include {
			if strings.HasPrefix(id, prefix) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, prefix := range exclude {
		if strings.HasPrefix(id, prefix) {
			return false
		}
	}
	return true
}
