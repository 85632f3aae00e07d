package lotto

import (
	"sort"
	"strings"
)

// PlayerID is a trimmed, non-empty player name. Equality is exact.
type PlayerID string

func NormalizePlayer(name string) (PlayerID, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", validationError("player name must not be empty")
	}
	return PlayerID(trimmed), nil
}

// DedupePreserveOrder normalizes every name and keeps only the first
// occurrence of each, in input order.
func DedupePreserveOrder(names []string) ([]PlayerID, error) {
	seen := make(map[PlayerID]struct{}, len(names))
	result := make([]PlayerID, 0, len(names))
	for _, name := range names {
		id, err := NormalizePlayer(name)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result, nil
}

// normalizeUnique normalizes names and fails on any repeat.
func normalizeUnique(names []string, what string) ([]PlayerID, error) {
	ids, err := DedupePreserveOrder(names)
	if err != nil {
		return nil, err
	}
	if len(ids) != len(names) {
		return nil, validationError(what+" contains duplicate players", duplicatesOf(names)...)
	}
	return ids, nil
}

func duplicatesOf(names []string) []PlayerID {
	counts := make(map[PlayerID]int, len(names))
	for _, name := range names {
		counts[PlayerID(strings.TrimSpace(name))]++
	}
	dups := make([]PlayerID, 0)
	for id, n := range counts {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	sortPlayers(dups)
	return dups
}

func sortPlayers(ids []PlayerID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func playerSet(ids []PlayerID) map[PlayerID]struct{} {
	set := make(map[PlayerID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func idsToStrings(ids []PlayerID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
