package usecase

import (
	"sort"

	"github.com/riskibarqy/oddsline/internal/domain/match"
	"github.com/riskibarqy/oddsline/internal/domain/snapshot"
)

// matchIndex resolves snapshot records to stored active matches by URL key
// first, then by team key.
type matchIndex struct {
	byURL  map[string]*match.Match
	byTeam map[string][]*match.Match
}

func newMatchIndex(matches []match.Match) *matchIndex {
	idx := &matchIndex{
		byURL:  make(map[string]*match.Match, len(matches)),
		byTeam: make(map[string][]*match.Match, len(matches)),
	}
	for i := range matches {
		idx.add(&matches[i])
	}
	return idx
}

func (idx *matchIndex) add(m *match.Match) {
	urlKey, teamKey := m.Keys()
	if urlKey != "" {
		idx.byURL[urlKey] = m
	}
	candidates := append(idx.byTeam[teamKey], m)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].KickoffAt.Before(candidates[j].KickoffAt)
	})
	idx.byTeam[teamKey] = candidates
}

// reindexURL registers a URL learned after the match was indexed.
func (idx *matchIndex) reindexURL(m *match.Match) {
	if key := match.URLKey(m.SourceURL); key != "" {
		idx.byURL[key] = m
	}
}

func (idx *matchIndex) resolve(rec snapshot.Record) (*match.Match, bool) {
	recURLKey := match.URLKey(rec.MatchURL)
	if recURLKey != "" {
		if m, ok := idx.byURL[recURLKey]; ok {
			return m, true
		}
	}

	candidates := idx.byTeam[match.TeamKey(rec.HomeTeam, rec.AwayTeam)]
	var fallback *match.Match
	for _, candidate := range candidates {
		candidateURLKey := match.URLKey(candidate.SourceURL)
		// Both sides carry different URLs: a different fixture of the same pair.
		if recURLKey != "" && candidateURLKey != "" && candidateURLKey != recURLKey {
			continue
		}
		if match.SameDay(candidate.KickoffAt, rec.ScheduledAt) {
			return candidate, true
		}
		if fallback == nil {
			fallback = candidate
		}
	}
	if fallback != nil {
		return fallback, true
	}
	return nil, false
}

// seenSet holds both identity keys of every record in a snapshot.
type seenSet map[string]struct{}

func newSeenSet(records []snapshot.Record) seenSet {
	seen := make(seenSet, len(records)*2)
	for _, rec := range records {
		if key := match.URLKey(rec.MatchURL); key != "" {
			seen[key] = struct{}{}
		}
		seen[match.TeamKey(rec.HomeTeam, rec.AwayTeam)] = struct{}{}
	}
	return seen
}

func (s seenSet) contains(m match.Match) bool {
	urlKey, teamKey := m.Keys()
	if urlKey != "" {
		if _, ok := s[urlKey]; ok {
			return true
		}
	}
	_, ok := s[teamKey]
	return ok
}
