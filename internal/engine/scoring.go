package engine

import (
	"cmp"
	"slices"
)

// Reason labels which rule produced a score delta.
type Reason string

const (
	ReasonEveryoneGuessed  Reason = "everyone_guessed"
	ReasonNobodyGuessed    Reason = "nobody_guessed"
	ReasonStorytellerFound Reason = "storyteller_found"
	ReasonGuessedCorrectly Reason = "guessed_correctly"
	ReasonVotesReceived    Reason = "votes_received"
)

// ScoreDelta is one rule's contribution to one player's score.
type ScoreDelta struct {
	PlayerID string `json:"player_id"`
	Delta    int    `json:"delta"`
	Reason   Reason `json:"reason"`
}

// Score computes the round's deltas. It depends only on its arguments and
// returns the same slice for any ordering of submissions and votes.
//
// When nobody other than the storyteller submitted, "everyone guessed" and
// "nobody guessed" both hold; the everyone-guessed label wins.
func Score(storytellerID, storytellerCardID string, submissions []Submission, votes []Vote) []ScoreDelta {
	owner := make(map[string]string, len(submissions))
	eligible := 0
	for _, s := range submissions {
		owner[s.Card.ID] = s.PlayerID
		if s.PlayerID != storytellerID {
			eligible++
		}
	}

	correct := 0
	received := map[string]int{}
	var guessers []string
	for _, v := range votes {
		if v.CardID == storytellerCardID {
			correct++
			guessers = append(guessers, v.VoterID)
			continue
		}
		if o, ok := owner[v.CardID]; ok && o != storytellerID {
			received[o]++
		}
	}

	var out []ScoreDelta
	switch {
	case correct == eligible || correct == 0:
		reason := ReasonEveryoneGuessed
		if correct != eligible {
			reason = ReasonNobodyGuessed
		}
		out = append(out, ScoreDelta{PlayerID: storytellerID, Delta: 0, Reason: reason})
		for _, s := range submissions {
			if s.PlayerID != storytellerID {
				out = append(out, ScoreDelta{PlayerID: s.PlayerID, Delta: 2, Reason: reason})
			}
		}
	default:
		out = append(out, ScoreDelta{PlayerID: storytellerID, Delta: 3, Reason: ReasonStorytellerFound})
		for _, id := range guessers {
			out = append(out, ScoreDelta{PlayerID: id, Delta: 3, Reason: ReasonGuessedCorrectly})
		}
	}

	for id, n := range received {
		out = append(out, ScoreDelta{PlayerID: id, Delta: n, Reason: ReasonVotesReceived})
	}

	slices.SortFunc(out, func(a, b ScoreDelta) int {
		return cmp.Or(cmp.Compare(a.PlayerID, b.PlayerID), cmp.Compare(a.Reason, b.Reason))
	})
	return out
}

// Totals sums deltas per player.
func Totals(deltas []ScoreDelta) map[string]int {
	out := make(map[string]int, len(deltas))
	for _, d := range deltas {
		out[d.PlayerID] += d.Delta
	}
	return out
}
