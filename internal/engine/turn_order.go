package engine

// quorumMet reports whether the responses collected so far complete the
// phase. It is pure so the completion rule can be checked on its own.
func quorumMet(phase Phase, players, submissions, votes int) bool {
	switch phase {
	case PhaseStorytellerChoice:
		return submissions >= 1
	case PhasePlayersChoice:
		return submissions >= players
	case PhaseVoting:
		return votes >= players-1
	default:
		return false
	}
}

// nextInOrder returns the id following current in join order, wrapping.
// An unknown current yields the first id.
func nextInOrder(order []string, current string) string {
	if len(order) == 0 {
		return ""
	}
	for i, id := range order {
		if id == current {
			return order[(i+1)%len(order)]
		}
	}
	return order[0]
}
