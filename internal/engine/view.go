package engine

import (
	"slices"
	"time"
)

type CardView struct {
	ID         string `json:"id"`
	Image      []byte `json:"image,omitempty"`
	UploaderID string `json:"uploader_id,omitempty"`
}

type PlayerSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Avatar       string `json:"avatar,omitempty"`
	IsAdmin      bool   `json:"is_admin"`
	Connected    bool   `json:"connected"`
	Score        int    `json:"score"`
	HandSize     int    `json:"hand_size"`
	Uploads      int    `json:"uploads"`
	HasSubmitted bool   `json:"has_submitted"`
	HasVoted     bool   `json:"has_voted"`
}

// SubmissionView is a card on the table. Owner and voters are only filled in
// during reveal.
type SubmissionView struct {
	Position int      `json:"position"`
	CardID   string   `json:"card_id"`
	Image    []byte   `json:"image,omitempty"`
	PlayerID string   `json:"player_id,omitempty"`
	Voters   []string `json:"voters,omitempty"`
}

// RoomView is what every client in the room may see.
type RoomView struct {
	Phase          Phase            `json:"phase"`
	Round          int              `json:"round"`
	StorytellerID  string           `json:"storyteller_id,omitempty"`
	Clue           string           `json:"clue,omitempty"`
	WinTarget      int              `json:"win_target"`
	Board          BoardSettings    `json:"board"`
	UploadMode     UploadMode       `json:"upload_mode"`
	PoolLocked     bool             `json:"pool_locked"`
	PoolSize       int              `json:"pool_size"`
	MinDeckSize    int              `json:"min_deck_size"`
	HasAdminSecret bool             `json:"has_admin_secret"`
	DeadlineAt     *time.Time       `json:"deadline_at,omitempty"`
	Players        []PlayerSummary  `json:"players"`
	Pool           []CardView       `json:"pool,omitempty"`
	Submissions    []SubmissionView `json:"submissions,omitempty"`
	SubmittedCount int              `json:"submitted_count"`
	VotedCount     int              `json:"voted_count"`
	LastScores     []ScoreDelta     `json:"last_scores,omitempty"`
	Winners        []string         `json:"winners,omitempty"`
}

// PlayerView is what only one player may see.
type PlayerView struct {
	PlayerID        string     `json:"player_id"`
	IsAdmin         bool       `json:"is_admin"`
	IsStoryteller   bool       `json:"is_storyteller"`
	Hand            []CardView `json:"hand"`
	SubmittedCardID string     `json:"submitted_card_id,omitempty"`
	VotedCardID     string     `json:"voted_card_id,omitempty"`
}

func (s *Session) RoomView() RoomView {
	defer s.lock()()

	v := RoomView{
		Phase:          s.phase,
		Round:          s.round,
		StorytellerID:  s.storyteller,
		Clue:           s.clue,
		WinTarget:      s.winTarget,
		Board:          s.board,
		UploadMode:     s.pool.Mode(),
		PoolLocked:     s.pool.Locked(),
		PoolSize:       s.pool.Len(),
		MinDeckSize:    MinDeckSize(len(s.players), s.rules.HandSize, s.winTarget),
		HasAdminSecret: s.secretHash != nil,
		SubmittedCount: len(s.submissions),
		VotedCount:     len(s.votes),
	}
	if !s.deadline.IsZero() {
		at := s.deadline.At()
		v.DeadlineAt = &at
	}

	for _, id := range s.order {
		p := s.players[id]
		v.Players = append(v.Players, PlayerSummary{
			ID:           p.ID,
			Name:         p.Name,
			Avatar:       p.Avatar,
			IsAdmin:      p.IsAdmin,
			Connected:    p.Connected,
			Score:        p.Score,
			HandSize:     len(p.Hand),
			Uploads:      s.pool.Uploads(p.ID),
			HasSubmitted: s.submissionOf(p.ID) >= 0,
			HasVoted:     s.voteOf(p.ID) >= 0,
		})
	}

	switch s.phase {
	case PhaseDeckBuilding:
		for _, c := range s.pool.Cards() {
			v.Pool = append(v.Pool, CardView{ID: c.ID, Image: c.Image, UploaderID: c.UploaderID})
		}
	case PhaseVoting, PhaseReveal:
		for _, sub := range s.submissions {
			sv := SubmissionView{Position: sub.Position, CardID: sub.Card.ID, Image: sub.Card.Image}
			if s.phase == PhaseReveal {
				sv.PlayerID = sub.PlayerID
				for _, vote := range s.votes {
					if vote.CardID == sub.Card.ID {
						sv.Voters = append(sv.Voters, vote.VoterID)
					}
				}
			}
			v.Submissions = append(v.Submissions, sv)
		}
		slices.SortFunc(v.Submissions, func(a, b SubmissionView) int { return a.Position - b.Position })
	}

	if s.phase == PhaseReveal || s.phase == PhaseGameEnd {
		v.LastScores = slices.Clone(s.lastScores)
	}
	if s.phase == PhaseGameEnd {
		v.Winners = s.leaders()
	}
	return v
}

// leaders returns the ids holding the top score, in join order.
func (s *Session) leaders() []string {
	best := -1
	var out []string
	for _, id := range s.order {
		switch sc := s.players[id].Score; {
		case sc > best:
			best, out = sc, []string{id}
		case sc == best:
			out = append(out, id)
		}
	}
	return out
}

func (s *Session) PlayerView(playerID string) (PlayerView, error) {
	defer s.lock()()

	p, err := s.player(playerID)
	if err != nil {
		return PlayerView{}, err
	}
	v := PlayerView{
		PlayerID:      p.ID,
		IsAdmin:       p.IsAdmin,
		IsStoryteller: s.phase.Active() && s.storyteller == p.ID,
		Hand:          make([]CardView, 0, len(p.Hand)),
	}
	for _, c := range p.Hand {
		v.Hand = append(v.Hand, CardView{ID: c.ID, Image: c.Image})
	}
	if i := s.submissionOf(p.ID); i >= 0 {
		v.SubmittedCardID = s.submissions[i].Card.ID
	}
	if i := s.voteOf(p.ID); i >= 0 {
		v.VotedCardID = s.votes[i].CardID
	}
	return v, nil
}
