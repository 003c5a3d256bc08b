package engine

import (
	"slices"
	"time"

	"go.uber.org/zap"
)

// StartGame locks and shuffles the pool, deals every hand and seats the admin
// as the first storyteller.
func (s *Session) StartGame(playerID string) ([]Event, error) {
	unlock, err := s.enterTransition("start_game")
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.requirePhase(PhaseDeckBuilding); err != nil {
		return nil, err
	}
	if _, err := s.requireAdmin(playerID); err != nil {
		return nil, err
	}
	if s.secretHash == nil {
		return nil, ErrNoAdminSecret
	}
	if len(s.players) < s.rules.MinPlayers {
		return nil, ErrNotEnoughPlayers.with("need", itoa(s.rules.MinPlayers), "have", itoa(len(s.players)))
	}
	need := max(MinDeckSize(len(s.players), s.rules.HandSize, s.winTarget), len(s.players)*s.rules.HandSize)
	if s.pool.Len() < need {
		return nil, ErrPoolTooSmall.with("need", itoa(need), "have", itoa(s.pool.Len()))
	}

	s.pool.Lock()
	s.pool.Shuffle(s.rng)
	for _, id := range s.order {
		cards, err := s.pool.Draw(s.rules.HandSize)
		if err != nil {
			return nil, err
		}
		s.players[id].addCards(cards...)
	}

	s.clearRound()
	s.lastScores = nil
	s.storyteller = playerID
	s.round = 1
	s.log.Info("game started",
		zap.Int("players", len(s.players)),
		zap.Int("pool", s.pool.Len()),
		zap.Int("win_target", s.winTarget),
	)
	return []Event{
		{Type: EvtGameStarted, PlayerID: playerID},
		{Type: EvtRoundStarted, PlayerID: playerID, Round: s.round},
		s.setPhase(PhaseStorytellerChoice, s.rules.StorytellerTimeout),
	}, nil
}

func (s *Session) StorytellerSubmit(playerID, cardID, clue string) ([]Event, error) {
	unlock, err := s.enterTransition("storyteller_submit")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.storytellerSubmit(playerID, cardID, clue)
}

func (s *Session) storytellerSubmit(playerID, cardID, clue string) ([]Event, error) {
	if err := s.requirePhase(PhaseStorytellerChoice); err != nil {
		return nil, err
	}
	p, err := s.player(playerID)
	if err != nil {
		return nil, err
	}
	if playerID != s.storyteller {
		return nil, ErrNotStoryteller
	}
	clue, ok := cleanText(clue, maxClueRunes)
	if !ok {
		return nil, ErrInvalidClue
	}
	if !p.hasCard(cardID) {
		return nil, ErrCardNotInHand
	}
	card, _ := p.removeCard(cardID)

	s.clue = clue
	s.submissions = []Submission{{Card: card, PlayerID: playerID}}
	events := []Event{{Type: EvtCardSubmitted, PlayerID: playerID, Round: s.round}}
	if quorumMet(s.phase, len(s.players), len(s.submissions), len(s.votes)) {
		events = append(events, s.setPhase(PhasePlayersChoice, s.rules.PlayersTimeout))
	}
	return events, nil
}

func (s *Session) PlayerSubmit(playerID, cardID string) ([]Event, error) {
	unlock, err := s.enterTransition("player_submit")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.playerSubmit(playerID, cardID)
}

func (s *Session) playerSubmit(playerID, cardID string) ([]Event, error) {
	if err := s.requirePhase(PhasePlayersChoice); err != nil {
		return nil, err
	}
	p, err := s.player(playerID)
	if err != nil {
		return nil, err
	}
	if playerID == s.storyteller {
		return nil, ErrIsStoryteller
	}
	if s.submissionOf(playerID) >= 0 {
		return nil, ErrAlreadySubmitted
	}
	if !p.hasCard(cardID) {
		return nil, ErrCardNotInHand
	}
	card, _ := p.removeCard(cardID)

	s.submissions = append(s.submissions, Submission{Card: card, PlayerID: playerID})
	events := []Event{{Type: EvtCardSubmitted, PlayerID: playerID, Round: s.round}}
	if quorumMet(s.phase, len(s.players), len(s.submissions), len(s.votes)) {
		events = append(events, s.beginVoting())
	}
	return events, nil
}

// beginVoting shuffles the submission set and numbers the display positions.
func (s *Session) beginVoting() Event {
	for i := len(s.submissions) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		s.submissions[i], s.submissions[j] = s.submissions[j], s.submissions[i]
	}
	s.renumber()
	return s.setPhase(PhaseVoting, s.rules.VotingTimeout)
}

func (s *Session) renumber() {
	for i := range s.submissions {
		s.submissions[i].Position = i + 1
	}
}

func (s *Session) PlayerVote(playerID, cardID string) ([]Event, error) {
	unlock, err := s.enterTransition("vote")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.vote(playerID, cardID)
}

func (s *Session) vote(playerID, cardID string) ([]Event, error) {
	if err := s.requirePhase(PhaseVoting); err != nil {
		return nil, err
	}
	if _, err := s.player(playerID); err != nil {
		return nil, err
	}
	if playerID == s.storyteller {
		return nil, ErrIsStoryteller
	}
	if s.voteOf(playerID) >= 0 {
		return nil, ErrAlreadyVoted
	}
	i := slices.IndexFunc(s.submissions, func(sub Submission) bool { return sub.Card.ID == cardID })
	if i < 0 {
		return nil, ErrCardNotFound.with("card", cardID)
	}
	if s.submissions[i].PlayerID == playerID {
		return nil, ErrOwnCardVote
	}

	s.votes = append(s.votes, Vote{VoterID: playerID, CardID: cardID})
	events := []Event{{Type: EvtVoteCast, PlayerID: playerID, Round: s.round}}
	if quorumMet(s.phase, len(s.players), len(s.submissions), len(s.votes)) {
		events = append(events, s.reveal()...)
	}
	return events, nil
}

// reveal scores the round and applies the deltas to player totals.
func (s *Session) reveal() []Event {
	var storyCard string
	if i := s.submissionOf(s.storyteller); i >= 0 {
		storyCard = s.submissions[i].Card.ID
	}
	s.lastScores = Score(s.storyteller, storyCard, s.submissions, s.votes)
	for id, delta := range Totals(s.lastScores) {
		if p, ok := s.players[id]; ok {
			p.addScore(delta)
		}
	}
	return []Event{
		{Type: EvtScoresApplied, Round: s.round},
		s.setPhase(PhaseReveal, s.rules.RevealTimeout),
	}
}

func (s *Session) AdvanceRound(playerID string) ([]Event, error) {
	unlock, err := s.enterTransition("advance_round")
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.requireAdmin(playerID); err != nil {
		return nil, err
	}
	return s.advance()
}

// advance ends the game on a winner or an exhausted pool, otherwise refills
// hands and starts the next round with the next storyteller.
func (s *Session) advance() ([]Event, error) {
	if err := s.requirePhase(PhaseReveal); err != nil {
		return nil, err
	}
	if s.hasWinner() {
		return s.endGame("win_target"), nil
	}

	s.pool.Discard(s.takeSubmissions())
	need := 0
	for _, p := range s.players {
		need += max(0, s.rules.HandSize-len(p.Hand))
	}
	if s.pool.Len() < need {
		return s.endGame("pool_exhausted"), nil
	}
	for _, id := range s.order {
		p := s.players[id]
		if short := s.rules.HandSize - len(p.Hand); short > 0 {
			cards, _ := s.pool.Draw(short)
			p.addCards(cards...)
		}
	}

	if !s.keepStoryteller {
		s.storyteller = nextInOrder(s.order, s.storyteller)
	}
	s.clearRound()
	s.round++
	return []Event{
		{Type: EvtRoundStarted, PlayerID: s.storyteller, Round: s.round},
		s.setPhase(PhaseStorytellerChoice, s.rules.StorytellerTimeout),
	}, nil
}

func (s *Session) hasWinner() bool {
	for _, p := range s.players {
		if p.Score >= s.winTarget {
			return true
		}
	}
	return false
}

func (s *Session) endGame(reason string) []Event {
	s.pool.Discard(s.takeSubmissions())
	s.clearRound()
	s.log.Info("game ended", zap.String("reason", reason), zap.Int("round", s.round))
	return []Event{
		{Type: EvtGameEnded, Round: s.round},
		s.setPhase(PhaseGameEnd, 0),
	}
}

func (s *Session) takeSubmissions() []Card {
	cards := make([]Card, 0, len(s.submissions))
	for _, sub := range s.submissions {
		cards = append(cards, sub.Card)
	}
	s.submissions = nil
	return cards
}

func (s *Session) clearRound() {
	s.submissions = nil
	s.votes = nil
	s.clue = ""
	s.keepStoryteller = false
}

func (s *Session) submissionOf(playerID string) int {
	return slices.IndexFunc(s.submissions, func(sub Submission) bool { return sub.PlayerID == playerID })
}

func (s *Session) voteOf(playerID string) int {
	return slices.IndexFunc(s.votes, func(v Vote) bool { return v.VoterID == playerID })
}

// The Auto* entry points are the timeout paths. Each synthesises arguments and
// calls the same code a client request would. When the phase has already
// moved on they return no events and no error.

func (s *Session) AutoStorytellerChoice() ([]Event, error) {
	unlock, err := s.enterTransition("auto_storyteller")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.autoStorytellerChoice()
}

func (s *Session) autoStorytellerChoice() ([]Event, error) {
	if s.phase != PhaseStorytellerChoice {
		return nil, nil
	}
	p, ok := s.players[s.storyteller]
	if !ok || len(p.Hand) == 0 {
		return nil, nil
	}
	card := p.Hand[s.rng.Intn(len(p.Hand))]
	return s.storytellerSubmit(p.ID, card.ID, AutoClue)
}

// AutoPlayerSubmit submits a random card for one random player who has not
// submitted yet.
func (s *Session) AutoPlayerSubmit() ([]Event, error) {
	unlock, err := s.enterTransition("auto_submit")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.autoPlayerSubmit()
}

func (s *Session) autoPlayerSubmit() ([]Event, error) {
	if s.phase != PhasePlayersChoice {
		return nil, nil
	}
	var pending []*Player
	for _, id := range s.order {
		p := s.players[id]
		if id != s.storyteller && s.submissionOf(id) < 0 && len(p.Hand) > 0 {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}
	p := pending[s.rng.Intn(len(pending))]
	card := p.Hand[s.rng.Intn(len(p.Hand))]
	return s.playerSubmit(p.ID, card.ID)
}

// AutoVote casts a random valid vote for one random player who has not voted.
func (s *Session) AutoVote() ([]Event, error) {
	unlock, err := s.enterTransition("auto_vote")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.autoVote()
}

func (s *Session) autoVote() ([]Event, error) {
	if s.phase != PhaseVoting {
		return nil, nil
	}
	var pending []string
	for _, id := range s.order {
		if id != s.storyteller && s.voteOf(id) < 0 {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}
	voter := pending[s.rng.Intn(len(pending))]
	var options []string
	for _, sub := range s.submissions {
		if sub.PlayerID != voter {
			options = append(options, sub.Card.ID)
		}
	}
	if len(options) == 0 {
		return nil, nil
	}
	return s.vote(voter, options[s.rng.Intn(len(options))])
}

func (s *Session) AutoAdvanceRound() ([]Event, error) {
	unlock, err := s.enterTransition("auto_advance")
	if err != nil {
		return nil, err
	}
	defer unlock()
	if s.phase != PhaseReveal {
		return nil, nil
	}
	return s.advance()
}

// HandleDeadline runs the current phase's timeout path until the phase moves
// on. Before the deadline, or in a phase without one, it does nothing.
func (s *Session) HandleDeadline(now time.Time) ([]Event, error) {
	unlock, err := s.enterTransition("deadline")
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !s.deadline.Expired(now) {
		return nil, nil
	}
	phase, round := s.phase, s.round
	var all []Event
	for s.phase == phase && s.round == round {
		var events []Event
		switch s.phase {
		case PhaseStorytellerChoice:
			events, err = s.autoStorytellerChoice()
		case PhasePlayersChoice:
			events, err = s.autoPlayerSubmit()
		case PhaseVoting:
			events, err = s.autoVote()
		case PhaseReveal:
			events, err = s.advance()
		}
		if err != nil {
			return all, err
		}
		if len(events) == 0 {
			break
		}
		all = append(all, events...)
	}
	if len(all) > 0 {
		s.log.Debug("deadline handled", zap.String("phase", string(phase)), zap.Int("events", len(all)))
	}
	return all, nil
}

// RepairHand tops up a hand that is short of what the current phase expects.
func (s *Session) RepairHand(playerID string) ([]Event, error) {
	defer s.lock()()

	p, err := s.player(playerID)
	if err != nil {
		return nil, err
	}
	if !s.phase.Active() {
		return nil, ErrWrongPhase.with("phase", string(s.phase))
	}
	want := s.rules.HandSize
	if s.submissionOf(playerID) >= 0 {
		want--
	}
	short := want - len(p.Hand)
	if short <= 0 {
		return nil, nil
	}
	cards, err := s.pool.Draw(short)
	if err != nil {
		return nil, err
	}
	p.addCards(cards...)
	s.log.Warn("hand repaired", zap.String("player", playerID), zap.Int("cards", short))
	return []Event{{Type: EvtHandRepaired, PlayerID: playerID, Round: s.round}}, nil
}
