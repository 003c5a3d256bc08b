package engine

import (
	"slices"
	"time"

	"go.uber.org/zap"
)

// AddPlayer registers a new, connected player. The first player to arrive
// while nobody holds the admin role becomes admin.
func (s *Session) AddPlayer(id, name string) ([]Event, error) {
	defer s.lock()()
	return s.addPlayer(id, name, true)
}

// ReservePlayer seats a player who has no connection yet. They count as
// disconnected from now, so cleanup removes them if they never reconnect.
func (s *Session) ReservePlayer(id, name string) ([]Event, error) {
	defer s.lock()()
	return s.addPlayer(id, name, false)
}

func (s *Session) addPlayer(id, name string, connected bool) ([]Event, error) {

	if id == "" {
		return nil, ErrInvalidPlayerID
	}
	if _, ok := s.players[id]; ok {
		return nil, ErrPlayerExists
	}
	name, ok := cleanText(name, maxNameRunes)
	if !ok {
		return nil, ErrInvalidName
	}
	if s.phase.Active() {
		return nil, ErrGameInProgress
	}

	p := newPlayer(id, name, s.now())
	if !connected {
		p.markDisconnected(s.now())
	}
	s.players[id] = p
	s.order = append(s.order, id)
	events := []Event{{Type: EvtPlayerJoined, PlayerID: id}}
	if s.admin() == nil {
		p.IsAdmin = true
		events = append(events, Event{Type: EvtAdminChanged, PlayerID: id})
	}
	s.log.Info("player joined", zap.String("player", id), zap.Bool("admin", p.IsAdmin))
	return events, nil
}

// ReconnectPlayer restores a soft-disconnected player. If someone else took
// the admin role meanwhile the returning player's flag is dropped.
func (s *Session) ReconnectPlayer(id string) ([]Event, error) {
	defer s.lock()()

	p, err := s.player(id)
	if err != nil {
		return nil, err
	}
	p.markConnected(s.now())
	events := []Event{{Type: EvtPlayerReconnected, PlayerID: id}}

	switch other := s.otherAdmin(id); {
	case p.IsAdmin && other != nil:
		p.IsAdmin = false
		s.log.Info("stale admin flag cleared on reconnect", zap.String("player", id), zap.String("admin", other.ID))
	case !p.IsAdmin && s.admin() == nil:
		p.IsAdmin = true
		events = append(events, Event{Type: EvtAdminChanged, PlayerID: id})
	}
	return events, nil
}

// RemovePlayer is the soft disconnect: the player keeps their seat, hand and
// role until they reconnect, fail over, or get swept.
func (s *Session) RemovePlayer(id string) ([]Event, error) {
	defer s.lock()()

	p, err := s.player(id)
	if err != nil {
		return nil, err
	}
	p.markDisconnected(s.now())
	return []Event{{Type: EvtPlayerDisconnected, PlayerID: id}}, nil
}

func (s *Session) LeavePlayer(id string) ([]Event, error) {
	unlock, err := s.enterTransition("leave")
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.player(id); err != nil {
		return nil, err
	}
	return s.removeLocked(id), nil
}

func (s *Session) KickPlayer(adminID, targetID string) ([]Event, error) {
	unlock, err := s.enterTransition("kick")
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}
	if _, err := s.player(targetID); err != nil {
		return nil, err
	}
	if adminID == targetID {
		return nil, ErrKickSelf
	}
	events := []Event{{Type: EvtPlayerKicked, PlayerID: targetID}}
	return append(events, s.removeLocked(targetID)...), nil
}

// CleanupDisconnected hard-removes every player disconnected for at least
// maxAge.
func (s *Session) CleanupDisconnected(maxAge time.Duration) ([]Event, error) {
	unlock, err := s.enterTransition("cleanup")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.cleanupDisconnected(maxAge), nil
}

func (s *Session) cleanupDisconnected(maxAge time.Duration) []Event {
	now := s.now()
	var events []Event
	for _, id := range slices.Clone(s.order) {
		p := s.players[id]
		if !p.Connected && now.Sub(p.LastSeen) >= maxAge {
			events = append(events, s.removeLocked(id)...)
		}
	}
	return events
}

// removeLocked hard-removes a player: the admin role moves on, their hand
// returns to the pool, the round recovers from their absence, and the cards
// they uploaded are retagged to the admin.
func (s *Session) removeLocked(id string) []Event {
	p := s.players[id]
	successor := nextInOrder(s.order, id)

	delete(s.players, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	events := []Event{{Type: EvtPlayerLeft, PlayerID: id}}
	s.log.Info("player removed", zap.String("player", id), zap.String("phase", string(s.phase)))

	if p.IsAdmin {
		if next := s.pickAdmin(); next != nil {
			next.IsAdmin = true
			events = append(events, Event{Type: EvtAdminChanged, PlayerID: next.ID})
		}
	}
	if len(p.Hand) > 0 {
		s.pool.Return(p.takeHand())
	}
	events = append(events, s.withdraw(id, successor)...)

	if admin := s.admin(); admin != nil && s.pool.Uploads(id) > 0 {
		s.transferUploads(id, admin.ID)
		events = append(events, Event{Type: EvtCardsTransferred, PlayerID: admin.ID})
	}
	return events
}

// withdraw restores round invariants after id left. successor is the player
// who followed id in join order.
func (s *Session) withdraw(id, successor string) []Event {
	if !s.phase.Active() {
		return nil
	}
	if len(s.players) < s.rules.MinPlayers {
		return s.endGame("not_enough_players")
	}

	if id == s.storyteller {
		if s.phase == PhaseReveal {
			s.storyteller = successor
			s.keepStoryteller = true
			return nil
		}
		return s.abortRound(successor)
	}

	switch s.phase {
	case PhasePlayersChoice:
		s.dropSubmission(id)
		if quorumMet(s.phase, len(s.players), len(s.submissions), len(s.votes)) {
			return []Event{s.beginVoting()}
		}
	case PhaseVoting:
		if card, ok := s.dropSubmission(id); ok {
			// Voters who picked the withdrawn card vote again.
			s.votes = slices.DeleteFunc(s.votes, func(v Vote) bool { return v.CardID == card.ID })
		}
		s.votes = slices.DeleteFunc(s.votes, func(v Vote) bool { return v.VoterID == id })
		s.renumber()
		if quorumMet(s.phase, len(s.players), len(s.submissions), len(s.votes)) {
			return s.reveal()
		}
	}
	return nil
}

func (s *Session) dropSubmission(id string) (Card, bool) {
	i := s.submissionOf(id)
	if i < 0 {
		return Card{}, false
	}
	card := s.submissions[i].Card
	s.submissions = slices.Delete(s.submissions, i, i+1)
	s.pool.Return([]Card{card})
	return card, true
}

// abortRound hands submitted cards back and restarts the round with the next
// storyteller. The round number is kept since no round was completed.
func (s *Session) abortRound(storyteller string) []Event {
	for _, sub := range s.submissions {
		if p, ok := s.players[sub.PlayerID]; ok {
			p.addCards(sub.Card)
		} else {
			s.pool.Return([]Card{sub.Card})
		}
	}
	s.clearRound()
	s.storyteller = storyteller
	return []Event{
		{Type: EvtRoundAborted, PlayerID: storyteller, Round: s.round},
		s.setPhase(PhaseStorytellerChoice, s.rules.StorytellerTimeout),
	}
}

func (s *Session) transferUploads(from, to string) {
	hands := make([][]Card, 0, len(s.players))
	for _, p := range s.players {
		hands = append(hands, p.Hand)
	}
	s.pool.Transfer(from, to, hands)
	for i := range s.submissions {
		if s.submissions[i].Card.UploaderID == from {
			s.submissions[i].Card.UploaderID = to
		}
	}
}

func (s *Session) ChangeName(id, name string) ([]Event, error) {
	defer s.lock()()

	p, err := s.player(id)
	if err != nil {
		return nil, err
	}
	name, ok := cleanText(name, maxNameRunes)
	if !ok {
		return nil, ErrInvalidName
	}
	p.Name = name
	return []Event{{Type: EvtProfileChanged, PlayerID: id}}, nil
}

// SetTokenImage sets the player's avatar reference. An empty ref clears it.
func (s *Session) SetTokenImage(id, ref string) ([]Event, error) {
	defer s.lock()()

	p, err := s.player(id)
	if err != nil {
		return nil, err
	}
	if len(ref) > maxAvatarBytes {
		return nil, ErrInvalidAvatar
	}
	p.setAvatar(ref)
	return []Event{{Type: EvtProfileChanged, PlayerID: id}}, nil
}
