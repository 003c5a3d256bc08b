package engine

import (
	"slices"

	"go.uber.org/zap"
)

// UploadCard mints a card from image and appends it to the pool.
func (s *Session) UploadCard(playerID string, image []byte) (Card, []Event, error) {
	defer s.lock()()

	p, err := s.player(playerID)
	if err != nil {
		return Card{}, nil, err
	}
	if err := s.requirePhase(PhaseDeckBuilding); err != nil {
		return Card{}, nil, err
	}
	if err := s.pool.CheckUpload(playerID, p.IsAdmin, len(image)); err != nil {
		return Card{}, nil, err
	}
	c := Card{ID: s.newID(), Image: slices.Clone(image), UploaderID: playerID}
	s.pool.Add(c)
	return c, []Event{{Type: EvtCardUploaded, PlayerID: playerID, CardID: c.ID}}, nil
}

// DeleteCard removes a pool card. Only its uploader or the admin may do so.
// It reports whether the card existed.
func (s *Session) DeleteCard(playerID, cardID string) (bool, []Event, error) {
	defer s.lock()()

	p, err := s.player(playerID)
	if err != nil {
		return false, nil, err
	}
	if s.pool.Locked() {
		return false, nil, ErrPoolLocked
	}
	c, ok := s.pool.Find(cardID)
	if !ok {
		return false, nil, nil
	}
	if c.UploaderID != playerID && !p.IsAdmin {
		return false, nil, ErrNotCardOwner
	}
	if _, _, err := s.pool.Delete(cardID); err != nil {
		return false, nil, err
	}
	return true, []Event{{Type: EvtCardDeleted, PlayerID: playerID, CardID: cardID}}, nil
}

func (s *Session) LockPool(adminID string) ([]Event, error) {
	defer s.lock()()

	if err := s.settingsGuard(adminID); err != nil {
		return nil, err
	}
	s.pool.Lock()
	return []Event{{Type: EvtPoolLocked, PlayerID: adminID}}, nil
}

func (s *Session) UnlockPool(adminID string) ([]Event, error) {
	defer s.lock()()

	if err := s.settingsGuard(adminID); err != nil {
		return nil, err
	}
	s.pool.Unlock()
	return []Event{{Type: EvtPoolUnlocked, PlayerID: adminID}}, nil
}

func (s *Session) SetUploadMode(adminID string, mode UploadMode) ([]Event, error) {
	defer s.lock()()

	if err := s.settingsGuard(adminID); err != nil {
		return nil, err
	}
	if err := s.pool.SetMode(mode); err != nil {
		return nil, err
	}
	return []Event{{Type: EvtSettingsChanged, PlayerID: adminID}}, nil
}

func (s *Session) SetWinTarget(adminID string, target int) ([]Event, error) {
	defer s.lock()()

	if err := s.settingsGuard(adminID); err != nil {
		return nil, err
	}
	if target < MinWinTarget || target > MaxWinTarget {
		return nil, ErrInvalidWinTarget
	}
	s.winTarget = target
	return []Event{{Type: EvtSettingsChanged, PlayerID: adminID}}, nil
}

func (s *Session) SetBoardDisplaySettings(adminID string, b BoardSettings) ([]Event, error) {
	defer s.lock()()

	if err := s.settingsGuard(adminID); err != nil {
		return nil, err
	}
	if b.Layout != LayoutTrack && b.Layout != LayoutGrid {
		return nil, ErrInvalidBoard
	}
	if len(b.Background) > maxAvatarBytes {
		return nil, ErrInvalidBoard
	}
	s.board = b
	return []Event{{Type: EvtSettingsChanged, PlayerID: adminID}}, nil
}

// settingsGuard admits admin-only changes made while the deck is being built.
func (s *Session) settingsGuard(adminID string) error {
	if _, err := s.requireAdmin(adminID); err != nil {
		return err
	}
	return s.requirePhase(PhaseDeckBuilding)
}

// ResetGame returns to deck building with the same cards and settings. Hands,
// the round's submissions and the discard pile all go back into the pool.
func (s *Session) ResetGame(adminID string) ([]Event, error) {
	unlock, err := s.enterTransition("reset_game")
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}
	returned := s.takeSubmissions()
	for _, id := range s.order {
		p := s.players[id]
		returned = append(returned, p.takeHand()...)
		p.Score = 0
	}
	s.pool.Reset(returned)
	s.restart()
	s.log.Info("game reset", zap.Int("pool", s.pool.Len()))
	return []Event{
		{Type: EvtGameReset, PlayerID: adminID},
		s.setPhase(PhaseDeckBuilding, 0),
	}, nil
}

// NewDeck wipes every card and setting back to defaults.
func (s *Session) NewDeck(adminID string) ([]Event, error) {
	unlock, err := s.enterTransition("new_deck")
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}
	s.submissions = nil
	for _, p := range s.players {
		p.Hand = nil
		p.Score = 0
	}
	s.pool.Clear()
	s.resetSettings()
	s.restart()
	s.log.Info("deck cleared")
	return []Event{
		{Type: EvtDeckCleared, PlayerID: adminID},
		s.setPhase(PhaseDeckBuilding, 0),
	}, nil
}

func (s *Session) restart() {
	s.clearRound()
	s.lastScores = nil
	s.storyteller = ""
	s.round = 0
}
