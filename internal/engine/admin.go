package engine

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func (s *Session) admin() *Player {
	for _, id := range s.order {
		if p := s.players[id]; p.IsAdmin {
			return p
		}
	}
	return nil
}

func (s *Session) otherAdmin(id string) *Player {
	for _, oid := range s.order {
		if p := s.players[oid]; p.IsAdmin && oid != id {
			return p
		}
	}
	return nil
}

// pickAdmin chooses who inherits the role: the first connected player in join
// order, else the first registered one.
func (s *Session) pickAdmin() *Player {
	for _, id := range s.order {
		if p := s.players[id]; p.Connected {
			return p
		}
	}
	if len(s.order) > 0 {
		return s.players[s.order[0]]
	}
	return nil
}

// PromoteAdmin hands the role to another connected player.
func (s *Session) PromoteAdmin(adminID, targetID string) ([]Event, error) {
	defer s.lock()()

	cur, err := s.requireAdmin(adminID)
	if err != nil {
		return nil, err
	}
	target, err := s.player(targetID)
	if err != nil {
		return nil, err
	}
	if !target.Connected {
		return nil, ErrPlayerDisconnected
	}
	if target == cur {
		return nil, nil
	}
	cur.IsAdmin = false
	target.IsAdmin = true
	s.log.Info("admin promoted", zap.String("from", adminID), zap.String("to", targetID))
	return []Event{{Type: EvtAdminChanged, PlayerID: targetID}}, nil
}

// SetAdminSecret stores a bcrypt hash of the secret any player may later
// present to claim the admin role.
func (s *Session) SetAdminSecret(adminID, secret string) ([]Event, error) {
	defer s.lock()()

	if _, err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}
	switch {
	case len([]rune(secret)) < minSecretLen:
		return nil, ErrSecretTooShort
	case len(secret) > maxSecretBytes:
		return nil, ErrSecretTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.rules.SecretCost)
	if err != nil {
		return nil, err
	}
	s.secretHash = hash
	return []Event{{Type: EvtSecretSet, PlayerID: adminID}}, nil
}

// ClaimAdmin makes the caller admin if the secret matches, demoting the
// incumbent.
func (s *Session) ClaimAdmin(playerID, secret string) ([]Event, error) {
	defer s.lock()()

	p, err := s.player(playerID)
	if err != nil {
		return nil, err
	}
	if s.secretHash == nil {
		return nil, ErrNoAdminSecret
	}
	if bcrypt.CompareHashAndPassword(s.secretHash, []byte(secret)) != nil {
		return nil, ErrWrongSecret
	}
	if p.IsAdmin {
		return nil, nil
	}
	if cur := s.admin(); cur != nil {
		cur.IsAdmin = false
	}
	p.IsAdmin = true
	s.log.Info("admin claimed", zap.String("player", playerID))
	return []Event{{Type: EvtAdminChanged, PlayerID: playerID}}, nil
}

// FailoverAdmin moves the role off an admin who has been disconnected for at
// least grace, to the first other connected player.
func (s *Session) FailoverAdmin(grace time.Duration) ([]Event, error) {
	defer s.lock()()
	return s.failoverAdmin(grace), nil
}

func (s *Session) failoverAdmin(grace time.Duration) []Event {
	cur := s.admin()
	if cur == nil {
		if next := s.pickAdmin(); next != nil {
			next.IsAdmin = true
			return []Event{{Type: EvtAdminChanged, PlayerID: next.ID}}
		}
		return nil
	}
	if cur.Connected || s.now().Sub(cur.LastSeen) < grace {
		return nil
	}
	for _, id := range s.order {
		if p := s.players[id]; p.Connected && p != cur {
			cur.IsAdmin = false
			p.IsAdmin = true
			s.log.Info("admin failed over", zap.String("from", cur.ID), zap.String("to", p.ID))
			return []Event{{Type: EvtAdminChanged, PlayerID: p.ID}}
		}
	}
	return nil
}

// Sweep is the periodic housekeeping pass: admin failover after the grace
// period, then removal of players gone longer than the disconnect timeout.
func (s *Session) Sweep() ([]Event, error) {
	unlock, err := s.enterTransition("sweep")
	if err != nil {
		return nil, err
	}
	defer unlock()

	events := s.failoverAdmin(s.rules.AdminGrace)
	return append(events, s.cleanupDisconnected(s.rules.DisconnectTimeout)...), nil
}
