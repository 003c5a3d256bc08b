package engine

import (
	"slices"
	"time"
)

// Player is a registry entry. Only the Session mutates it.
type Player struct {
	ID        string
	Name      string
	Avatar    string
	IsAdmin   bool
	Connected bool
	LastSeen  time.Time
	Hand      []Card
	Score     int
}

func newPlayer(id, name string, now time.Time) *Player {
	return &Player{
		ID:        id,
		Name:      name,
		Connected: true,
		LastSeen:  now,
	}
}

func (p *Player) addCards(cards ...Card) {
	p.Hand = append(p.Hand, cards...)
}

// removeCard takes a card out of the hand, reporting whether it was held.
func (p *Player) removeCard(id string) (Card, bool) {
	i := slices.IndexFunc(p.Hand, func(c Card) bool { return c.ID == id })
	if i < 0 {
		return Card{}, false
	}
	c := p.Hand[i]
	p.Hand = slices.Delete(p.Hand, i, i+1)
	return c, true
}

func (p *Player) hasCard(id string) bool {
	return slices.ContainsFunc(p.Hand, func(c Card) bool { return c.ID == id })
}

// takeHand empties the hand and returns what was in it.
func (p *Player) takeHand() []Card {
	h := p.Hand
	p.Hand = nil
	return h
}

func (p *Player) addScore(delta int) {
	p.Score += delta
}

func (p *Player) markConnected(now time.Time) {
	p.Connected = true
	p.LastSeen = now
}

func (p *Player) markDisconnected(now time.Time) {
	p.Connected = false
	p.LastSeen = now
}

func (p *Player) setAvatar(ref string) {
	p.Avatar = ref
}
