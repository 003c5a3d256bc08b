package engine

import (
	"math/rand"
	"slices"
)

// UploadMode decides who may contribute cards during deck building.
type UploadMode string

const (
	UploadMixed       UploadMode = "mixed"
	UploadAdminOnly   UploadMode = "admin_only"
	UploadPlayersOnly UploadMode = "players_only"
)

func (m UploadMode) valid() bool {
	switch m {
	case UploadMixed, UploadAdminOnly, UploadPlayersOnly:
		return true
	}
	return false
}

// allows reports whether a player with the given admin flag may upload.
func (m UploadMode) allows(isAdmin bool) bool {
	switch m {
	case UploadAdminOnly:
		return isAdmin
	case UploadPlayersOnly:
		return !isAdmin
	default:
		return true
	}
}

// Card is an uploaded image. UploaderID is the ownership tag used for quota
// and delete rights.
type Card struct {
	ID         string
	Image      []byte
	UploaderID string
}

// Pool owns every card that is neither in a hand nor in the current round's
// submission set: the undealt deck plus the discard pile of finished rounds.
type Pool struct {
	cards    []Card
	discard  []Card
	uploads  map[string]int
	locked   bool
	mode     UploadMode
	maxBytes int
	quota    int
}

func NewPool(maxBytes, quota int) *Pool {
	return &Pool{
		uploads:  map[string]int{},
		mode:     UploadMixed,
		maxBytes: maxBytes,
		quota:    quota,
	}
}

func (p *Pool) Len() int { return len(p.cards) }
func (p *Pool) Locked() bool { return p.locked }
func (p *Pool) Mode() UploadMode { return p.mode }
func (p *Pool) Uploads(id string) int { return p.uploads[id] }

// Cards returns a copy of the undealt cards in draw order.
func (p *Pool) Cards() []Card {
	return slices.Clone(p.cards)
}

// CheckUpload validates an upload without mutating the pool.
func (p *Pool) CheckUpload(uploaderID string, isAdmin bool, size int) error {
	switch {
	case p.locked:
		return ErrPoolLocked
	case size == 0:
		return ErrEmptyImage
	case size > p.maxBytes:
		return ErrImageTooLarge
	case !p.mode.allows(isAdmin):
		return ErrUploadForbidden.with("mode", string(p.mode))
	case p.uploads[uploaderID] >= p.quota:
		return ErrQuotaExceeded
	}
	return nil
}

// Add appends a validated card. Callers run CheckUpload first.
func (p *Pool) Add(c Card) {
	p.cards = append(p.cards, c)
	p.uploads[c.UploaderID]++
}

// Delete removes a card from the undealt pool and reports whether it existed.
func (p *Pool) Delete(id string) (Card, bool, error) {
	if p.locked {
		return Card{}, false, ErrPoolLocked
	}
	i := p.index(id)
	if i < 0 {
		return Card{}, false, nil
	}
	c := p.cards[i]
	p.cards = slices.Delete(p.cards, i, i+1)
	p.uploads[c.UploaderID]--
	if p.uploads[c.UploaderID] <= 0 {
		delete(p.uploads, c.UploaderID)
	}
	return c, true, nil
}

func (p *Pool) Find(id string) (Card, bool) {
	i := p.index(id)
	if i < 0 {
		return Card{}, false
	}
	return p.cards[i], true
}

func (p *Pool) index(id string) int {
	return slices.IndexFunc(p.cards, func(c Card) bool { return c.ID == id })
}

func (p *Pool) Lock() { p.locked = true }
func (p *Pool) Unlock() { p.locked = false }

func (p *Pool) SetMode(m UploadMode) error {
	if !m.valid() {
		return ErrInvalidUploadMode
	}
	p.mode = m
	return nil
}

// Shuffle applies a Fisher-Yates permutation to the undealt cards.
func (p *Pool) Shuffle(rng *rand.Rand) {
	for i := len(p.cards) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		p.cards[i], p.cards[j] = p.cards[j], p.cards[i]
	}
}

// Draw removes exactly n cards from the front of the pool. It never draws
// partially.
func (p *Pool) Draw(n int) ([]Card, error) {
	if n < 0 || n > len(p.cards) {
		return nil, ErrPoolTooSmall.with("need", itoa(n), "have", itoa(len(p.cards)))
	}
	out := slices.Clone(p.cards[:n])
	p.cards = slices.Delete(p.cards, 0, n)
	return out, nil
}

// Return puts previously drawn cards back at the end of the pool. Upload
// counters are untouched since the cards never stopped existing.
func (p *Pool) Return(cards []Card) {
	p.cards = append(p.cards, cards...)
}

// Discard parks cards played in a finished round until the next reset.
func (p *Pool) Discard(cards []Card) {
	p.discard = append(p.discard, cards...)
}

// Transfer retags every card uploaded by from, including the given cards held
// outside the pool, as uploaded by to. Pool membership is unchanged.
func (p *Pool) Transfer(from, to string, elsewhere [][]Card) {
	if from == to {
		return
	}
	retag := func(cards []Card) {
		for i := range cards {
			if cards[i].UploaderID == from {
				cards[i].UploaderID = to
			}
		}
	}
	retag(p.cards)
	retag(p.discard)
	for _, cs := range elsewhere {
		retag(cs)
	}
	if n := p.uploads[from]; n > 0 {
		p.uploads[to] += n
		delete(p.uploads, from)
	}
}

// Reset unlocks the pool and folds the discard pile and any returned cards
// back in. Uploaded cards and the upload mode are kept.
func (p *Pool) Reset(returned []Card) {
	p.cards = append(p.cards, p.discard...)
	p.cards = append(p.cards, returned...)
	p.discard = nil
	p.locked = false
}

// Clear wipes every card and setting back to defaults.
func (p *Pool) Clear() {
	p.cards = nil
	p.discard = nil
	p.uploads = map[string]int{}
	p.locked = false
	p.mode = UploadMixed
}
