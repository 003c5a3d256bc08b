package engine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Phase string

const (
	PhaseDeckBuilding      Phase = "deck_building"
	PhaseStorytellerChoice Phase = "storyteller_choice"
	PhasePlayersChoice     Phase = "players_choice"
	PhaseVoting            Phase = "voting"
	PhaseReveal            Phase = "reveal"
	PhaseGameEnd           Phase = "game_end"
)

// Active reports whether a round is being played.
func (p Phase) Active() bool {
	switch p {
	case PhaseStorytellerChoice, PhasePlayersChoice, PhaseVoting, PhaseReveal:
		return true
	}
	return false
}

// Submission is a card placed into the round. Position is assigned when the
// set is shuffled for voting and is zero before that.
type Submission struct {
	Card     Card
	PlayerID string
	Position int
}

type Vote struct {
	VoterID string
	CardID  string
}

// BoardSettings are cosmetic options relayed to every client.
type BoardSettings struct {
	Layout     string `json:"layout"`
	Background string `json:"background,omitempty"`
	Animations bool   `json:"animations"`
}

const (
	LayoutTrack = "track"
	LayoutGrid  = "grid"
)

// Deadline is advisory; an external scheduler calls HandleDeadline once it
// has passed.
type Deadline struct {
	Start    time.Time
	Duration time.Duration
}

func (d Deadline) IsZero() bool { return d.Start.IsZero() }
func (d Deadline) At() time.Time { return d.Start.Add(d.Duration) }
func (d Deadline) Expired(now time.Time) bool {
	return !d.IsZero() && !now.Before(d.At())
}

type Rules struct {
	HandSize         int
	MinPlayers       int
	CardQuota        int
	MaxCardBytes     int
	DefaultWinTarget int

	StorytellerTimeout time.Duration
	PlayersTimeout     time.Duration
	VotingTimeout      time.Duration
	RevealTimeout      time.Duration

	AdminGrace        time.Duration
	DisconnectTimeout time.Duration

	// SecretCost is the bcrypt cost used for the admin secret.
	SecretCost int
}

// Session is one room's game. It owns the player registry, the card pool and
// the round state; callers only touch them through its methods.
type Session struct {
	mu sync.Mutex

	// transition is held for the whole of a round-advancing operation.
	transition sync.Mutex

	rules Rules
	log   *zap.Logger
	rng   *rand.Rand
	now   func() time.Time
	newID func() string

	players map[string]*Player
	order   []string
	pool    *Pool

	phase       Phase
	round       int
	storyteller string
	clue        string
	submissions []Submission
	votes       []Vote
	lastScores  []ScoreDelta
	winTarget   int
	board       BoardSettings
	deadline    Deadline
	secretHash  []byte

	// keepStoryteller is set when the storyteller left during reveal and a
	// successor was already seated.
	keepStoryteller bool
}

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

func WithRand(r *rand.Rand) Option {
	return func(s *Session) { s.rng = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithIDGenerator(f func() string) Option {
	return func(s *Session) { s.newID = f }
}

func NewSession(rules Rules, opts ...Option) *Session {
	s := &Session{
		rules:   rules,
		log:     zap.NewNop(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
		newID:   uuid.NewString,
		players: map[string]*Player{},
		pool:    NewPool(rules.MaxCardBytes, rules.CardQuota),
	}
	for _, o := range opts {
		o(s)
	}
	s.resetSettings()
	s.phase = PhaseDeckBuilding
	return s
}

func (s *Session) resetSettings() {
	s.winTarget = s.rules.DefaultWinTarget
	s.board = BoardSettings{Layout: LayoutTrack, Animations: true}
}

// lock is taken by operations that can never complete a quorum.
func (s *Session) lock() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

// enterTransition guards every operation that may advance the round. It
// never waits for another transition: the caller gets ErrProcessing and may
// retry, so a quorum transition cannot be queued behind itself and fire
// twice. Plain reads and edits only delay it.
func (s *Session) enterTransition(op string) (func(), error) {
	if !s.transition.TryLock() {
		return nil, ErrProcessing.with("op", op)
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.transition.Unlock()
	}, nil
}

func (s *Session) Phase() Phase {
	defer s.lock()()
	return s.phase
}

func (s *Session) Deadline() Deadline {
	defer s.lock()()
	return s.deadline
}

func (s *Session) PlayerCount() int {
	defer s.lock()()
	return len(s.players)
}

func (s *Session) player(id string) (*Player, error) {
	p, ok := s.players[id]
	if !ok {
		return nil, ErrPlayerNotFound.with("player", id)
	}
	return p, nil
}

func (s *Session) requireAdmin(id string) (*Player, error) {
	p, err := s.player(id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin {
		return nil, ErrNotAdmin
	}
	return p, nil
}

func (s *Session) requirePhase(want ...Phase) error {
	for _, w := range want {
		if s.phase == w {
			return nil
		}
	}
	return ErrWrongPhase.with("phase", string(s.phase))
}

// setPhase moves to next and arms its deadline. A zero timeout clears it.
func (s *Session) setPhase(next Phase, timeout time.Duration) Event {
	from := s.phase
	s.phase = next
	if timeout > 0 {
		s.deadline = Deadline{Start: s.now(), Duration: timeout}
	} else {
		s.deadline = Deadline{}
	}
	s.log.Info("phase changed",
		zap.String("from", string(from)),
		zap.String("to", string(next)),
		zap.Int("round", s.round),
	)
	return Event{Type: EvtPhaseChanged, Phase: next, Round: s.round}
}
