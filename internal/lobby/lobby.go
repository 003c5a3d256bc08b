package lobby

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/avialu/dixit-sub000/internal/engine"
)

type Msg interface{ isLobbyMsg() }

// FromClient applies a command on behalf of Cmd.PlayerID. Reply, if set,
// receives the outcome and must have room for one value.
type FromClient struct {
	Cmd   engine.Command
	Reply chan<- Result
}

func (FromClient) isLobbyMsg() {}

type Result struct {
	Events []engine.Event
	Err    error
}

// Join subscribes a connection to snapshots. PlayerID selects the private
// view; it is empty for spectators.
type Join struct {
	ClientID string
	PlayerID string
	Outbox   chan Snapshot
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// TimerFired is posted by the deadline timer. Fires from an older generation
// are dropped.
type TimerFired struct{ Gen int }

func (TimerFired) isLobbyMsg() {}

type Snapshot struct {
	Version int
	Room    engine.RoomView
	Player  *engine.PlayerView
	Events  []engine.Event
}

type View struct {
	Version    int
	NumClients int
	Room       engine.RoomView
}

type Config struct {
	SweepInterval time.Duration
	// IdleTimeout closes the lobby once it has had no subscribers this long.
	// Zero disables it.
	IdleTimeout time.Duration
	Logger      *zap.Logger
	// OnIdle runs on the lobby goroutine after an idle shutdown.
	OnIdle func(*Lobby)
}

type subscriber struct {
	playerID string
	out      chan Snapshot
}

type Lobby struct {
	code    string
	inbox   chan Msg
	session *engine.Session
	version int
	clients map[string]subscriber
	log     *zap.Logger

	cfg        Config
	timer      *time.Timer
	timerGen   int
	armedFor   engine.Deadline
	emptySince time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var ErrClosed = errors.New("lobby closed")

func NewLobby(parent context.Context, code string, session *engine.Session, cfg Config) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	l := &Lobby{
		code:       code,
		inbox:      make(chan Msg, 64),
		session:    session,
		clients:    make(map[string]subscriber),
		log:        cfg.Logger,
		cfg:        cfg,
		emptySince: time.Now(),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)

	var tick <-chan time.Time
	if l.cfg.SweepInterval > 0 {
		t := time.NewTicker(l.cfg.SweepInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case <-tick:
			events, err := l.session.Sweep()
			if err != nil {
				l.log.Warn("sweep failed", zap.Error(err))
			}
			l.changed(events)
			if l.idle() {
				l.log.Info("closing idle lobby")
				l.shutdown()
				if l.cfg.OnIdle != nil {
					l.cfg.OnIdle(l)
				}
				return
			}

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.clients[msg.ClientID] = subscriber{playerID: msg.PlayerID, out: msg.Outbox}
				l.send(msg.ClientID, l.clients[msg.ClientID], l.session.RoomView(), nil)

			case Leave:
				delete(l.clients, msg.ClientID)
				if len(l.clients) == 0 {
					l.emptySince = time.Now()
				}

			case FromClient:
				events, err := l.session.Apply(msg.Cmd)
				if msg.Reply != nil {
					msg.Reply <- Result{Events: events, Err: err}
				}
				if err != nil {
					l.log.Debug("command rejected",
						zap.String("type", string(msg.Cmd.Type)),
						zap.String("player", msg.Cmd.PlayerID),
						zap.Error(err),
					)
					break
				}
				l.changed(events)

			case TimerFired:
				if msg.Gen != l.timerGen {
					break
				}
				events, err := l.session.HandleDeadline(time.Now())
				if err != nil {
					l.log.Warn("deadline handling failed", zap.Error(err))
				}
				l.changed(events)

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					Room:       l.session.RoomView(),
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// changed bumps the version and broadcasts when events were produced.
func (l *Lobby) changed(events []engine.Event) {
	if len(events) == 0 {
		return
	}
	l.version++
	l.broadcast(events)
	l.rearm()
}

// rearm starts a timer for the session's deadline unless one is already
// running for it. Every arm bumps the generation so older fires are ignored.
func (l *Lobby) rearm() {
	d := l.session.Deadline()
	if d == l.armedFor {
		return
	}
	l.stopTimer()
	l.armedFor = d
	if d.IsZero() {
		return
	}
	l.timerGen++
	gen := l.timerGen
	l.timer = time.AfterFunc(time.Until(d.At()), func() {
		select {
		case l.inbox <- TimerFired{Gen: gen}:
		case <-l.ctx.Done():
		}
	})
}

func (l *Lobby) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.timerGen++
}

func (l *Lobby) idle() bool {
	return l.cfg.IdleTimeout > 0 && len(l.clients) == 0 && time.Since(l.emptySince) >= l.cfg.IdleTimeout
}

func (l *Lobby) shutdown() {
	l.stopTimer()
	for id, c := range l.clients {
		close(c.out) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(events []engine.Event) {
	room := l.session.RoomView()
	for id, c := range l.clients {
		l.send(id, c, room, events)
	}
}

// send delivers one snapshot, dropping the client if its outbox is full.
func (l *Lobby) send(id string, c subscriber, room engine.RoomView, events []engine.Event) {
	snap := Snapshot{Version: l.version, Room: room, Events: events}
	if c.playerID != "" {
		if pv, err := l.session.PlayerView(c.playerID); err == nil {
			snap.Player = &pv
		}
	}
	select {
	case c.out <- snap:
	default:
		// Client is slow/full - drop them.
		close(c.out)
		delete(l.clients, id)
		if len(l.clients) == 0 {
			l.emptySince = time.Now()
		}
	}
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) Code() string { return l.code }

// Done is closed once the lobby goroutine has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Do applies cmd and waits for the outcome.
func (l *Lobby) Do(ctx context.Context, cmd engine.Command) ([]engine.Event, error) {
	reply := make(chan Result, 1)
	if err := l.Post(ctx, FromClient{Cmd: cmd, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.Events, r.Err
	case <-l.ctx.Done():
		select {
		case r := <-reply:
			return r.Events, r.Err
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// State returns the current room view.
func (l *Lobby) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.Post(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.ctx.Done():
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Post delivers msg unless the lobby has stopped.
func (l *Lobby) Post(ctx context.Context, msg Msg) error {
	select {
	case l.inbox <- msg:
		return nil
	case <-l.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
