package hub

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/avialu/dixit-sub000/internal/engine"
	"github.com/avialu/dixit-sub000/internal/lobby"
	"github.com/avialu/dixit-sub000/internal/logging"
)

type HubMsg interface{ isHubMsg() }

// CreateLobby replies nil if Code is already taken.
type CreateLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// RemoveLobby forgets Code. If Lobby is set, only that instance is removed.
type RemoveLobby struct {
	Code  string
	Lobby *lobby.Lobby
}

type ListLobbies struct {
	Reply chan []string
}

type ShutdownHub struct {
	Reply chan []*lobby.Lobby
}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (RemoveLobby) isHubMsg() {}
func (ListLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Config struct {
	Rules  engine.Rules
	Lobby  lobby.Config
	Logger *zap.Logger
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	cfg     Config
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		cfg:     cfg,
		log:     cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				if h.lobbies[msg.Code] != nil {
					msg.Reply <- nil
					break
				}
				msg.Reply <- h.create(msg.Code)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case RemoveLobby:
				if lb := h.lobbies[msg.Code]; lb != nil && (msg.Lobby == nil || msg.Lobby == lb) {
					delete(h.lobbies, msg.Code)
					h.log.Info("lobby removed", zap.String("room", msg.Code), zap.Int("lobbies", len(h.lobbies)))
				}

			case ListLobbies:
				codes := make([]string, 0, len(h.lobbies))
				for code := range h.lobbies {
					codes = append(codes, code)
				}
				msg.Reply <- codes

			case ShutdownHub:
				all := make([]*lobby.Lobby, 0, len(h.lobbies))
				for _, lb := range h.lobbies {
					all = append(all, lb)
				}
				clear(h.lobbies)
				msg.Reply <- all
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) create(code string) *lobby.Lobby {
	log := logging.Room(h.log, code)
	session := engine.NewSession(h.cfg.Rules, engine.WithLogger(log))

	cfg := h.cfg.Lobby
	cfg.Logger = log
	cfg.OnIdle = func(lb *lobby.Lobby) {
		select {
		case h.inbox <- RemoveLobby{Code: code, Lobby: lb}:
		case <-h.ctx.Done():
		}
	}
	lb := lobby.NewLobby(h.ctx, code, session, cfg)
	h.lobbies[code] = lb
	h.log.Info("lobby created", zap.String("room", code), zap.Int("lobbies", len(h.lobbies)))
	return lb
}

var ErrStopped = errors.New("hub stopped")

func (h *Hub) ask(ctx context.Context, msg HubMsg) error {
	select {
	case h.inbox <- msg:
		return nil
	case <-h.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx, hubCtx context.Context, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-hubCtx.Done():
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Get returns the lobby for code or nil.
func (h *Hub) Get(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.ask(ctx, GetLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h.ctx, reply)
}

// Create starts a lobby under code, returning nil if the code is taken.
func (h *Hub) Create(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.ask(ctx, CreateLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h.ctx, reply)
}

// Codes lists the live room codes.
func (h *Hub) Codes(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := h.ask(ctx, ListLobbies{Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h.ctx, reply)
}

// Shutdown stops every lobby and waits for them until ctx expires.
func (h *Hub) Shutdown(ctx context.Context) error {
	reply := make(chan []*lobby.Lobby, 1)
	if err := h.ask(ctx, ShutdownHub{Reply: reply}); err != nil {
		return err
	}
	var lobbies []*lobby.Lobby
	select {
	case lobbies = <-reply:
	case <-ctx.Done():
		return ctx.Err()
	}

	var err error
	for _, lb := range lobbies {
		if perr := lb.Post(ctx, lobby.Shutdown{}); perr != nil && !errors.Is(perr, lobby.ErrClosed) {
			err = multierr.Append(err, fmt.Errorf("lobby %s: %w", lb.Code(), perr))
			continue
		}
		select {
		case <-lb.Done():
		case <-ctx.Done():
			err = multierr.Append(err, fmt.Errorf("lobby %s: %w", lb.Code(), ctx.Err()))
		}
	}
	return err
}
