package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avialu/dixit-sub000/internal/auth"
	"github.com/avialu/dixit-sub000/internal/engine"
	"github.com/avialu/dixit-sub000/internal/hub"
	"github.com/avialu/dixit-sub000/internal/lobby"
	"github.com/avialu/dixit-sub000/internal/types"
)

type Options struct {
	OriginPatterns []string

	// ReadLimit caps one inbound frame; card images arrive base64 encoded.
	ReadLimit    int64
	PingInterval time.Duration
	Logger       *zap.Logger
}

const writeTimeout = 3 * time.Second

// Handler upgrades /ws?code=ROOM&token=JWT. The token's player is marked
// connected for the lifetime of the socket and disconnected when it closes.
func Handler(h *hub.Hub, tokens *auth.Issuer, opts Options) http.HandlerFunc {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 20 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(r.URL.Query().Get("code"))
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		token := r.URL.Query().Get("token")
		if token == "" {
			token = auth.FromHeader(r.Header.Get("Authorization"))
		}

		lb, err := h.Get(r.Context(), code)
		if err != nil || lb == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}
		claims, err := tokens.Verify(token, code)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		if opts.ReadLimit > 0 {
			conn.SetReadLimit(opts.ReadLimit)
		}

		log := log.With(zap.String("room", code), zap.String("player", claims.Player))
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if _, err := lb.Do(ctx, engine.Command{Type: engine.CmdReconnect, PlayerID: claims.Player}); err != nil {
			writeMsg(ctx, conn, types.ServerMessage{Type: types.MsgError, Error: types.NewErrorBody(err)})
			conn.Close(websocket.StatusPolicyViolation, "not seated")
			return
		}

		out := make(chan lobby.Snapshot, 8)
		clientID := uuid.NewString()
		if err := lb.Post(ctx, lobby.Join{ClientID: clientID, PlayerID: claims.Player, Outbox: out}); err != nil {
			return
		}
		log.Info("client connected", zap.String("client", clientID))
		defer func() {
			bg, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			_ = lb.Post(bg, lobby.Leave{ClientID: clientID})
			_, _ = lb.Do(bg, engine.Command{Type: engine.CmdDisconnect, PlayerID: claims.Player})
			log.Info("client disconnected", zap.String("client", clientID))
		}()

		// Writer goroutine
		go func() {
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return
				case snap, ok := <-out:
					if !ok {
						// Dropped as slow or the lobby stopped.
						conn.Close(websocket.StatusGoingAway, "lobby closed")
						return
					}
					writeMsg(ctx, conn, types.ServerMessage{
						Type:    types.MsgSnapshot,
						Version: snap.Version,
						Room:    &snap.Room,
						You:     snap.Player,
						Events:  snap.Events,
					})
				}
			}
		}()

		go heartbeat(ctx, conn, opts.PingInterval, cancel)

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if !errors.Is(err, context.Canceled) {
						log.Debug("read failed", zap.Error(err))
					}
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeMsg(ctx, conn, types.ServerMessage{
					Type:  types.MsgError,
					Error: &types.ErrorBody{Code: "BAD_JSON", Message: "bad json"},
				})
				continue
			}

			cmd, ok := toEngineCommand(cm, claims.Player)
			if !ok {
				writeMsg(ctx, conn, types.ServerMessage{
					Type:      types.MsgError,
					RequestID: cm.RequestID,
					Error:     types.NewErrorBody(engine.ErrUnsupportedCommand),
				})
				continue
			}

			events, err := lb.Do(ctx, cmd)
			if err != nil {
				writeMsg(ctx, conn, types.ServerMessage{Type: types.MsgError, RequestID: cm.RequestID, Error: types.NewErrorBody(err)})
				if errors.Is(err, lobby.ErrClosed) {
					return
				}
				continue
			}
			writeMsg(ctx, conn, types.ServerMessage{Type: types.MsgAck, RequestID: cm.RequestID, Events: events})
		}
	}
}

func writeMsg(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}

func heartbeat(ctx context.Context, conn *websocket.Conn, every time.Duration, stop func()) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, every)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				stop()
				return
			}
		}
	}
}

// sessionCommands are the commands a socket may send. Join, Reconnect and
// Disconnect are driven by the connection itself.
var sessionCommands = map[engine.CommandType]bool{
	engine.CmdLeave:             true,
	engine.CmdKick:              true,
	engine.CmdPromoteAdmin:      true,
	engine.CmdSetAdminSecret:    true,
	engine.CmdClaimAdmin:        true,
	engine.CmdChangeName:        true,
	engine.CmdSetAvatar:         true,
	engine.CmdUploadCard:        true,
	engine.CmdDeleteCard:        true,
	engine.CmdLockPool:          true,
	engine.CmdUnlockPool:        true,
	engine.CmdSetUploadMode:     true,
	engine.CmdSetWinTarget:      true,
	engine.CmdSetBoard:          true,
	engine.CmdStartGame:         true,
	engine.CmdStorytellerSubmit: true,
	engine.CmdPlayerSubmit:      true,
	engine.CmdVote:              true,
	engine.CmdAdvanceRound:      true,
	engine.CmdResetGame:         true,
	engine.CmdNewDeck:           true,
	engine.CmdRepairHand:        true,
}

func toEngineCommand(m types.ClientMessage, playerID string) (engine.Command, bool) {
	t := engine.CommandType(m.Type)
	if !sessionCommands[t] {
		return engine.Command{}, false
	}
	cmd := engine.Command{
		Type:       t,
		PlayerID:   playerID,
		TargetID:   m.TargetID,
		CardID:     m.CardID,
		Clue:       m.Clue,
		Name:       m.Name,
		Secret:     m.Secret,
		Avatar:     m.Avatar,
		Image:      m.Image,
		UploadMode: engine.UploadMode(m.UploadMode),
		WinTarget:  m.WinTarget,
	}
	if m.Board != nil {
		cmd.Board = *m.Board
	}
	return cmd, true
}
