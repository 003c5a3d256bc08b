package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avialu/dixit-sub000/internal/auth"
	"github.com/avialu/dixit-sub000/internal/engine"
	"github.com/avialu/dixit-sub000/internal/hub"
	"github.com/avialu/dixit-sub000/internal/lobby"
	"github.com/avialu/dixit-sub000/internal/types"
)

const codeAttempts = 8

var errCodeSpace = errors.New("no free room code")

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type handlers struct {
	hub     *hub.Hub
	tokens  *auth.Issuer
	maxCard int64
	log     *zap.Logger
}

func (a *handlers) createRoom(w http.ResponseWriter, r *http.Request) {
	for i := 0; i < codeAttempts; i++ {
		code, err := GenerateCode()
		if err != nil {
			writeError(w, err)
			return
		}
		lb, err := a.hub.Create(r.Context(), code)
		if err != nil {
			writeError(w, err)
			return
		}
		if lb != nil {
			writeJSON(w, http.StatusCreated, types.CreateRoomResponse{Code: code})
			return
		}
		a.log.Debug("collision on code, regenerating", zap.String("room", code))
	}
	writeError(w, errCodeSpace)
}

// room resolves {code}, writing 404 when the lobby does not exist.
func (a *handlers) room(w http.ResponseWriter, r *http.Request) (*lobby.Lobby, bool) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	lb, err := a.hub.Get(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if lb == nil {
		writeJSON(w, http.StatusNotFound, types.ErrorBody{Code: "ROOM_NOT_FOUND", Message: "room not found"})
		return nil, false
	}
	return lb, true
}

// player authenticates the bearer token against the room in the path.
func (a *handlers) player(w http.ResponseWriter, r *http.Request, lb *lobby.Lobby) (string, bool) {
	claims, err := a.tokens.Verify(auth.FromHeader(r.Header.Get("Authorization")), lb.Code())
	if err != nil {
		writeError(w, err)
		return "", false
	}
	return claims.Player, true
}

func (a *handlers) getRoom(w http.ResponseWriter, r *http.Request) {
	lb, ok := a.room(w, r)
	if !ok {
		return
	}
	v, err := lb.State(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.RoomResponse{
		Code:    lb.Code(),
		Version: v.Version,
		Clients: v.NumClients,
		Room:    v.Room,
	})
}

func (a *handlers) joinRoom(w http.ResponseWriter, r *http.Request) {
	lb, ok := a.room(w, r)
	if !ok {
		return
	}
	var req types.JoinRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, types.ErrorBody{Code: "BAD_JSON", Message: "bad json"})
		return
	}

	// The player counts as connected once their websocket opens.
	id := uuid.NewString()
	join := engine.Command{Type: engine.CmdJoin, PlayerID: id, Name: req.Name, Reserve: true}
	if _, err := lb.Do(r.Context(), join); err != nil {
		writeError(w, err)
		return
	}
	token, err := a.tokens.Issue(lb.Code(), id)
	if err != nil {
		a.log.Error("issue token", zap.String("room", lb.Code()), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.JoinResponse{PlayerID: id, Token: token})
}

func (a *handlers) uploadCard(w http.ResponseWriter, r *http.Request) {
	lb, ok := a.room(w, r)
	if !ok {
		return
	}
	id, ok := a.player(w, r, lb)
	if !ok {
		return
	}

	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxCard))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, types.ErrorBody{Code: "TOO_LARGE", Message: "image too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, types.ErrorBody{Code: "BAD_BODY", Message: err.Error()})
		return
	}

	events, err := lb.Do(r.Context(), engine.Command{Type: engine.CmdUploadCard, PlayerID: id, Image: image})
	if err != nil {
		writeError(w, err)
		return
	}
	var cardID string
	for _, e := range events {
		if e.Type == engine.EvtCardUploaded {
			cardID = e.CardID
		}
	}
	writeJSON(w, http.StatusCreated, types.UploadResponse{CardID: cardID})
}

func (a *handlers) deleteCard(w http.ResponseWriter, r *http.Request) {
	lb, ok := a.room(w, r)
	if !ok {
		return
	}
	id, ok := a.player(w, r, lb)
	if !ok {
		return
	}
	cmd := engine.Command{Type: engine.CmdDeleteCard, PlayerID: id, CardID: chi.URLParam(r, "cardID")}
	events, err := lb.Do(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	if !engine.ContainsEvent(events, engine.EvtCardDeleted) {
		writeError(w, engine.ErrCardNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	codes, err := a.hub.Codes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ok", Rooms: len(codes)})
}
