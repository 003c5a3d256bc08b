package types

import "github.com/avialu/dixit-sub000/internal/engine"

// HTTP request and response bodies.

type CreateRoomResponse struct {
	Code string `json:"code"`
}

type JoinRequest struct {
	Name string `json:"name"`
}

type JoinResponse struct {
	PlayerID string `json:"player_id"`
	Token    string `json:"token"`
}

type UploadResponse struct {
	CardID string `json:"card_id"`
}

type RoomResponse struct {
	Code    string          `json:"code"`
	Version int             `json:"version"`
	Clients int             `json:"clients"`
	Room    engine.RoomView `json:"room"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}
