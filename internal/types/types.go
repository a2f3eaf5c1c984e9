package types

import "github.com/DoyleJ11/raffle-draw-backend/internal/session"

type ClientMessage struct {
	Type string `json:"type"` // "Draw" | "Reset"
}

type ServerMessage struct {
	Type     string            `json:"type"` // "StateSnapshot" | "Error"
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type PlaceholderResponse struct {
	Image string `json:"image"`
}

type SessionCreated struct {
	ID string `json:"id"`
}
