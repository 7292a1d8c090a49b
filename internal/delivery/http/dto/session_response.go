package dto

import (
	"encoding/json"

	"elo-sync/internal/usecase/header"
)

type SessionResponse struct {
	User   json.RawMessage `json:"user"`
	Header header.View     `json:"header"`
}
