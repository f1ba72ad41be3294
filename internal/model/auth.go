package model

import "time"

// TokenRequest is the body of get-token.
type TokenRequest struct {
	Token string `json:"token"`
}

// AuthData is the get-token reply.
type AuthData struct {
	Token   string    `json:"token"`
	Expired time.Time `json:"expired"`
}
