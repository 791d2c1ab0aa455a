package model

import "time"

// Client is an API consumer. The secret half of its API key is only ever
// stored as a bcrypt hash.
type Client struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SecretHash string    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}
