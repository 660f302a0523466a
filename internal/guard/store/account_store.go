package store

import "context"

// AccountRecord mirrors the configuration-table account row this subsystem
// reads. Account management itself lives in the surrounding application.
type AccountRecord struct {
	ID           string
	DisplayName  string
	Role         string // "initiator" | "authorizer"
	PasswordHash string // bcrypt
}

type AccountStore interface {
	Get(ctx context.Context, id string) (AccountRecord, error)
}
