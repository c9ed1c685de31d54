// Package sessionstore persists authenticated session snapshots so a later run
// can skip the full login.
package sessionstore

import (
	"context"
	"errors"

	"searchads-client/internal/session"
)

var ErrNotFound = errors.New("sessionstore: no stored session")

// Store keeps one snapshot per account name.
type Store interface {
	Load(ctx context.Context, account string) (session.Snapshot, error)
	Save(ctx context.Context, account string, snap session.Snapshot) error
	Delete(ctx context.Context, account string) error
}
