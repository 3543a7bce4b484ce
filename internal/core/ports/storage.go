package ports

import (
	"context"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
)

// CredentialStore defines durable persistence of network credentials,
// keyed by a label.
type CredentialStore interface {
	// Load returns the credentials saved under label, or
	// domain.ErrCredentialsNotFound.
	Load(ctx context.Context, label string) (domain.NetworkCredentials, error)

	// Save creates or replaces the credentials under label.
	Save(ctx context.Context, label string, creds domain.NetworkCredentials) error

	// Reset forgets the credentials under label. Resetting an empty label
	// is not an error.
	Reset(ctx context.Context, label string) error

	// Close closes the storage connection.
	Close() error
}
