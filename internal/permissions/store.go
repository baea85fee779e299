package permissions

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
)

// Store is the durable grant repository. Implementations do no validation;
// callers decide what is worth persisting.
type Store interface {
	Get(ctx context.Context, origin, account string) (Grant, bool, error)
	Put(ctx context.Context, g Grant) error
	Delete(ctx context.Context, origin, account string) error
	ListAll(ctx context.Context) (map[string]Grant, error)
}

// ErrInvalidGrant is returned when a grant decision lacks the state or account
// it needs to be persisted.
var ErrInvalidGrant = errors.New("invalid grant")

// StorageError wraps any I/O failure of a Store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("permission store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err carries a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
