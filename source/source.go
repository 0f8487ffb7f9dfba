package source

import (
	"context"
	"fmt"
	"os"
)

// Repository populates a local directory with the template tree of one
// source-control reference. Implementations fail with *UnreachableError when
// the remote cannot be reached.
type Repository interface {
	Checkout(ctx context.Context, dest string) error
}

// Opener resolves a repository URL (optionally with a ref) into a
// Repository.
type Opener interface {
	Open(rawURL, ref string) (Repository, error)
}

// UnreachableError reports a connectivity failure while reaching source
// control.
type UnreachableError struct {
	URL string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("source %q unreachable: %v", e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// RemoveDir deletes a checkout directory. Idempotent: a missing directory is
// not an error.
func RemoveDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}
