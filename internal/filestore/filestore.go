// Package filestore abstracts the remote file store that holds room photos
// for model requests.
//
// Implementations:
// - gemini.Store: the Gemini File API
// - memory.Store: an in-process store for development and tests
//
// Uploaded files are not usable immediately: the store processes them
// first, and callers poll Get until the asset leaves the pending state.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/DukeRupert/turnover/internal/domain"
)

// Store defines the remote file store operations.
type Store interface {
	// Upload sends the file to the store and returns its reference in
	// whatever state the store acknowledged it (usually pending).
	Upload(ctx context.Context, params UploadParams) (domain.RemoteAsset, error)

	// Get returns the current state of a stored file.
	// Returns ErrNotFound if the name is unknown to the store.
	Get(ctx context.Context, name string) (domain.RemoteAsset, error)
}

// UploadParams describes a file to upload.
type UploadParams struct {
	Data        io.Reader
	MIMEType    string
	DisplayName string
}

var (
	// ErrNotFound is returned when the store has no file with the given name.
	ErrNotFound = errors.New("remote file not found")

	// ErrRejected is returned when the store refuses the upload outright.
	ErrRejected = errors.New("remote file store rejected the upload")
)

// Error wraps a file store failure with the operation and file name.
type Error struct {
	Op   string
	Name string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("filestore %s %q: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("filestore %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates an unknown file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
