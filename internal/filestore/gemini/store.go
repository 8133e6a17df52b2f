// Package gemini implements filestore.Store on the Gemini File API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/genai"

	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/filestore"
)

// filesAPI is the subset of genai.Files the store uses.
type filesAPI interface {
	Upload(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
}

// Store implements filestore.Store using the Gemini File API.
type Store struct {
	files filesAPI
}

// New creates a Store backed by the client's Files service.
func New(client *genai.Client) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is required")
	}
	return &Store{files: client.Files}, nil
}

// Upload sends the file to the Gemini File API.
func (s *Store) Upload(ctx context.Context, params filestore.UploadParams) (domain.RemoteAsset, error) {
	f, err := s.files.Upload(ctx, params.Data, &genai.UploadFileConfig{
		MIMEType:    params.MIMEType,
		DisplayName: params.DisplayName,
	})
	if err != nil {
		return domain.RemoteAsset{}, &filestore.Error{Op: "upload", Name: params.DisplayName, Err: mapError(err)}
	}
	return toAsset(f), nil
}

// Get returns the current processing state of a file.
func (s *Store) Get(ctx context.Context, name string) (domain.RemoteAsset, error) {
	f, err := s.files.Get(ctx, name, nil)
	if err != nil {
		return domain.RemoteAsset{}, &filestore.Error{Op: "get", Name: name, Err: mapError(err)}
	}
	return toAsset(f), nil
}

func toAsset(f *genai.File) domain.RemoteAsset {
	return domain.RemoteAsset{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    toState(f.State),
	}
}

// toState maps File API states onto asset states. An unspecified state is
// treated as still processing.
func toState(state genai.FileState) domain.AssetState {
	switch state {
	case genai.FileStateActive:
		return domain.AssetStateReady
	case genai.FileStateFailed:
		return domain.AssetStateFailed
	default:
		return domain.AssetStatePending
	}
}

func mapError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	}

	switch code {
	case http.StatusNotFound, http.StatusForbidden:
		return fmt.Errorf("%w: %v", filestore.ErrNotFound, err)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %v", filestore.ErrRejected, err)
	}
	return err
}
