// Package memory implements filestore.Store in process memory.
//
// Files start pending and become ready after a configurable number of
// status checks, which mimics remote processing for development runs and
// lets tests drive the ingestion poll loop.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/filestore"
)

type file struct {
	asset      domain.RemoteAsset
	data       []byte
	checksLeft int
	fail       bool
}

// Store is an in-memory filestore.Store.
type Store struct {
	mu    sync.Mutex
	files map[string]*file

	// ReadyAfter is the number of Get calls a file stays pending. A
	// negative value keeps files pending forever.
	ReadyAfter int

	// FailNames marks display names whose processing ends in failure.
	FailNames map[string]bool

	// UploadErr, when set, is returned by every Upload.
	UploadErr error

	uploads int
	gets    int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		files:     make(map[string]*file),
		FailNames: make(map[string]bool),
	}
}

// Upload stores the file and returns it in the pending state, or ready when
// ReadyAfter is zero.
func (s *Store) Upload(ctx context.Context, params filestore.UploadParams) (domain.RemoteAsset, error) {
	if err := ctx.Err(); err != nil {
		return domain.RemoteAsset{}, err
	}

	data, err := io.ReadAll(params.Data)
	if err != nil {
		return domain.RemoteAsset{}, &filestore.Error{Op: "upload", Name: params.DisplayName, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploads++
	if s.UploadErr != nil {
		return domain.RemoteAsset{}, &filestore.Error{Op: "upload", Name: params.DisplayName, Err: s.UploadErr}
	}

	id := uuid.NewString()[:12]
	name := "files/" + id
	f := &file{
		asset: domain.RemoteAsset{
			Name:     name,
			URI:      fmt.Sprintf("memory://%s", name),
			MIMEType: params.MIMEType,
			State:    domain.AssetStatePending,
		},
		data:       data,
		checksLeft: s.ReadyAfter,
		fail:       s.FailNames[params.DisplayName],
	}
	if f.checksLeft == 0 {
		f.settle()
	}
	s.files[name] = f
	return f.asset, nil
}

// Get returns the file state, advancing pending files toward completion.
func (s *Store) Get(ctx context.Context, name string) (domain.RemoteAsset, error) {
	if err := ctx.Err(); err != nil {
		return domain.RemoteAsset{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets++
	f, ok := s.files[name]
	if !ok {
		return domain.RemoteAsset{}, &filestore.Error{Op: "get", Name: name, Err: filestore.ErrNotFound}
	}

	if f.asset.State == domain.AssetStatePending {
		if f.checksLeft > 0 {
			f.checksLeft--
		}
		if f.checksLeft == 0 {
			f.settle()
		}
	}
	return f.asset, nil
}

// Seed registers a ready file under a fixed name, e.g. a baseline photo.
func (s *Store) Seed(name, mimeType string, data []byte) domain.RemoteAsset {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := &file{
		asset: domain.RemoteAsset{
			Name:     name,
			URI:      fmt.Sprintf("memory://%s", name),
			MIMEType: mimeType,
			State:    domain.AssetStateReady,
		},
		data: data,
	}
	s.files[name] = f
	return f.asset
}

// Data returns the stored bytes of a file.
func (s *Store) Data(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[name]
	if !ok {
		return nil, false
	}
	return f.data, true
}

// Counts returns the number of Upload and Get calls so far.
func (s *Store) Counts() (uploads, gets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads, s.gets
}

func (f *file) settle() {
	if f.fail {
		f.asset.State = domain.AssetStateFailed
		return
	}
	f.asset.State = domain.AssetStateReady
}
