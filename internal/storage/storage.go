// Package storage archives the evidence of an inspection: the original
// room photos and their thumbnails.
//
// Implementations:
// - LocalStorage: file system storage for development
// - R2Storage: Cloudflare R2 (S3-compatible) storage for production
//
// The archive is independent of the remote file store the model reads
// from. It keeps a copy that outlives the model provider's file retention
// so that a disputed checkout can be reviewed later.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/turnover/internal/domain"
)

// Storage defines the interface for evidence storage operations.
//
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at the specified key. Returns ErrKeyExists if the key
	// is taken and opts.Overwrite is false.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the data at the specified key. The caller must close the
	// reader. Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the specified key. Deleting a missing
	// key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for the object: permanent for public objects,
	// presigned for private ones.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists checks if an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is the MIME type of the object. Detected from the key's
	// extension when empty.
	ContentType string

	// MaxSize is the maximum allowed size in bytes; 0 means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool

	// Public makes the object publicly readable (R2 only).
	Public bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory, e.g. "./storage".
	BasePath string

	// BaseURL is the public URL prefix, e.g. "http://localhost:8080/files".
	BaseURL string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the bucket's custom domain. Presigned URLs are used when
	// empty.
	PublicURL string

	// Region is required by the AWS SDK. R2 accepts "auto".
	Region string
}

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderR2 identifies the Cloudflare R2 storage provider.
	ProviderR2 = "r2"
)

// SessionPrefix is the key prefix of everything archived for a session.
func SessionPrefix(sessionID uuid.UUID) string {
	return fmt.Sprintf("sessions/%s/", sessionID)
}

// EvidenceKey generates the key of an original room photo. Each retake
// gets its own generation so earlier captures are not overwritten.
//
// Example: "sessions/123e4567-e89b-12d3-a456-426614174000/living-room/2.jpg"
func EvidenceKey(sessionID uuid.UUID, room domain.Room, generation int, contentType string) string {
	return fmt.Sprintf("%s%s/%d%s", SessionPrefix(sessionID), room.Slug(), generation, domain.ExtensionForImageType(contentType))
}

// ThumbnailKey generates the key of a room photo thumbnail.
//
// Example: "sessions/123e4567-e89b-12d3-a456-426614174000/living-room/2-thumb.jpg"
func ThumbnailKey(sessionID uuid.UUID, room domain.Room, generation int) string {
	return fmt.Sprintf("%s%s/%d-thumb.jpg", SessionPrefix(sessionID), room.Slug(), generation)
}
