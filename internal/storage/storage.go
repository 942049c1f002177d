// Package storage abstracts where exported fiches end up.
//
// Two implementations exist: FilesystemStorage for development and small
// single-host deployments, and S3Storage for any S3-compatible object store.
// Every save or PDF export is archived under a per-fiche prefix so past
// visits stay retrievable.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Storage stores and retrieves archived fiche documents.
type Storage interface {
	// Put stores data at the given key. Returns ErrKeyExists when the key
	// is taken and opts.Overwrite is false.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the object at key. The caller must close the reader.
	// Returns ErrNotFound when the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Idempotent.
	Delete(ctx context.Context, key string) error

	// URL returns an access URL for the object. Implementations backed by
	// private buckets return a presigned URL valid for expires.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is the MIME type. Detected from the key when empty.
	ContentType string

	// MaxSize caps the object size in bytes; ErrTooLarge past it.
	// Zero means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object.
	Overwrite bool
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// FilesystemConfig configures local disk storage.
type FilesystemConfig struct {
	// BasePath is the root directory, e.g. "./archives".
	BasePath string

	// BaseURL is the public prefix files are served under,
	// e.g. "http://localhost:8080/archives".
	BaseURL string
}

// S3Config configures an S3-compatible object store. A custom Endpoint
// covers MinIO, Cloudflare R2 and the like; leave it empty for AWS proper.
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string

	// PublicURL, when set, is used instead of presigning for reads.
	PublicURL string
}

// Storage provider names as they appear in configuration.
const (
	ProviderFilesystem = "filesystem"
	ProviderS3         = "s3"
)

// =============================================================================
// Archive Keys
// =============================================================================

// Archived artifacts live under fiches/{ficheID}/. The fiche ID is minted
// once per editing session, so repeated saves of the same visit group
// together.

// DocumentKey is the archive location of a JSON save.
func DocumentKey(ficheID uuid.UUID, filename string) string {
	return fmt.Sprintf("fiches/%s/%s", ficheID, filename)
}

// PDFKey is the archive location of a rendered PDF.
func PDFKey(ficheID uuid.UUID, filename string) string {
	return fmt.Sprintf("fiches/%s/%s", ficheID, filename)
}

// AttachmentKey is the archive location of an uploaded attendance sheet.
// Each upload gets a fresh UUID so re-uploads never clobber each other.
func AttachmentKey(ficheID uuid.UUID, contentType string) string {
	return fmt.Sprintf("fiches/%s/emargement/%s%s", ficheID, uuid.New(), extensionForContentType(contentType))
}
