// Package storage defines the file-system abstraction behind the delta spool.
package storage

import "github.com/starford/arbor/internal/models"

// Provider is the interface for spool file operations. Paths are relative to
// the provider's root.
type Provider interface {
	// List returns metadata for every file with the provider's extension under dir.
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}
