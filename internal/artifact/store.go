// Package artifact uploads finished renditions to object storage and
// deletes them again on rollback.
package artifact

import "context"

// Store abstracts the rendition object store.
type Store interface {
	// Upload stores the file at path under key and returns its public URL.
	Upload(ctx context.Context, key, path string) (string, error)
	// Delete removes a previously uploaded object. Deleting a missing
	// object is not an error.
	Delete(ctx context.Context, key string) error
}
