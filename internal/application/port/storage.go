package port

import "context"

// DocumentStore holds write-once uploaded documents: compliance reports,
// RUPE proofs, opinions, final documents, emitted permit manifests.
// Files are never mutated after creation.
type DocumentStore interface {
	// Store persists content under a name derived from suggestedName and
	// returns the storage path
	Store(ctx context.Context, content []byte, suggestedName string) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
}
