// Package sink persists finished artifacts to object storage, mirrors the
// consent status table, and drives the per-consent push step.
package sink

import "context"

// ArtifactStore is the destination for finished artifacts. A category is a
// destination namespace (one per artifact kind); Store returns the
// identifier under which the artifact is retrievable.
type ArtifactStore interface {
	Store(ctx context.Context, category, name string, content []byte) (string, error)
	Exists(ctx context.Context, category, name string) (bool, error)
	TagProvenance(ctx context.Context, artifactID string, meta map[string]string) error
}
