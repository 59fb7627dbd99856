package project

import "context"

// Repository is the data-access contract for Project. Soft-delete
// predicates (is_deleted = false) apply by default; pass includeDeleted to
// bypass them.
type Repository interface {
	Create(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string, includeDeleted bool) (*Project, error)
	Update(ctx context.Context, p *Project) error

	// Delete soft-deletes the project and clears project_id on its
	// sessions, matching the spec's "deletion clears references" rule.
	Delete(ctx context.Context, id string) error

	// List returns a user's non-deleted projects, created_at DESC, id DESC.
	// limit<=0 means "all".
	List(ctx context.Context, userID string, limit, offset int) ([]*Project, error)
}
