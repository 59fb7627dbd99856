package userenv

import "context"

// Repository is the data-access contract for per-user environment variables
// consumed by the configuration resolver's ${env:NAME} / ${NAME} substitution.
type Repository interface {
	Set(ctx context.Context, userID, name, value string) error
	Get(ctx context.Context, userID, name string) (*EnvVar, error)
	List(ctx context.Context, userID string) ([]*EnvVar, error)
	Delete(ctx context.Context, userID, name string) error

	// AsMap returns a user's environment as a plain name->value map, the
	// shape internal/value.Substitute expects.
	AsMap(ctx context.Context, userID string) (map[string]string, error)
}
