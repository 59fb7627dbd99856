// Package userenv implements UserEnvVar: the per-user environment map the
// configuration resolver substitutes `${NAME}` tokens against.
package userenv

import "time"

// EnvVar is one (user_id, name) -> value pair.
type EnvVar struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Value     string    `json:"value" db:"value"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
