// Package project implements Project CRUD: the grouping container for a
// user's sessions.
package project

import "time"

// Project groups a user's sessions. Deletion is soft; deleting a project
// clears project_id on its sessions rather than cascading.
type Project struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	IsDeleted bool      `json:"-" db:"is_deleted"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
