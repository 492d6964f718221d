package model

import "time"

// User represents an account record as stored in the `users` table. The
// password hash never leaves the repository and handler layers; wire
// responses are built from the other fields only.
//
// Fields:
//
//	ID           – UUIDv4 primary key.
//	Email        – unique email address, stored as submitted.
//	PasswordHash – bcrypt hash of the password.
//	Name         – optional display name.
//	IsActive     – deactivated accounts cannot authenticate.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           string    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Name         *string   // users.name (nullable)
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
