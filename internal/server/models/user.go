// Package models defines server-side domain entities.
package models

import "time"

// User is a stored account. PasswordHash is a bcrypt hash and never leaves
// the server.
type User struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	DateJoined   time.Time
	LastLogin    *time.Time
}

// Role groups permissions. Users hold permissions only through roles.
type Role struct {
	ID   string
	Name string
}
