// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a dashboard account. Sign-in is by email; a password is optional
// and only enforced once the user has set one.
type User struct {
	ID                 uuid.UUID `json:"id"`
	Email              string    `json:"email"`
	PasswordHash       *string   `json:"-"` // Never serialize the hash
	APISecretKey       *string   `json:"-"`
	DefaultContainerID *string   `json:"defaultContainerId"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// HasPassword reports whether the user must present a password to log in.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// OptimizelyConfig holds the per-user CMS credentials. Unset values fall
// back to the process configuration.
type OptimizelyConfig struct {
	ClientID        *string `json:"clientId"`
	ClientSecret    *string `json:"clientSecret"`
	APIURL          *string `json:"apiUrl"`
	GraphQLEndpoint *string `json:"graphqlEndpoint"`
	AuthToken       *string `json:"authToken"`
}

// Value dereferences a nullable column, returning "" for NULL.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// NullIfEmpty turns "" into NULL for nullable columns.
func NullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
