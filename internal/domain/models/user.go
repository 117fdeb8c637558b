// internal/domain/models/user.go
package models

// User is the identity record owned by the identity provider.
//
// The application never writes users; it reads them on every request through
// the session bridge. ID is the provider's UUID string, not a Mongo ObjectID.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`

	// IsOps grants access to the operations console. It comes from
	// server-controlled app metadata and cannot be set by the user.
	IsOps bool `json:"is_ops"`

	Metadata UserMetadata `json:"metadata"`
}

// UserMetadata is free-form profile data captured at sign-up.
type UserMetadata struct {
	DisplayName string `json:"display_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}
