// Package models defines the client-side data models shared by the auth
// client, the storage layer and the session controller.
package models

import (
	"fmt"
	"time"
)

// User is the identity record returned by the auth service. A copy is cached
// in local storage under the "user" key; that copy may be stale.
type User struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	Role        string       `json:"role,omitempty"`
	CreatedAt   *time.Time   `json:"created_at,omitempty"`
	ConfirmedAt *time.Time   `json:"confirmed_at,omitempty"`
	AppMetadata *AppMetadata `json:"app_metadata,omitempty"`
}

// AppMetadata carries the service-managed part of the user record.
type AppMetadata struct {
	Provider  string   `json:"provider,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

// String renders the user the way the options page shows it: "<email> - <id>".
func (u *User) String() string {
	if u == nil {
		return ""
	}
	return fmt.Sprintf("%s - %s", u.Email, u.ID)
}
