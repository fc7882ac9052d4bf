// Package model defines the data structures used throughout the application.
package model

import "time"

// User is an account created the first time an OAuth identity signs in.
//
// (Provider, ProviderID) is unique: the same person signing in through GitHub
// and Google gets two accounts, each with its own tenant database. ID is our
// own xid and doubles as the tenant key input, so it must stay stable.
type User struct {
	ID         string    `json:"id"         db:"id"`
	Provider   string    `json:"provider"   db:"provider"`    // "github", "google", "discord"
	ProviderID string    `json:"providerId" db:"provider_id"` // provider's stable user id
	Login      string    `json:"login"      db:"login"`
	Email      string    `json:"email"      db:"email"` // may be empty
	AvatarURL  string    `json:"avatarUrl"  db:"avatar_url"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt"  db:"updated_at"`
}
