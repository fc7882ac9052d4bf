// Package tenant manages the lifecycle of per-user databases.
//
// Every user gets a dedicated database, created lazily the first time they
// sign in. The package is split along the path a sign-in takes:
//
//	SessionHook → Provisioner → Client (control-plane HTTP API)
//	                          ↘ SchemaInitializer (tenant store, see repository/sqlite)
//
// The naming functions in this file are the single source of truth for how a
// user id becomes a database name and a connection string. The control-plane
// client and the tenant router both call Key, so they can never disagree.
package tenant

import (
	"strings"

	"github.com/sakif/notebox/internal/apperror"
)

// keyPrefix keeps tenant databases apart from the template database and any
// other database in the same control-plane group.
const keyPrefix = "user-"

// Key returns the tenant key (the control-plane database name) for a user.
//
// Database names on the control plane are lowercase and limited to letters,
// digits and dashes. Ids outside that alphabet (uppercase, whitespace) are
// rejected rather than folded, so Key is injective: two different user ids
// never map to the same database.
func Key(userID string) (string, error) {
	if userID == "" {
		return "", apperror.ValidationFailed("userID", "user ID is required")
	}
	for _, r := range userID {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return "", apperror.ValidationFailed("userID",
				"user ID may only contain lowercase letters, digits and dashes")
		}
	}
	return keyPrefix + userID, nil
}

// ConnectionTarget derives a tenant's connection string from the template
// database URL by replacing the first occurrence of placeholder with Key(userID).
//
//	ConnectionTarget("libsql://parent-db-acme.turso.io", "parent-db", "u1")
//	→ "libsql://user-u1-acme.turso.io"
func ConnectionTarget(urlTemplate, placeholder, userID string) (string, error) {
	if placeholder == "" {
		return "", apperror.MissingConfig("TURSO_TEMPLATE_DB")
	}
	if !strings.Contains(urlTemplate, placeholder) {
		return "", apperror.InvalidConfig("TURSO_DATABASE_URL",
			"must contain the template database name "+placeholder)
	}
	key, err := Key(userID)
	if err != nil {
		return "", err
	}
	return strings.Replace(urlTemplate, placeholder, key, 1), nil
}
