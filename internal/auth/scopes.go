// Package auth - scopes.go defines permission scope constants for the
// provider and alert APIs and provides HasScope, HasAnyScope, and
// HasAllScopes helper functions for scope checking.
package auth

import (
	"errors"
	"fmt"
)

// Scope represents a permission/scope type
type Scope string

const (
	// Provider scopes
	ScopeReadProviders   Scope = "read:providers"
	ScopeWriteProviders  Scope = "write:providers"
	ScopeUpdateProviders Scope = "update:providers"
	ScopeDeleteProviders Scope = "delete:providers"

	// Alert scopes
	ScopeReadAlert  Scope = "read:alert"
	ScopeWriteAlert Scope = "write:alert"

	// Admin scope (wildcard - all permissions)
	ScopeAdmin Scope = "admin"
)

// AllScopes returns all valid scopes
func AllScopes() []Scope {
	return []Scope{
		ScopeReadProviders,
		ScopeWriteProviders,
		ScopeUpdateProviders,
		ScopeDeleteProviders,
		ScopeReadAlert,
		ScopeWriteAlert,
		ScopeAdmin,
	}
}

// ValidScopes returns a map of valid scope strings
func ValidScopes() map[string]bool {
	validScopes := make(map[string]bool)
	for _, scope := range AllScopes() {
		validScopes[string(scope)] = true
	}
	return validScopes
}

// ValidateScopes checks if all provided scopes are valid
func ValidateScopes(scopes []string) error {
	validScopes := ValidScopes()

	for _, scope := range scopes {
		if !validScopes[scope] {
			return fmt.Errorf("invalid scope: %s", scope)
		}
	}

	return nil
}

// HasScope checks if a user has a required scope
// Supports wildcard admin scope
func HasScope(userScopes []string, required Scope) bool {
	requiredStr := string(required)

	for _, scope := range userScopes {
		// Check for exact match
		if scope == requiredStr {
			return true
		}

		// Check for admin wildcard
		if scope == string(ScopeAdmin) {
			return true
		}

		// Write/update/delete permission on providers implies read
		if required == ScopeReadProviders &&
			(scope == string(ScopeWriteProviders) ||
				scope == string(ScopeUpdateProviders) ||
				scope == string(ScopeDeleteProviders)) {
			return true
		}
		if required == ScopeReadAlert && scope == string(ScopeWriteAlert) {
			return true
		}
	}

	return false
}

// HasAnyScope checks if a user has at least one of the required scopes
func HasAnyScope(userScopes []string, requiredScopes []Scope) bool {
	for _, required := range requiredScopes {
		if HasScope(userScopes, required) {
			return true
		}
	}
	return false
}

// HasAllScopes checks if a user has all of the required scopes
func HasAllScopes(userScopes []string, requiredScopes []Scope) bool {
	for _, required := range requiredScopes {
		if !HasScope(userScopes, required) {
			return false
		}
	}
	return true
}

// ScopesForRole maps an API key role to the scopes it grants. A webhook key
// is handed out to external monitoring systems and may only push alerts.
func ScopesForRole(role string) []string {
	switch role {
	case "admin":
		return GetAdminScopes()
	case "webhook":
		return []string{string(ScopeWriteAlert)}
	default:
		return GetDefaultScopes()
	}
}

// GetDefaultScopes returns default scopes for a new API key
func GetDefaultScopes() []string {
	return []string{
		string(ScopeReadProviders),
		string(ScopeReadAlert),
	}
}

// GetAdminScopes returns all scopes including admin
func GetAdminScopes() []string {
	scopes := make([]string, 0)
	for _, scope := range AllScopes() {
		scopes = append(scopes, string(scope))
	}
	return scopes
}

// ValidateScopeString validates a single scope string
func ValidateScopeString(scope string) error {
	validScopes := ValidScopes()
	if !validScopes[scope] {
		return errors.New("invalid scope")
	}
	return nil
}
