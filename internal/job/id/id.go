// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

// Prefix starts every job ID.
const Prefix = "job-"

// Generate creates a new unique job ID.
// IDs are time-ordered UUIDv7 values so that lexical order follows creation.
// Example: job-01928f6e-7a3c-7c41-9d0e-5b7f1c2a8e44
func Generate() string {
	u, err := uuid.NewV7()
	if err != nil {
		// Fallback to a random UUID if the clock source fails
		return Prefix + uuid.NewString()
	}
	return Prefix + u.String()
}

// Valid reports whether s looks like an ID produced by Generate.
func Valid(s string) bool {
	if len(s) <= len(Prefix) || s[:len(Prefix)] != Prefix {
		return false
	}
	_, err := uuid.Parse(s[len(Prefix):])
	return err == nil
}
