// Package session holds the client-generated conversation identifier.
package session

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// Prefix starts every session identifier.
	Prefix = "user_"
	// SuffixLength is the number of random characters after Prefix.
	SuffixLength = 9
)

// Context carries the identifier for one client run. The zero value is not
// usable; construct with New.
type Context struct {
	id string
}

// New generates a fresh identifier of the form user_xxxxxxxxx.
func New() *Context {
	return &Context{id: Prefix + randomSuffix()}
}

// ID returns the identifier. It never changes for the lifetime of c.
func (c *Context) ID() string {
	return c.id
}

func randomSuffix() string {
	// uuid v4 text is lowercase hex, so the suffix stays alphanumeric.
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:SuffixLength]
}
