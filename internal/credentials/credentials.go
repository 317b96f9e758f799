// Package credentials resolves named credential references for API auth.
//
// Resolution failure yields an empty credential, not an error: an
// unauthenticated request fails downstream with a 401, which the fetch
// treats as fatal.
package credentials

import (
	"os"

	"go.uber.org/zap"
)

// Resolver looks up a secret by its reference id.
type Resolver interface {
	Resolve(ref string) string
}

// Env resolves credential references from environment variables.
type Env struct{}

// Resolve returns the value of the environment variable named by ref.
func (Env) Resolve(ref string) string {
	if ref == "" {
		return ""
	}
	val := os.Getenv(ref)
	if val == "" {
		zap.L().Warn("credential reference resolved to empty value", zap.String("ref", ref))
	}
	return val
}

// Static resolves credentials from a fixed map. Used in tests.
type Static map[string]string

// Resolve returns the mapped value for ref, or "".
func (s Static) Resolve(ref string) string {
	return s[ref]
}
