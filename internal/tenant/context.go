// Package tenant carries the authenticated caller through request contexts and
// derives the vector namespace that isolates their data.
package tenant

import (
	"context"
	"strings"
)

type contextKey string

const userKey contextKey = "user_id"

const namespacePrefix = "user-"

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserIDFromContext returns the caller id, or "" when the request is anonymous.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userKey).(string)
	return id
}

// Namespace returns the vector store partition owned by userID.
func Namespace(userID string) string {
	return namespacePrefix + userID
}

// UserIDFromNamespace reverses Namespace.
func UserIDFromNamespace(ns string) (string, bool) {
	return strings.CutPrefix(ns, namespacePrefix)
}
