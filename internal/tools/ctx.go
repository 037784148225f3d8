package tools

import "context"

type ctxKey int

const workspaceIDKey ctxKey = iota

// WithWorkspaceID stamps the calling workspace onto the context a tool
// executes under.
func WithWorkspaceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, workspaceIDKey, id)
}

// WorkspaceIDFromContext returns the workspace a tool call belongs to, or ""
// when the tool runs outside a stream.
func WorkspaceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(workspaceIDKey).(string)
	return id
}
