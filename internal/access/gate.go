package access

import "context"

// Gate answers whether the caller may create or export premium story
// content. Entitlement logic itself lives outside this service; handlers
// only need the yes/no answer.
type Gate interface {
	// Allowed returns nil when the action is permitted, or an error
	// describing why it is not.
	Allowed(ctx context.Context, action string) error
}

// Actions checked against the gate
const (
	ActionCreateStory = "create_story"
	ActionExport      = "export"
)

// AllowAll permits every action, the default for self-hosted deployments
type AllowAll struct{}

// Allowed always returns nil
func (AllowAll) Allowed(ctx context.Context, action string) error {
	return nil
}
