package core

import "context"

type contextKey string

const ctxKeyTrigger contextKey = "trigger"

// Trigger names what started an operation.
type Trigger string

const (
	TriggerHTTP     Trigger = "http"
	TriggerWebhook  Trigger = "webhook"
	TriggerCLI      Trigger = "cli"
	TriggerSchedule Trigger = "schedule"
)

// ContextWithTrigger records what started the operation for pass logging.
func ContextWithTrigger(ctx context.Context, t Trigger) context.Context {
	return context.WithValue(ctx, ctxKeyTrigger, t)
}

// TriggerFromContext returns the recorded trigger, or "" if none.
func TriggerFromContext(ctx context.Context) Trigger {
	if v, ok := ctx.Value(ctxKeyTrigger).(Trigger); ok {
		return v
	}
	return ""
}
