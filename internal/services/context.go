package services

import "context"

type contextKey string

const (
	participantKey contextKey = "participant_id"
	requestIDKey   contextKey = "request_id"
)

// WithParticipant annotates context with the participant identifier.
func WithParticipant(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, participantKey, id)
}

// ParticipantFromContext extracts the participant identifier if present.
func ParticipantFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(participantKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
