package authstate

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/authstate/internal/audit"
)

// AuditEvent is the structured record emitted for sign-in, sign-out,
// rehydration and guard decisions.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events.
type AuditSink = internalaudit.Sink

// NoOpSink discards events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events in a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs events through a *slog.Logger.
type SlogSink = internalaudit.SlogSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

const (
	AuditEventSignIn           = "sign_in"
	AuditEventSignOut          = "sign_out"
	AuditEventSignOutReceived  = "sign_out_received"
	AuditEventRehydrate        = "rehydrate"
	AuditEventGuardRedirect    = "guard_redirect"
	AuditEventGuardTokenReject = "guard_token_invalid"
)
