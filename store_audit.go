package authstate

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/MrEthical07/authstate/apiclient"
	"github.com/MrEthical07/authstate/broadcast"
)

// AuditErrorCode is the stable, non-sensitive error label recorded in
// [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrEmptyToken         AuditErrorCode = "empty_token"
	auditErrAuthTokenInvalid   AuditErrorCode = "auth_token_invalid"
	auditErrChannelUnavailable AuditErrorCode = "channel_unavailable"
	auditErrStoreClosed        AuditErrorCode = "store_closed"
	auditErrNotInitialized     AuditErrorCode = "not_initialized"
	auditErrCanceled           AuditErrorCode = "canceled"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrRejected           AuditErrorCode = "rejected"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (s *Store) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if s == nil || s.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		StoreID:   s.id,
		Email:     email,
		Success:   success,
		Metadata:  metadata,
	}
	if code := AuditErrorCodeOf(err); code != "" {
		event.Error = string(code)
	}

	s.audit.Emit(ctx, event)
}

// AuditErrorCodeOf maps err to its audit label. It returns "" for nil.
func AuditErrorCodeOf(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var (
		statusErr *apiclient.StatusError
		netErr    net.Error
	)
	switch {
	case errors.Is(err, apiclient.ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrEmptyToken):
		return auditErrEmptyToken
	case errors.Is(err, ErrAuthTokenInvalid):
		return auditErrAuthTokenInvalid
	case errors.Is(err, ErrChannelUnavailable), errors.Is(err, broadcast.ErrClosed):
		return auditErrChannelUnavailable
	case errors.Is(err, ErrStoreClosed):
		return auditErrStoreClosed
	case errors.Is(err, ErrNotInitialized):
		return auditErrNotInitialized
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	case errors.As(err, &statusErr):
		if statusErr.StatusCode >= 500 {
			return auditErrUnavailable
		}
		return auditErrRejected
	case errors.As(err, &netErr):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
