package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/pkg/logger"
)

// Audited actions.
const (
	ActionRegister        = "register"
	ActionLogin           = "login"
	ActionLoginFailed     = "login_failed"
	ActionUpdate          = "update"
	ActionDelete          = "delete"
	ActionStatusChange    = "status_change"
	ActionCreate          = "create"
	ActionAccessDenied    = "access_denied"
	ActionBootstrapAdmin  = "bootstrap_admin"
	ActionVideoLinkIssued = "video_link_issued"
)

// Service writes the audit trail as structured log events. Events carry
// ids and status values only, never profile contents or credentials.
type Service struct {
	logger *logger.Logger
}

func NewService(l *logger.Logger) *Service {
	if l == nil {
		l = logger.Nop()
	}
	return &Service{logger: l}
}

type LogOptions struct {
	From     string
	To       string
	Reason   string
	Metadata map[string]interface{}
}

// Log records that actor performed action on the entity. A logger stored in
// ctx by the request middleware is preferred so events carry the request id.
func (s *Service) Log(ctx context.Context, actor uuid.UUID, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	if s == nil {
		return
	}
	l := logger.FromContext(ctx, s.logger)

	evt := l.Zerolog().Info().
		Bool("audit", true).
		Str("action", action).
		Str("entity_type", entityType)
	if actor != uuid.Nil {
		evt = evt.Str("actor_id", actor.String())
	}
	if entityID != uuid.Nil {
		evt = evt.Str("entity_id", entityID.String())
	}
	if opts != nil {
		if opts.From != "" {
			evt = evt.Str("from", opts.From)
		}
		if opts.To != "" {
			evt = evt.Str("to", opts.To)
		}
		if opts.Reason != "" {
			evt = evt.Str("reason", opts.Reason)
		}
		if len(opts.Metadata) > 0 {
			evt = evt.Fields(opts.Metadata)
		}
	}
	evt.Msg("audit event")
}
