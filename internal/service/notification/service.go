package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/internal/service/rbac"
	"github.com/jwalitptl/care-portal/pkg/logger"
)

// Service stores in-app notifications. Each one is written together with an
// outbox event that the dispatch worker fans out over Redis and email.
type Service interface {
	// Notify addresses one account.
	Notify(ctx context.Context, userID uuid.UUID, eventType, title, message string) error
	// NotifyAdmins addresses every admin account.
	NotifyAdmins(ctx context.Context, eventType, title, message string) error
	ListForUser(ctx context.Context, actor model.Identity, userID uuid.UUID) ([]*model.Notification, error)
	MarkRead(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Notification, error)
}

type service struct {
	repo     repository.NotificationRepository
	accounts repository.AccountRepository
	gate     *rbac.Gate
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(repo repository.NotificationRepository, accounts repository.AccountRepository, gate *rbac.Gate, l *logger.Logger) Service {
	if l == nil {
		l = logger.Nop()
	}
	return &service{
		repo:     repo,
		accounts: accounts,
		gate:     gate,
		logger:   l,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Notify(ctx context.Context, userID uuid.UUID, eventType, title, message string) error {
	n := &model.Notification{UserID: userID, Title: title, Message: message}
	now := s.now()
	n.Touch(now)

	payload := model.NotificationPayload{
		NotificationID: n.ID,
		UserID:         userID,
		Title:          title,
		Message:        message,
	}
	// The address is a convenience for the mailer; a lookup failure only
	// costs the email.
	if acc, err := s.accounts.Get(ctx, userID); err == nil {
		payload.Email = acc.Email
	}

	evt, err := model.NewOutboxEvent(eventType, payload, now)
	if err != nil {
		return fmt.Errorf("failed to build outbox event: %w", err)
	}
	if err := s.repo.CreateWithOutbox(ctx, n, evt); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *service) NotifyAdmins(ctx context.Context, eventType, title, message string) error {
	admins, err := s.accounts.List(ctx, model.AccountFilter{Role: model.RoleAdmin})
	if err != nil {
		return fmt.Errorf("failed to list admins: %w", err)
	}
	for _, admin := range admins {
		if err := s.Notify(ctx, admin.ID, eventType, title, message); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) ListForUser(ctx context.Context, actor model.Identity, userID uuid.UUID) ([]*model.Notification, error) {
	if err := s.gate.CanAccessNotifications(ctx, actor, userID); err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) MarkRead(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Notification, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanAccessNotifications(ctx, actor, n.UserID); err != nil {
		return nil, err
	}
	if n.Read {
		return n, nil
	}
	return s.repo.MarkRead(ctx, id)
}

// Best-effort delivery for callers whose primary write already committed.
func NotifyQuietly(ctx context.Context, svc Service, l *logger.Logger, userID uuid.UUID, eventType, title, message string) {
	if err := svc.Notify(ctx, userID, eventType, title, message); err != nil {
		logger.FromContext(ctx, l).Error(err, "notification not recorded",
			"event_type", eventType, "user_id", userID.String())
	}
}
