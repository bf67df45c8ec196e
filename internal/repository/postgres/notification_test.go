package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

var notificationColumnNames = []string{"id", "user_id", "title", "message", "read", "created_at", "updated_at"}

func newNotification(t *testing.T) (*model.Notification, *model.OutboxEvent) {
	t.Helper()
	now := time.Now().UTC()
	n := &model.Notification{UserID: uuid.New(), Title: "Appointment approved", Message: "See you soon"}
	n.Touch(now)
	evt, err := model.NewOutboxEvent(model.EventAppointmentStatus, model.NotificationPayload{
		NotificationID: n.ID, UserID: n.UserID, Title: n.Title, Message: n.Message,
	}, now)
	require.NoError(t, err)
	return n, evt
}

func TestNotificationRepository_CreateWithOutbox(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNotificationRepository(db)
	n, evt := newNotification(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(evt.ID.String(), model.EventAppointmentStatus, string(evt.Payload), "pending", 0,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateWithOutbox(context.Background(), n, evt))
}

func TestNotificationRepository_CreateWithOutboxRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNotificationRepository(db)
	n, evt := newNotification(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO outbox_events").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.CreateWithOutbox(context.Background(), n, evt)
	assert.True(t, apperrors.Is(err, apperrors.ErrInternal))
}

func TestNotificationRepository_ListByUserNewestFirst(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNotificationRepository(db)
	userID := uuid.New()
	newer := time.Now().UTC()
	older := newer.Add(-time.Hour)

	mock.ExpectQuery(`WHERE user_id = \$1\s+ORDER BY created_at DESC`).
		WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows(notificationColumnNames).
			AddRow(uuid.NewString(), userID.String(), "b", "newer", false, newer, newer).
			AddRow(uuid.NewString(), userID.String(), "a", "older", true, older, older))

	list, err := repo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Message)
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNotificationRepository(db)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`UPDATE notifications SET read = TRUE`).
		WithArgs(sqlmock.AnyArg(), id.String()).
		WillReturnRows(sqlmock.NewRows(notificationColumnNames).
			AddRow(id.String(), uuid.NewString(), "t", "m", true, now, now))

	n, err := repo.MarkRead(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, n.Read)
}

func TestOutboxRepository_MarkRetryMissing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewOutboxRepository(db)

	mock.ExpectExec(`SET retry_count = retry_count \+ 1`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRetry(context.Background(), uuid.New(), "redis down", time.Now().Add(time.Minute))
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestOutboxRepository_GetPending(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewOutboxRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM outbox_events\s+WHERE status = \$1 AND \(retry_at IS NULL OR retry_at <= \$2\)`).
		WithArgs("pending", sqlmock.AnyArg(), 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "event_type", "payload", "status", "error_message", "retry_count",
			"retry_at", "processed_at", "created_at", "updated_at",
		}).AddRow(uuid.NewString(), model.EventAppointmentBooked, []byte(`{"title":"x"}`), "pending",
			nil, 0, nil, nil, now, now))

	events, err := repo.GetPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"title":"x"}`, string(events[0].Payload))
}

func TestStatsRepository_AdminStats(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStatsRepository(db)

	mock.ExpectQuery(`COUNT\(\*\) FILTER \(WHERE role = 'patient'\)`).
		WillReturnRows(sqlmock.NewRows([]string{
			"total_patients", "approved_doctors", "pending_doctors", "rejected_doctors",
			"total_appointments", "online_appointments", "physical_appointments",
		}).AddRow(3, 1, 2, 0, 4, 3, 1))
	mock.ExpectQuery(`GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 3).AddRow("cancelled", 1))

	stats, err := repo.AdminStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalPatients)
	assert.Equal(t, 1, stats.PhysicalAppointments)
	assert.Equal(t, 3, stats.AppointmentsByStatus[model.AppointmentStatusPending])
}
