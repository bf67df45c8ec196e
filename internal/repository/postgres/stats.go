package postgres

import (
	"context"

	"github.com/jwalitptl/care-portal/internal/model"
)

func (r *statsRepository) AdminStats(ctx context.Context) (*model.AdminStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE role = 'patient') AS total_patients,
			COUNT(*) FILTER (WHERE role = 'doctor' AND status = 'approved') AS approved_doctors,
			COUNT(*) FILTER (WHERE role = 'doctor' AND status = 'pending') AS pending_doctors,
			COUNT(*) FILTER (WHERE role = 'doctor' AND status = 'rejected') AS rejected_doctors,
			(SELECT COUNT(*) FROM appointments) AS total_appointments,
			(SELECT COUNT(*) FROM appointments WHERE type = 'online') AS online_appointments,
			(SELECT COUNT(*) FROM appointments WHERE type = 'physical') AS physical_appointments
		FROM accounts`

	var stats model.AdminStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, translateError(err, "stats")
	}

	var rows []struct {
		Status model.AppointmentStatus `db:"status"`
		Count  int                     `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM appointments GROUP BY status`); err != nil {
		return nil, translateError(err, "stats")
	}

	stats.AppointmentsByStatus = make(map[model.AppointmentStatus]int, len(rows))
	for _, row := range rows {
		stats.AppointmentsByStatus[row.Status] = row.Count
	}
	return &stats, nil
}
