package appointment

import (
	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

var transitions = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.AppointmentStatusPending: {
		model.AppointmentStatusApproved,
		model.AppointmentStatusDeclined,
		model.AppointmentStatusCancelled,
	},
	model.AppointmentStatusApproved: {
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
	},
}

// CanTransition reports whether from -> to is a defined edge. Terminal
// states have none.
func CanTransition(from, to model.AppointmentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to model.AppointmentStatus) error {
	if !CanTransition(from, to) {
		return apperrors.InvalidTransition(string(from), string(to))
	}
	return nil
}
