package model

type AdminStats struct {
	TotalPatients        int                       `json:"total_patients" db:"total_patients"`
	ApprovedDoctors      int                       `json:"approved_doctors" db:"approved_doctors"`
	PendingDoctors       int                       `json:"pending_doctors" db:"pending_doctors"`
	RejectedDoctors      int                       `json:"rejected_doctors" db:"rejected_doctors"`
	TotalAppointments    int                       `json:"total_appointments" db:"total_appointments"`
	OnlineAppointments   int                       `json:"online_appointments" db:"online_appointments"`
	PhysicalAppointments int                       `json:"physical_appointments" db:"physical_appointments"`
	AppointmentsByStatus map[AppointmentStatus]int `json:"appointments_by_status" db:"-"`
}
