// Package clinicapi is the HTTP client for the remote clinic REST API that
// owns users, appointments, medical records and doctor availability.
package clinicapi

import "strings"

// Role identifies which dashboard a user sees.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RolePatient Role = "patient"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleNurse, RolePatient:
		return true
	}
	return false
}

// AppointmentStatus is the lifecycle state of an appointment. Cancelled
// appointments are deleted upstream, so there is no cancelled status.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
)

// User is an account on the clinic API. Role specific fields are optional.
type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Password         string `json:"password,omitempty"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Role             Role   `json:"role"`
	Phone            string `json:"phone,omitempty"`
	DateOfBirth      string `json:"dateOfBirth,omitempty"`
	Specialization   string `json:"specialization,omitempty"`
	BloodType        string `json:"bloodType,omitempty"`
	EmergencyContact string `json:"emergencyContact,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Sanitized returns a copy without credentials, suitable for caching.
func (u User) Sanitized() User {
	u.Password = ""
	return u
}

// UserUpdate carries a partial user update; nil fields are left untouched.
// Role is deliberately absent: it cannot change through this layer.
type UserUpdate struct {
	Email            *string `json:"email,omitempty"`
	Password         *string `json:"password,omitempty"`
	FirstName        *string `json:"firstName,omitempty"`
	LastName         *string `json:"lastName,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	DateOfBirth      *string `json:"dateOfBirth,omitempty"`
	Specialization   *string `json:"specialization,omitempty"`
	BloodType        *string `json:"bloodType,omitempty"`
	EmergencyContact *string `json:"emergencyContact,omitempty"`
}

// Appointment links a patient and a doctor at a date ("2006-01-02") and
// time ("15:04").
type Appointment struct {
	ID        string            `json:"id"`
	PatientID string            `json:"patientId"`
	DoctorID  string            `json:"doctorId"`
	Date      string            `json:"date"`
	Time      string            `json:"time"`
	Status    AppointmentStatus `json:"status"`
	Reason    string            `json:"reason"`
	Notes     string            `json:"notes,omitempty"`
}

// AppointmentUpdate carries a partial appointment update.
type AppointmentUpdate struct {
	DoctorID *string            `json:"doctorId,omitempty"`
	Date     *string            `json:"date,omitempty"`
	Time     *string            `json:"time,omitempty"`
	Status   *AppointmentStatus `json:"status,omitempty"`
	Reason   *string            `json:"reason,omitempty"`
	Notes    *string            `json:"notes,omitempty"`
}

// MedicalRecord is a diagnosis entry written by a doctor for a patient.
type MedicalRecord struct {
	ID           string `json:"id"`
	PatientID    string `json:"patientId"`
	DoctorID     string `json:"doctorId"`
	Date         string `json:"date"`
	Diagnosis    string `json:"diagnosis"`
	Prescription string `json:"prescription"`
	LabResults   string `json:"labResults,omitempty"`
	Notes        string `json:"notes,omitempty"`
	PDFReport    string `json:"pdfReport,omitempty"`
}

// MedicalRecordUpdate carries a partial medical record update.
type MedicalRecordUpdate struct {
	Date         *string `json:"date,omitempty"`
	Diagnosis    *string `json:"diagnosis,omitempty"`
	Prescription *string `json:"prescription,omitempty"`
	LabResults   *string `json:"labResults,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	PDFReport    *string `json:"pdfReport,omitempty"`
}

// AvailabilitySlot is a recurring weekly window. DayOfWeek follows
// time.Weekday numbering (Sunday = 0).
type AvailabilitySlot struct {
	DayOfWeek int    `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// DoctorAvailability holds a doctor's recurring slots and one-off leave dates.
// Overlaps and past dates are not checked.
type DoctorAvailability struct {
	LeaveDates []string           `json:"leaveDates"`
	Slots      []AvailabilitySlot `json:"slots"`
}

// EmptyAvailability is the shape used for doctors with no published schedule.
func EmptyAvailability() DoctorAvailability {
	return DoctorAvailability{LeaveDates: []string{}, Slots: []AvailabilitySlot{}}
}

// Normalized replaces nil lists with empty ones so JSON renders [] not null.
func (a DoctorAvailability) Normalized() DoctorAvailability {
	if a.LeaveDates == nil {
		a.LeaveDates = []string{}
	}
	if a.Slots == nil {
		a.Slots = []AvailabilitySlot{}
	}
	return a
}

// AvailabilityMap maps doctor id to availability.
type AvailabilityMap map[string]DoctorAvailability

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
