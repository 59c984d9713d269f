package dashboard

import (
	"strings"
	"unicode"

	"github.com/curasync/portal/internal/clinicapi"
)

const notAvailable = "N/A"

var dayNames = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DayName maps a slot's dayOfWeek (Sunday = 0) to its English name. Values
// outside 0..6 yield "".
func DayName(day int) string {
	if day < 0 || day >= len(dayNames) {
		return ""
	}
	return dayNames[day]
}

// DoctorIndex looks doctors up by id.
type DoctorIndex map[string]clinicapi.User

// IndexDoctors keeps the users with the doctor role, in input order, and
// indexes them by id.
func IndexDoctors(users []clinicapi.User) ([]clinicapi.User, DoctorIndex) {
	doctors := make([]clinicapi.User, 0, len(users))
	index := make(DoctorIndex, len(users))
	for _, u := range users {
		if u.Role != clinicapi.RoleDoctor {
			continue
		}
		doctors = append(doctors, u)
		index[u.ID] = u
	}
	return doctors, index
}

// DisplayName renders "Dr. First Last", or "N/A" for unknown ids.
func (idx DoctorIndex) DisplayName(doctorID string) string {
	doc, ok := idx[doctorID]
	if !ok {
		return notAvailable
	}
	return doctorName(doc)
}

func doctorName(doc clinicapi.User) string {
	return "Dr. " + doc.FullName()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

// HeaderView is the identity strip shown on every dashboard.
type HeaderView struct {
	DisplayName string         `json:"displayName"`
	Role        clinicapi.Role `json:"role"`
	RoleLabel   string         `json:"roleLabel"`
	Badge       string         `json:"badge"`
}

// Badge colours per role.
const (
	BadgeRed    = "red"
	BadgeBlue   = "blue"
	BadgePurple = "purple"
	BadgeGreen  = "green"
	BadgeGray   = "gray"
)

// Header builds the header view for user.
func Header(user clinicapi.User) HeaderView {
	return HeaderView{
		DisplayName: user.FullName(),
		Role:        user.Role,
		RoleLabel:   capitalize(string(user.Role)),
		Badge:       badgeFor(user.Role),
	}
}

func badgeFor(role clinicapi.Role) string {
	switch role {
	case clinicapi.RoleAdmin:
		return BadgeRed
	case clinicapi.RoleDoctor:
		return BadgeBlue
	case clinicapi.RoleNurse:
		return BadgePurple
	case clinicapi.RolePatient:
		return BadgeGreen
	default:
		return BadgeGray
	}
}

func capitalize(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}

// Stats is the row of summary cards.
type Stats struct {
	BloodType            string `json:"bloodType"`
	UpcomingAppointments int    `json:"upcomingAppointments"`
	MedicalRecords       int    `json:"medicalRecords"`
	EmergencyContact     string `json:"emergencyContact"`
}

// Profile is the personal information block.
type Profile struct {
	FullName         string `json:"fullName"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	DateOfBirth      string `json:"dateOfBirth"`
	BloodType        string `json:"bloodType"`
	EmergencyContact string `json:"emergencyContact"`
}

func profileOf(user clinicapi.User) Profile {
	return Profile{
		FullName:         user.FullName(),
		Email:            user.Email,
		Phone:            orNA(user.Phone),
		DateOfBirth:      orNA(user.DateOfBirth),
		BloodType:        orNA(user.BloodType),
		EmergencyContact: orNA(user.EmergencyContact),
	}
}

// AppointmentRow is an appointment joined with its doctor's name.
type AppointmentRow struct {
	clinicapi.Appointment
	DoctorName string `json:"doctorName"`
}

// RecordRow is a medical record joined with its doctor's name. PDFReport
// holds a link the browser can open.
type RecordRow struct {
	clinicapi.MedicalRecord
	DoctorName string `json:"doctorName"`
}

// SlotView is an availability slot with its day name.
type SlotView struct {
	DayOfWeek int    `json:"dayOfWeek"`
	Day       string `json:"day"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// AvailabilityView is a doctor's schedule as shown in the doctor dialog.
type AvailabilityView struct {
	LeaveDates []string   `json:"leaveDates"`
	Slots      []SlotView `json:"slots"`
}

func availabilityView(a clinicapi.DoctorAvailability) AvailabilityView {
	a = a.Normalized()
	view := AvailabilityView{LeaveDates: a.LeaveDates, Slots: make([]SlotView, 0, len(a.Slots))}
	for _, s := range a.Slots {
		view.Slots = append(view.Slots, SlotView{
			DayOfWeek: s.DayOfWeek,
			Day:       DayName(s.DayOfWeek),
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
		})
	}
	return view
}

// DoctorCard is one entry of the available doctors tab.
type DoctorCard struct {
	ID             string           `json:"id"`
	DisplayName    string           `json:"displayName"`
	Specialization string           `json:"specialization"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone"`
	Availability   AvailabilityView `json:"availability"`
}

// PatientDashboard is everything the patient dashboard renders.
type PatientDashboard struct {
	Header   HeaderView       `json:"header"`
	Stats    Stats            `json:"stats"`
	Profile  Profile          `json:"profile"`
	Upcoming []AppointmentRow `json:"upcoming"`
	Past     []AppointmentRow `json:"past"`
	Doctors  []DoctorCard     `json:"doctors"`
	Records  []RecordRow      `json:"records"`
	// LoadErrors names the sources that could not be fetched; their sections
	// are empty rather than missing.
	LoadErrors []string `json:"loadErrors"`
}
