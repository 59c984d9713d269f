package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/curasync/portal/internal/clinicapi"
	"github.com/curasync/portal/internal/live"
	"github.com/curasync/portal/internal/storage"
)

var errUpstream = errors.New("clinic api unavailable")

// fakeFacade is an in-memory clinic backend.
type fakeFacade struct {
	mu           sync.Mutex
	users        []clinicapi.User
	appointments []clinicapi.Appointment
	records      []clinicapi.MedicalRecord
	availability clinicapi.AvailabilityMap

	failUsers, failAppointments, failRecords, failAvailability bool
	failAdd, failDelete                                        bool

	deleteCalls int
	addCalls    int
	usersCalls  int
}

func (f *fakeFacade) Users(context.Context) storage.FetchResult[clinicapi.User] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usersCalls++
	if f.failUsers {
		return storage.FetchResult[clinicapi.User]{Items: []clinicapi.User{}, Err: errUpstream}
	}
	return storage.FetchResult[clinicapi.User]{Items: append([]clinicapi.User{}, f.users...)}
}

func (f *fakeFacade) Appointments(context.Context) storage.FetchResult[clinicapi.Appointment] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppointments {
		return storage.FetchResult[clinicapi.Appointment]{Items: []clinicapi.Appointment{}, Err: errUpstream}
	}
	return storage.FetchResult[clinicapi.Appointment]{Items: append([]clinicapi.Appointment{}, f.appointments...)}
}

func (f *fakeFacade) MedicalRecords(context.Context) storage.FetchResult[clinicapi.MedicalRecord] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRecords {
		return storage.FetchResult[clinicapi.MedicalRecord]{Items: []clinicapi.MedicalRecord{}, Err: errUpstream}
	}
	return storage.FetchResult[clinicapi.MedicalRecord]{Items: append([]clinicapi.MedicalRecord{}, f.records...)}
}

func (f *fakeFacade) DoctorAvailability(context.Context) storage.AvailabilityResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAvailability {
		return storage.AvailabilityResult{Items: clinicapi.AvailabilityMap{}, Err: errUpstream}
	}
	items := clinicapi.AvailabilityMap{}
	for k, v := range f.availability {
		items[k] = v
	}
	return storage.AvailabilityResult{Items: items}
}

func (f *fakeFacade) AddAppointment(_ context.Context, appt clinicapi.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.failAdd {
		return errUpstream
	}
	f.appointments = append(f.appointments, appt)
	return nil
}

func (f *fakeFacade) DeleteAppointment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.failDelete {
		return errUpstream
	}
	for i, a := range f.appointments {
		if a.ID == id {
			f.appointments = append(f.appointments[:i], f.appointments[i+1:]...)
			return nil
		}
	}
	return &clinicapi.APIError{StatusCode: 404, Method: "DELETE", Path: "/appointments/" + id}
}

type recordingAudit struct {
	booked    []string
	cancelled []string
}

func (a *recordingAudit) LogAppointmentBooked(_ context.Context, _, appointmentID, _, _, _ string) error {
	a.booked = append(a.booked, appointmentID)
	return nil
}

func (a *recordingAudit) LogAppointmentCancelled(_ context.Context, _, appointmentID string) error {
	a.cancelled = append(a.cancelled, appointmentID)
	return nil
}

type recordingNotifier struct {
	doctorNames []string
	err         error
}

func (n *recordingNotifier) AppointmentBooked(_ context.Context, _ clinicapi.User, doctorName string, _ clinicapi.Appointment) error {
	n.doctorNames = append(n.doctorNames, doctorName)
	return n.err
}

type recordingPublisher struct {
	events map[string][]string
}

func (p *recordingPublisher) Publish(userID string, evt live.Event) int {
	if p.events == nil {
		p.events = map[string][]string{}
	}
	p.events[userID] = append(p.events[userID], evt.Type)
	return 1
}

type prefixLinker struct{}

func (prefixLinker) ReportURL(_ context.Context, raw string) (string, error) {
	if raw == "s3://broken/x" {
		return "", errors.New("presign failed")
	}
	if len(raw) > 5 && raw[:5] == "s3://" {
		return "https://signed.example/" + raw[5:], nil
	}
	return raw, nil
}

var (
	patientP1 = clinicapi.User{ID: "p1", Email: "pat@example.com", FirstName: "Pat", LastName: "Lee", Role: clinicapi.RolePatient, BloodType: "O+"}
	patientP2 = clinicapi.User{ID: "p2", Email: "sam@example.com", FirstName: "Sam", LastName: "Roe", Role: clinicapi.RolePatient}
	doctorD1  = clinicapi.User{ID: "d1", Email: "ana@clinic.test", FirstName: "Ana", LastName: "Ruiz", Role: clinicapi.RoleDoctor, Specialization: "Cardiology"}
	doctorD2  = clinicapi.User{ID: "d2", Email: "ben@clinic.test", FirstName: "Ben", LastName: "Ode", Role: clinicapi.RoleDoctor, Phone: "+15550002222"}
	nurseN1   = clinicapi.User{ID: "n1", FirstName: "Nia", LastName: "Kay", Role: clinicapi.RoleNurse}
)

func seededFacade() *fakeFacade {
	return &fakeFacade{
		users: []clinicapi.User{patientP1, patientP2, doctorD1, doctorD2, nurseN1},
		appointments: []clinicapi.Appointment{
			{ID: "a1", PatientID: "p1", DoctorID: "d1", Date: "2024-05-01", Time: "09:00", Status: clinicapi.StatusScheduled, Reason: "checkup"},
			{ID: "a2", PatientID: "p1", DoctorID: "d2", Date: "2024-04-01", Time: "10:00", Status: clinicapi.StatusCompleted, Reason: "follow-up"},
			{ID: "a3", PatientID: "p2", DoctorID: "d1", Date: "2024-05-02", Time: "11:00", Status: clinicapi.StatusScheduled, Reason: "rash"},
			{ID: "a4", PatientID: "p1", DoctorID: "gone", Date: "2024-05-03", Time: "12:00", Status: clinicapi.StatusScheduled, Reason: "x-ray"},
		},
		records: []clinicapi.MedicalRecord{
			{ID: "r1", PatientID: "p1", DoctorID: "d1", Date: "2024-04-01", Diagnosis: "Flu", Prescription: "Rest", PDFReport: "s3://reports/p1/r1.pdf"},
			{ID: "r2", PatientID: "p2", DoctorID: "d1", Date: "2024-04-02", Diagnosis: "Rash", Prescription: "Cream"},
			{ID: "r3", PatientID: "p1", DoctorID: "d2", Date: "2024-04-03", Diagnosis: "Sprain", Prescription: "Ice", PDFReport: "https://files.example/r3.pdf"},
		},
		availability: clinicapi.AvailabilityMap{
			"d1": {LeaveDates: []string{"2024-05-10"}, Slots: []clinicapi.AvailabilitySlot{{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00"}}},
		},
	}
}
