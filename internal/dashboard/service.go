// Package dashboard assembles the patient dashboard and carries out the
// patient's booking and cancellation actions.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/curasync/portal/internal/clinicapi"
	"github.com/curasync/portal/internal/live"
	"github.com/curasync/portal/internal/observability/metrics"
	"github.com/curasync/portal/internal/storage"
	"github.com/curasync/portal/pkg/logging"
)

var dashboardTracer = otel.Tracer("curasync.internal.dashboard")

// User-visible notices.
const (
	NoticeBooked       = "Appointment booked successfully"
	NoticeBookFailed   = "Failed to book appointment"
	NoticeCancelled    = "Appointment cancelled successfully"
	NoticeCancelFailed = "Failed to cancel appointment"
)

// Names used in PatientDashboard.LoadErrors.
const (
	SourceUsers          = "users"
	SourceAppointments   = "appointments"
	SourceMedicalRecords = "medicalRecords"
	SourceAvailability   = "doctorAvailability"
)

var (
	// ErrConfirmationRequired is returned by Cancel when the user has not
	// confirmed; nothing is deleted.
	ErrConfirmationRequired = errors.New("dashboard: cancellation requires confirmation")
	// ErrAppointmentNotFound is returned when the appointment is not one of
	// the user's own.
	ErrAppointmentNotFound = errors.New("dashboard: appointment not found")
	// ErrAppointmentNotCancellable is returned for the user's appointments that
	// are no longer scheduled; past visits are read-only.
	ErrAppointmentNotCancellable = errors.New("dashboard: only scheduled appointments can be cancelled")
)

// ValidationError lists the booking form fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "dashboard: invalid booking form: " + strings.Join(e.Fields, ", ")
}

// Facade is the data access the dashboard needs.
type Facade interface {
	Users(ctx context.Context) storage.FetchResult[clinicapi.User]
	Appointments(ctx context.Context) storage.FetchResult[clinicapi.Appointment]
	MedicalRecords(ctx context.Context) storage.FetchResult[clinicapi.MedicalRecord]
	DoctorAvailability(ctx context.Context) storage.AvailabilityResult
	AddAppointment(ctx context.Context, appt clinicapi.Appointment) error
	DeleteAppointment(ctx context.Context, appointmentID string) error
}

// Auditor records booking and cancellation.
type Auditor interface {
	LogAppointmentBooked(ctx context.Context, userID, appointmentID, doctorID, date, timeOfDay string) error
	LogAppointmentCancelled(ctx context.Context, userID, appointmentID string) error
}

// Notifier sends the booking confirmation.
type Notifier interface {
	AppointmentBooked(ctx context.Context, patient clinicapi.User, doctorName string, appt clinicapi.Appointment) error
}

// Publisher pushes refresh hints to the user's open dashboards.
type Publisher interface {
	Publish(userID string, evt live.Event) int
}

// ReportLinker turns a stored report location into a browser link.
type ReportLinker interface {
	ReportURL(ctx context.Context, raw string) (string, error)
}

// Deps are the optional collaborators of Service. Nil members are skipped.
type Deps struct {
	Audit    Auditor
	Notifier Notifier
	Live     Publisher
	Reports  ReportLinker
	Metrics  *metrics.DashboardMetrics
	Logger   *logging.Logger
}

// Service implements the patient dashboard.
type Service struct {
	facade   Facade
	audit    Auditor
	notifier Notifier
	live     Publisher
	reports  ReportLinker
	metrics  *metrics.DashboardMetrics
	logger   *logging.Logger
	validate *validator.Validate
	newID    func() string
}

// NewService constructs the dashboard service.
func NewService(facade Facade, deps Deps) *Service {
	if facade == nil {
		panic("dashboard: facade required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		facade:   facade,
		audit:    deps.Audit,
		notifier: deps.Notifier,
		live:     deps.Live,
		reports:  deps.Reports,
		metrics:  deps.Metrics,
		logger:   logger.Component("dashboard"),
		validate: newValidator(),
		newID:    uuid.NewString,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// LoadPatient fetches users, appointments, records and availability in
// parallel and builds the dashboard for patient. A failed fetch leaves its
// sections empty and is listed in LoadErrors.
func (s *Service) LoadPatient(ctx context.Context, patient clinicapi.User) PatientDashboard {
	ctx, span := dashboardTracer.Start(ctx, "dashboard.load_patient")
	defer span.End()
	span.SetAttributes(attribute.String("curasync.user_id", patient.ID))

	var (
		users        storage.FetchResult[clinicapi.User]
		appointments storage.FetchResult[clinicapi.Appointment]
		records      storage.FetchResult[clinicapi.MedicalRecord]
		availability storage.AvailabilityResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { users = s.facade.Users(gctx); return nil })
	g.Go(func() error { appointments = s.facade.Appointments(gctx); return nil })
	g.Go(func() error { records = s.facade.MedicalRecords(gctx); return nil })
	g.Go(func() error { availability = s.facade.DoctorAvailability(gctx); return nil })
	_ = g.Wait()

	doctors, index := IndexDoctors(users.Items)

	view := PatientDashboard{
		Header:     Header(patient),
		Profile:    profileOf(patient),
		Upcoming:   []AppointmentRow{},
		Past:       []AppointmentRow{},
		Doctors:    make([]DoctorCard, 0, len(doctors)),
		Records:    []RecordRow{},
		LoadErrors: []string{},
	}
	for source, failed := range map[string]bool{
		SourceUsers:          users.Failed(),
		SourceAppointments:   appointments.Failed(),
		SourceMedicalRecords: records.Failed(),
		SourceAvailability:   availability.Failed(),
	} {
		if failed {
			view.LoadErrors = append(view.LoadErrors, source)
		}
	}
	sort.Strings(view.LoadErrors)

	for _, appt := range appointments.Items {
		if appt.PatientID != patient.ID {
			continue
		}
		row := AppointmentRow{Appointment: appt, DoctorName: index.DisplayName(appt.DoctorID)}
		switch appt.Status {
		case clinicapi.StatusScheduled:
			view.Upcoming = append(view.Upcoming, row)
		case clinicapi.StatusCompleted:
			view.Past = append(view.Past, row)
		}
	}

	for _, rec := range records.Items {
		if rec.PatientID != patient.ID {
			continue
		}
		rec.PDFReport = s.reportLink(ctx, rec)
		view.Records = append(view.Records, RecordRow{MedicalRecord: rec, DoctorName: index.DisplayName(rec.DoctorID)})
	}

	for _, doc := range doctors {
		view.Doctors = append(view.Doctors, DoctorCard{
			ID:             doc.ID,
			DisplayName:    doctorName(doc),
			Specialization: doc.Specialization,
			Email:          doc.Email,
			Phone:          orNA(doc.Phone),
			Availability:   availabilityView(availability.For(doc.ID)),
		})
	}

	view.Stats = Stats{
		BloodType:            orNA(patient.BloodType),
		UpcomingAppointments: len(view.Upcoming),
		MedicalRecords:       len(view.Records),
		EmergencyContact:     orNA(patient.EmergencyContact),
	}

	outcome := metrics.OutcomeOK
	if len(view.LoadErrors) > 0 {
		outcome = metrics.OutcomeDegraded
		span.SetAttributes(attribute.StringSlice("curasync.load_errors", view.LoadErrors))
		s.logger.Warn("patient dashboard degraded", "user_id", patient.ID, "sources", view.LoadErrors)
	}
	s.metrics.ObserveAction("load", outcome)
	return view
}

func (s *Service) reportLink(ctx context.Context, rec clinicapi.MedicalRecord) string {
	if rec.PDFReport == "" || s.reports == nil {
		return rec.PDFReport
	}
	link, err := s.reports.ReportURL(ctx, rec.PDFReport)
	if err != nil {
		s.logger.Warn("medical report link unavailable", "record_id", rec.ID, "error", err)
		return ""
	}
	return link
}

// BookingForm is the patient's booking request.
type BookingForm struct {
	DoctorID string `json:"doctorId" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Time     string `json:"time" validate:"required,datetime=15:04"`
	Reason   string `json:"reason" validate:"required"`
}

func (f BookingForm) trimmed() BookingForm {
	return BookingForm{
		DoctorID: strings.TrimSpace(f.DoctorID),
		Date:     strings.TrimSpace(f.Date),
		Time:     strings.TrimSpace(f.Time),
		Reason:   strings.TrimSpace(f.Reason),
	}
}

// Book creates a scheduled appointment for patient. Availability and
// double-booking are not checked.
func (s *Service) Book(ctx context.Context, patient clinicapi.User, form BookingForm) (clinicapi.Appointment, error) {
	ctx, span := dashboardTracer.Start(ctx, "dashboard.book")
	defer span.End()
	span.SetAttributes(attribute.String("curasync.user_id", patient.ID))

	form = form.trimmed()
	if err := s.validateForm(form); err != nil {
		s.metrics.ObserveAction("book", metrics.OutcomeError)
		return clinicapi.Appointment{}, err
	}

	appt := clinicapi.Appointment{
		ID:        s.newID(),
		PatientID: patient.ID,
		DoctorID:  form.DoctorID,
		Date:      form.Date,
		Time:      form.Time,
		Status:    clinicapi.StatusScheduled,
		Reason:    form.Reason,
	}
	span.SetAttributes(attribute.String("curasync.appointment_id", appt.ID))

	if err := s.facade.AddAppointment(ctx, appt); err != nil {
		span.RecordError(err)
		s.metrics.ObserveAction("book", metrics.OutcomeError)
		return clinicapi.Appointment{}, fmt.Errorf("dashboard: book appointment: %w", err)
	}
	s.metrics.ObserveAction("book", metrics.OutcomeOK)
	s.logger.Info("appointment booked", "user_id", patient.ID, "appointment_id", appt.ID, "doctor_id", appt.DoctorID)

	if s.audit != nil {
		if err := s.audit.LogAppointmentBooked(ctx, patient.ID, appt.ID, appt.DoctorID, appt.Date, appt.Time); err != nil {
			s.logger.Warn("audit booking failed", "appointment_id", appt.ID, "error", err)
		}
	}
	if s.notifier != nil && strings.TrimSpace(patient.Email) != "" {
		if err := s.notifier.AppointmentBooked(ctx, patient, s.doctorDisplayName(ctx, appt.DoctorID), appt); err != nil {
			s.logger.Warn("booking confirmation not sent", "appointment_id", appt.ID, "error", err)
		}
	}
	s.publishChanged(patient.ID)
	return appt, nil
}

func (s *Service) validateForm(form BookingForm) error {
	err := s.validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("dashboard: validate booking form: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{Fields: fields}
}

// doctorDisplayName names the doctor for the confirmation email. An empty
// name is acceptable, so the lookup does not count as a degraded fetch.
func (s *Service) doctorDisplayName(ctx context.Context, doctorID string) string {
	users := s.facade.Users(storage.QuietFetch(ctx))
	if users.Failed() {
		return ""
	}
	_, index := IndexDoctors(users.Items)
	if _, ok := index[doctorID]; !ok {
		return ""
	}
	return index.DisplayName(doctorID)
}

// Cancel deletes one of patient's scheduled appointments. Without
// confirmation it returns ErrConfirmationRequired and makes no remote call.
func (s *Service) Cancel(ctx context.Context, patient clinicapi.User, appointmentID string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	ctx, span := dashboardTracer.Start(ctx, "dashboard.cancel")
	defer span.End()
	span.SetAttributes(
		attribute.String("curasync.user_id", patient.ID),
		attribute.String("curasync.appointment_id", appointmentID),
	)

	appointments := s.facade.Appointments(ctx)
	if appointments.Failed() {
		s.metrics.ObserveAction("cancel", metrics.OutcomeError)
		return fmt.Errorf("dashboard: cancel appointment: %w", appointments.Err)
	}
	appt, ok := ownAppointment(appointments.Items, patient.ID, appointmentID)
	if !ok {
		s.metrics.ObserveAction("cancel", metrics.OutcomeError)
		return ErrAppointmentNotFound
	}
	if appt.Status != clinicapi.StatusScheduled {
		s.metrics.ObserveAction("cancel", metrics.OutcomeError)
		return ErrAppointmentNotCancellable
	}

	if err := s.facade.DeleteAppointment(ctx, appointmentID); err != nil {
		span.RecordError(err)
		s.metrics.ObserveAction("cancel", metrics.OutcomeError)
		return fmt.Errorf("dashboard: cancel appointment: %w", err)
	}
	s.metrics.ObserveAction("cancel", metrics.OutcomeOK)
	s.logger.Info("appointment cancelled", "user_id", patient.ID, "appointment_id", appointmentID)

	if s.audit != nil {
		if err := s.audit.LogAppointmentCancelled(ctx, patient.ID, appointmentID); err != nil {
			s.logger.Warn("audit cancellation failed", "appointment_id", appointmentID, "error", err)
		}
	}
	s.publishChanged(patient.ID)
	return nil
}

func ownAppointment(appts []clinicapi.Appointment, patientID, appointmentID string) (clinicapi.Appointment, bool) {
	for _, a := range appts {
		if a.ID == appointmentID && a.PatientID == patientID {
			return a, true
		}
	}
	return clinicapi.Appointment{}, false
}

func (s *Service) publishChanged(userID string) {
	if s.live == nil {
		return
	}
	s.live.Publish(userID, live.Event{Type: live.EventAppointmentsChanged})
}

// DoctorAvailability returns one doctor's schedule, empty for unknown ids.
func (s *Service) DoctorAvailability(ctx context.Context, doctorID string) AvailabilityView {
	return availabilityView(s.facade.DoctorAvailability(ctx).For(doctorID))
}
