// Package storage is the data-access facade between the dashboards and the
// clinic API. List calls degrade to empty results and never fail; mutations
// log and propagate.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/curasync/portal/internal/clinicapi"
	"github.com/curasync/portal/internal/observability/metrics"
	"github.com/curasync/portal/pkg/logging"
)

var facadeTracer = otel.Tracer("curasync.internal.storage")

// Every facade span wraps one outbound clinic API call.
var clientSpan = trace.WithSpanKind(trace.SpanKindClient)

// Entity labels used in logs, spans and metrics.
const (
	EntityUsers          = "users"
	EntityAppointments   = "appointments"
	EntityMedicalRecords = "medical_records"
	EntityAvailability   = "doctor_availability"
)

// API is the subset of the clinic API client the facade needs.
type API interface {
	ListUsers(ctx context.Context) ([]clinicapi.User, error)
	CreateUser(ctx context.Context, user clinicapi.User) error
	UpdateUser(ctx context.Context, id string, update clinicapi.UserUpdate) error
	DeleteUser(ctx context.Context, id string) error
	Login(ctx context.Context, email, password string) (*clinicapi.User, error)

	ListAppointments(ctx context.Context) ([]clinicapi.Appointment, error)
	CreateAppointment(ctx context.Context, appt clinicapi.Appointment) error
	UpdateAppointment(ctx context.Context, id string, update clinicapi.AppointmentUpdate) error
	DeleteAppointment(ctx context.Context, id string) error

	ListMedicalRecords(ctx context.Context) ([]clinicapi.MedicalRecord, error)
	CreateMedicalRecord(ctx context.Context, record clinicapi.MedicalRecord) error
	UpdateMedicalRecord(ctx context.Context, id string, update clinicapi.MedicalRecordUpdate) error
	DeleteMedicalRecord(ctx context.Context, id string) error

	ListDoctorAvailability(ctx context.Context) (clinicapi.AvailabilityMap, error)
	UpdateDoctorAvailability(ctx context.Context, doctorID string, availability clinicapi.DoctorAvailability) error
}

// Facade translates dashboard calls into clinic API calls.
type Facade struct {
	api     API
	logger  *logging.Logger
	metrics *metrics.FacadeMetrics
}

// New creates a facade over api. metrics may be nil.
func New(api API, logger *logging.Logger, m *metrics.FacadeMetrics) *Facade {
	if api == nil {
		panic("storage: clinic api required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Facade{api: api, logger: logger.Component("storage"), metrics: m}
}

type quietKey struct{}

// QuietFetch marks ctx for best-effort lookups. List failures under it are
// logged at debug level and left out of the fetch metrics; the result still
// carries Err.
func QuietFetch(ctx context.Context) context.Context {
	return context.WithValue(ctx, quietKey{}, true)
}

func isQuiet(ctx context.Context) bool {
	quiet, _ := ctx.Value(quietKey{}).(bool)
	return quiet
}

// FetchResult is the outcome of a list call. Items is never nil; Err is set
// when the fetch failed and Items is the empty default.
type FetchResult[T any] struct {
	Items []T
	Err   error
}

// Failed reports whether the empty default was substituted for real data.
func (r FetchResult[T]) Failed() bool {
	return r.Err != nil
}

// AvailabilityResult is the outcome of the availability fetch.
type AvailabilityResult struct {
	Items clinicapi.AvailabilityMap
	Err   error
}

// Failed reports whether the empty default was substituted for real data.
func (r AvailabilityResult) Failed() bool {
	return r.Err != nil
}

// For returns the availability of one doctor, or the empty shape when the
// doctor has none on record.
func (r AvailabilityResult) For(doctorID string) clinicapi.DoctorAvailability {
	if a, ok := r.Items[doctorID]; ok {
		return a.Normalized()
	}
	return clinicapi.EmptyAvailability()
}

// Users lists every user.
func (f *Facade) Users(ctx context.Context) FetchResult[clinicapi.User] {
	return fetchAll(ctx, f, EntityUsers, "users", f.api.ListUsers)
}

// AddUser creates a user.
func (f *Facade) AddUser(ctx context.Context, user clinicapi.User) error {
	return f.mutate(ctx, EntityUsers, "create", user.ID, "error adding user", func(ctx context.Context) error {
		return f.api.CreateUser(ctx, user)
	})
}

// UpdateUser applies a partial update to a user.
func (f *Facade) UpdateUser(ctx context.Context, userID string, update clinicapi.UserUpdate) error {
	return f.mutate(ctx, EntityUsers, "update", userID, "error updating user", func(ctx context.Context) error {
		return f.api.UpdateUser(ctx, userID, update)
	})
}

// DeleteUser removes a user.
func (f *Facade) DeleteUser(ctx context.Context, userID string) error {
	return f.mutate(ctx, EntityUsers, "delete", userID, "error deleting user", func(ctx context.Context) error {
		return f.api.DeleteUser(ctx, userID)
	})
}

// LoginUser checks credentials against the clinic API.
func (f *Facade) LoginUser(ctx context.Context, email, password string) (*clinicapi.User, error) {
	var user *clinicapi.User
	err := f.mutate(ctx, EntityUsers, "login", "", "error during login", func(ctx context.Context) error {
		var err error
		user, err = f.api.Login(ctx, email, password)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Appointments lists every appointment.
func (f *Facade) Appointments(ctx context.Context) FetchResult[clinicapi.Appointment] {
	return fetchAll(ctx, f, EntityAppointments, "appointments", f.api.ListAppointments)
}

// AddAppointment creates an appointment.
func (f *Facade) AddAppointment(ctx context.Context, appt clinicapi.Appointment) error {
	return f.mutate(ctx, EntityAppointments, "create", appt.ID, "error adding appointment", func(ctx context.Context) error {
		return f.api.CreateAppointment(ctx, appt)
	})
}

// UpdateAppointment applies a partial update to an appointment.
func (f *Facade) UpdateAppointment(ctx context.Context, appointmentID string, update clinicapi.AppointmentUpdate) error {
	return f.mutate(ctx, EntityAppointments, "update", appointmentID, "error updating appointment", func(ctx context.Context) error {
		return f.api.UpdateAppointment(ctx, appointmentID, update)
	})
}

// DeleteAppointment removes an appointment.
func (f *Facade) DeleteAppointment(ctx context.Context, appointmentID string) error {
	return f.mutate(ctx, EntityAppointments, "delete", appointmentID, "error deleting appointment", func(ctx context.Context) error {
		return f.api.DeleteAppointment(ctx, appointmentID)
	})
}

// MedicalRecords lists every medical record.
func (f *Facade) MedicalRecords(ctx context.Context) FetchResult[clinicapi.MedicalRecord] {
	return fetchAll(ctx, f, EntityMedicalRecords, "medical records", f.api.ListMedicalRecords)
}

// AddMedicalRecord creates a medical record.
func (f *Facade) AddMedicalRecord(ctx context.Context, record clinicapi.MedicalRecord) error {
	return f.mutate(ctx, EntityMedicalRecords, "create", record.ID, "error adding medical record", func(ctx context.Context) error {
		return f.api.CreateMedicalRecord(ctx, record)
	})
}

// UpdateMedicalRecord applies a partial update to a medical record.
func (f *Facade) UpdateMedicalRecord(ctx context.Context, recordID string, update clinicapi.MedicalRecordUpdate) error {
	return f.mutate(ctx, EntityMedicalRecords, "update", recordID, "error updating medical record", func(ctx context.Context) error {
		return f.api.UpdateMedicalRecord(ctx, recordID, update)
	})
}

// DeleteMedicalRecord removes a medical record.
func (f *Facade) DeleteMedicalRecord(ctx context.Context, recordID string) error {
	return f.mutate(ctx, EntityMedicalRecords, "delete", recordID, "error deleting medical record", func(ctx context.Context) error {
		return f.api.DeleteMedicalRecord(ctx, recordID)
	})
}

// DoctorAvailability returns availability for all doctors, or an empty map
// when the fetch fails.
func (f *Facade) DoctorAvailability(ctx context.Context) AvailabilityResult {
	ctx, span := facadeTracer.Start(ctx, "storage.list."+EntityAvailability, clientSpan)
	defer span.End()

	start := time.Now()
	items, err := f.api.ListDoctorAvailability(ctx)
	f.metrics.ObserveFetch(EntityAvailability, err != nil, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch degraded")
		f.logger.Error("error fetching doctor availability", "error", err)
		return AvailabilityResult{Items: clinicapi.AvailabilityMap{}, Err: err}
	}
	if items == nil {
		items = clinicapi.AvailabilityMap{}
	}
	span.SetAttributes(attribute.Int("curasync.items", len(items)))
	return AvailabilityResult{Items: items}
}

// UpdateDoctorAvailability replaces one doctor's availability.
func (f *Facade) UpdateDoctorAvailability(ctx context.Context, doctorID string, availability clinicapi.DoctorAvailability) error {
	return f.mutate(ctx, EntityAvailability, "update", doctorID, "error updating doctor availability", func(ctx context.Context) error {
		return f.api.UpdateDoctorAvailability(ctx, doctorID, availability)
	})
}

func fetchAll[T any](ctx context.Context, f *Facade, entity, label string, list func(context.Context) ([]T, error)) FetchResult[T] {
	ctx, span := facadeTracer.Start(ctx, "storage.list."+entity, clientSpan)
	defer span.End()

	start := time.Now()
	items, err := list(ctx)
	quiet := isQuiet(ctx)
	if !quiet {
		f.metrics.ObserveFetch(entity, err != nil, time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch degraded")
		if quiet {
			f.logger.Debug("best-effort fetch of "+label+" failed", "error", err)
		} else {
			f.logger.Error("error fetching "+label, "error", err)
		}
		return FetchResult[T]{Items: []T{}, Err: err}
	}
	if items == nil {
		items = []T{}
	}
	span.SetAttributes(attribute.Int("curasync.items", len(items)))
	return FetchResult[T]{Items: items}
}

func (f *Facade) mutate(ctx context.Context, entity, operation, id, logMsg string, call func(context.Context) error) error {
	ctx, span := facadeTracer.Start(ctx, "storage."+operation+"."+entity, clientSpan)
	defer span.End()
	if id != "" {
		span.SetAttributes(attribute.String("curasync.entity_id", id))
	}

	start := time.Now()
	err := call(ctx)
	f.metrics.ObserveMutation(entity, operation, err, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, operation+" failed")
		f.logger.Error(logMsg, "entity_id", id, "error", err)
		return fmt.Errorf("storage: %s %s: %w", operation, entity, err)
	}
	return nil
}
