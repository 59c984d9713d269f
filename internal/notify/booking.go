package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/curasync/portal/internal/clinicapi"
	"github.com/curasync/portal/pkg/logging"
)

// BookingNotifier emails patients about their appointments.
type BookingNotifier struct {
	sender EmailSender
	logger *logging.Logger
}

// NewBookingNotifier wraps sender; a nil sender falls back to the stub.
func NewBookingNotifier(sender EmailSender, logger *logging.Logger) *BookingNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	return &BookingNotifier{sender: sender, logger: logger.Component("notify")}
}

// AppointmentBooked sends the booking confirmation. Patients without an email
// address are skipped.
func (n *BookingNotifier) AppointmentBooked(ctx context.Context, patient clinicapi.User, doctorName string, appt clinicapi.Appointment) error {
	if n == nil {
		return nil
	}
	if strings.TrimSpace(patient.Email) == "" {
		n.logger.Debug("booking confirmation skipped: no email", "patient_id", patient.ID)
		return nil
	}
	if doctorName == "" {
		doctorName = "your doctor"
	}

	subject := fmt.Sprintf("Appointment confirmed for %s at %s", appt.Date, appt.Time)
	body := fmt.Sprintf(
		"Hi %s,\n\nYour appointment with %s on %s at %s is booked.\nReason: %s\n\nYou can cancel it from your dashboard.\n",
		firstNonEmpty(patient.FirstName, patient.FullName()), doctorName, appt.Date, appt.Time, appt.Reason,
	)

	if err := n.sender.Send(ctx, EmailMessage{
		To:      patient.Email,
		ToName:  patient.FullName(),
		Subject: subject,
		Body:    body,
	}); err != nil {
		return fmt.Errorf("notify: booking confirmation: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return "there"
}
