package clinicapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/curasync/portal/pkg/logging"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 300
)

// Client wraps the REST calls exposed by the clinic API. It performs no
// retries; every failure is returned to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *logging.Logger
}

// Config holds configuration for the clinic API client.
type Config struct {
	BaseURL    string // e.g. "https://api.curasync.example/api"
	Token      string // optional bearer token
	Timeout    time.Duration
	HTTPClient *http.Client // optional; Timeout is ignored when set
}

// New creates a clinic API client.
func New(cfg Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("clinicapi: BaseURL is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		logger:     logger,
	}, nil
}

// ListUsers returns every user known to the API.
// GET /users
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.doJSON(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CreateUser registers a user.
// POST /users
func (c *Client) CreateUser(ctx context.Context, user User) error {
	if err := c.doJSON(ctx, http.MethodPost, "/users", user, nil); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateUser applies a partial update.
// PUT /users/{id}
func (c *Client) UpdateUser(ctx context.Context, id string, update UserUpdate) error {
	if err := c.doJSON(ctx, http.MethodPut, resourcePath("/users", id), update, nil); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// DeleteUser removes a user.
// DELETE /users/{id}
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, resourcePath("/users", id), nil, nil); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// Login exchanges credentials for the matching user.
// POST /auth/login
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password}, &raw); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	// The API answers either with the bare user or {"user": {...}}.
	var wrapped struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("login: decode user: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("login: response carried no user")
	}
	return &user, nil
}

// ListAppointments returns every appointment.
// GET /appointments
func (c *Client) ListAppointments(ctx context.Context) ([]Appointment, error) {
	var appts []Appointment
	if err := c.doJSON(ctx, http.MethodGet, "/appointments", nil, &appts); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// CreateAppointment books an appointment.
// POST /appointments
func (c *Client) CreateAppointment(ctx context.Context, appt Appointment) error {
	if err := c.doJSON(ctx, http.MethodPost, "/appointments", appt, nil); err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// UpdateAppointment applies a partial update.
// PUT /appointments/{id}
func (c *Client) UpdateAppointment(ctx context.Context, id string, update AppointmentUpdate) error {
	if err := c.doJSON(ctx, http.MethodPut, resourcePath("/appointments", id), update, nil); err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

// DeleteAppointment removes an appointment. This is how cancellation works.
// DELETE /appointments/{id}
func (c *Client) DeleteAppointment(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, resourcePath("/appointments", id), nil, nil); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

// ListMedicalRecords returns every medical record.
// GET /medical-records
func (c *Client) ListMedicalRecords(ctx context.Context) ([]MedicalRecord, error) {
	var records []MedicalRecord
	if err := c.doJSON(ctx, http.MethodGet, "/medical-records", nil, &records); err != nil {
		return nil, fmt.Errorf("list medical records: %w", err)
	}
	return records, nil
}

// CreateMedicalRecord stores a medical record.
// POST /medical-records
func (c *Client) CreateMedicalRecord(ctx context.Context, record MedicalRecord) error {
	if err := c.doJSON(ctx, http.MethodPost, "/medical-records", record, nil); err != nil {
		return fmt.Errorf("create medical record: %w", err)
	}
	return nil
}

// UpdateMedicalRecord applies a partial update.
// PUT /medical-records/{id}
func (c *Client) UpdateMedicalRecord(ctx context.Context, id string, update MedicalRecordUpdate) error {
	if err := c.doJSON(ctx, http.MethodPut, resourcePath("/medical-records", id), update, nil); err != nil {
		return fmt.Errorf("update medical record: %w", err)
	}
	return nil
}

// DeleteMedicalRecord removes a medical record.
// DELETE /medical-records/{id}
func (c *Client) DeleteMedicalRecord(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, resourcePath("/medical-records", id), nil, nil); err != nil {
		return fmt.Errorf("delete medical record: %w", err)
	}
	return nil
}

// ListDoctorAvailability returns the availability of every doctor keyed by
// doctor id.
// GET /doctor-availability
func (c *Client) ListDoctorAvailability(ctx context.Context) (AvailabilityMap, error) {
	availability := AvailabilityMap{}
	if err := c.doJSON(ctx, http.MethodGet, "/doctor-availability", nil, &availability); err != nil {
		return nil, fmt.Errorf("list doctor availability: %w", err)
	}
	return availability, nil
}

// UpdateDoctorAvailability replaces one doctor's availability.
// PUT /doctor-availability/{doctorId}
func (c *Client) UpdateDoctorAvailability(ctx context.Context, doctorID string, availability DoctorAvailability) error {
	if err := c.doJSON(ctx, http.MethodPut, resourcePath("/doctor-availability", doctorID), availability.Normalized(), nil); err != nil {
		return fmt.Errorf("update doctor availability: %w", err)
	}
	return nil
}

func resourcePath(collection, id string) string {
	return collection + "/" + url.PathEscape(id)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	endpoint := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, method, path, respBody)
		c.logger.Warn("clinic API non-2xx response", "status", resp.StatusCode, "method", method, "path", path, "body", apiErr.Body)
		return apiErr
	}

	if len(bytes.TrimSpace(respBody)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// APIError is returned for any non-2xx answer from the clinic API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func newAPIError(status int, method, path string, body []byte) *APIError {
	msg := string(body)
	if len(msg) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return &APIError{StatusCode: status, Method: method, Path: path, Body: msg}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clinic API returned %d for %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// IsStatus reports whether err wraps an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
