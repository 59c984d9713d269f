package clinicapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curasync/portal/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(Config{BaseURL: server.URL + "/api/", Token: "svc-token"}, logging.Default())
	require.NoError(t, err)
	return client
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid config", cfg: Config{BaseURL: "https://api.curasync.test"}},
		{name: "missing base URL", cfg: Config{}, wantErr: true},
		{name: "blank base URL", cfg: Config{BaseURL: "   "}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
		})
	}
}

func TestListAppointments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/appointments", r.URL.Path)
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":"a1","patientId":"p1","doctorId":"d1","date":"2024-05-01","time":"09:00","status":"scheduled","reason":"checkup"}]`)
	})

	appts, err := client.ListAppointments(context.Background())
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "p1", appts[0].PatientID)
	assert.Equal(t, StatusScheduled, appts[0].Status)
}

func TestCreateAppointmentSendsJSON(t *testing.T) {
	var got Appointment
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	err := client.CreateAppointment(context.Background(), Appointment{
		ID: "a9", PatientID: "p1", DoctorID: "d1", Date: "2024-05-01", Time: "09:00", Status: StatusScheduled, Reason: "checkup",
	})
	require.NoError(t, err)
	assert.Equal(t, "a9", got.ID)
	assert.Equal(t, "checkup", got.Reason)
}

func TestUpdateUserSendsOnlySetFields(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/users/u%201", r.URL.EscapedPath())
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	})

	phone := "+15550001111"
	require.NoError(t, client.UpdateUser(context.Background(), "u 1", UserUpdate{Phone: &phone}))
	assert.Equal(t, map[string]any{"phone": phone}, body)
}

func TestDeleteAppointmentNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})

	err := client.DeleteAppointment(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.False(t, IsStatus(err, http.StatusConflict))
	assert.Contains(t, err.Error(), "delete appointment")
}

func TestAPIErrorBodyTruncated(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(long)
	})

	_, err := client.ListUsers(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, apiErr.Body, 300)
}

func TestAPIErrorBodyKeepsWholeRunes(t *testing.T) {
	// 299 ASCII bytes put the 300-byte limit inside the two-byte "é".
	body := strings.Repeat("x", 299) + strings.Repeat("é", 10)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(body))
	})

	_, err := client.ListUsers(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, utf8.ValidString(apiErr.Body))
	assert.Equal(t, strings.Repeat("x", 299), apiErr.Body)
	assert.True(t, utf8.ValidString(err.Error()))
}

func TestLoginAcceptsBareAndWrappedUser(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare", `{"id":"p1","email":"pat@example.com","firstName":"Pat","lastName":"Lee","role":"patient"}`},
		{"wrapped", `{"user":{"id":"p1","email":"pat@example.com","firstName":"Pat","lastName":"Lee","role":"patient"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/auth/login", r.URL.Path)
				var req LoginRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "pat@example.com", req.Email)
				_, _ = io.WriteString(w, tt.body)
			})
			user, err := client.Login(context.Background(), "pat@example.com", "secret")
			require.NoError(t, err)
			assert.Equal(t, "p1", user.ID)
			assert.Equal(t, RolePatient, user.Role)
		})
	}
}

func TestLoginRejectsEmptyUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	_, err := client.Login(context.Background(), "a@b.c", "x")
	assert.Error(t, err)
}

func TestListDoctorAvailability(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/doctor-availability", r.URL.Path)
		_, _ = io.WriteString(w, `{"d1":{"leaveDates":["2024-05-03"],"slots":[{"dayOfWeek":1,"startTime":"09:00","endTime":"12:00"}]}}`)
	})

	availability, err := client.ListDoctorAvailability(context.Background())
	require.NoError(t, err)
	require.Contains(t, availability, "d1")
	assert.Equal(t, []string{"2024-05-03"}, availability["d1"].LeaveDates)
	assert.Equal(t, 1, availability["d1"].Slots[0].DayOfWeek)
}

func TestUpdateDoctorAvailabilityNormalizesNilLists(t *testing.T) {
	var raw map[string]json.RawMessage
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/doctor-availability/d1", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
	})

	require.NoError(t, client.UpdateDoctorAvailability(context.Background(), "d1", DoctorAvailability{}))
	assert.JSONEq(t, `[]`, string(raw["leaveDates"]))
	assert.JSONEq(t, `[]`, string(raw["slots"]))
}

func TestTransportErrorIsWrapped(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client, err := New(Config{BaseURL: server.URL}, nil)
	require.NoError(t, err)

	_, err = client.ListMedicalRecords(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list medical records: http request")
}

func TestUserHelpers(t *testing.T) {
	u := User{FirstName: "Ana", LastName: "Ruiz", Password: "pw", Role: RoleDoctor}
	assert.Equal(t, "Ana Ruiz", u.FullName())
	assert.Empty(t, u.Sanitized().Password)
	assert.Equal(t, "pw", u.Password)
	assert.True(t, u.Role.Valid())
	assert.False(t, Role("janitor").Valid())
}
