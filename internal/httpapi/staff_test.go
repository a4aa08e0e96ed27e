package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conference/internal/auth"
)

func (e *testEnv) volunteers(t *testing.T) []auth.Account {
	t.Helper()
	w := e.do(t, http.MethodGet, "/v1/admin/volunteers", e.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Volunteers []auth.Account `json:"volunteers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Volunteers
}

func TestVolunteerLifecycle(t *testing.T) {
	e := newEnv(t)

	vols := e.volunteers(t)
	require.Len(t, vols, 1)
	assert.Equal(t, "desk@example.com", vols[0].Email)

	w := e.do(t, http.MethodPost, "/v1/admin/volunteers", e.admin, map[string]string{
		"email": "gate@example.com", "password": "gatepass1", "full_name": " Gate Keeper ", "contact": "0800",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Volunteer auth.Account `json:"volunteer"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, auth.RoleVolunteer, created.Volunteer.Role)
	assert.Equal(t, "Gate Keeper", created.Volunteer.FullName)
	assert.NotContains(t, w.Body.String(), "password")
	assert.Len(t, e.volunteers(t), 2)

	w = e.do(t, http.MethodPost, "/v1/admin/login", "", map[string]string{"email": "gate@example.com", "password": "gatepass1"})
	require.Equal(t, http.StatusOK, w.Code)

	path := "/v1/admin/volunteers/" + created.Volunteer.ID.String()
	w = e.do(t, http.MethodPut, path, e.admin, map[string]string{"contact": "0900", "password": "newgate12"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated struct {
		Volunteer auth.Account `json:"volunteer"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "0900", updated.Volunteer.Contact)
	assert.Equal(t, "Gate Keeper", updated.Volunteer.FullName)
	assert.Equal(t, "gate@example.com", updated.Volunteer.Email)

	w = e.do(t, http.MethodPost, "/v1/admin/login", "", map[string]string{"email": "gate@example.com", "password": "gatepass1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = e.do(t, http.MethodPost, "/v1/admin/login", "", map[string]string{"email": "gate@example.com", "password": "newgate12"})
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, path, e.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, path, e.admin, nil).Code)
	assert.Len(t, e.volunteers(t), 1)

	w = e.do(t, http.MethodPost, "/v1/admin/login", "", map[string]string{"email": "gate@example.com", "password": "newgate12"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVolunteerValidation(t *testing.T) {
	e := newEnv(t)
	desk := e.volunteers(t)[0]

	w := e.do(t, http.MethodPost, "/v1/admin/login", "", map[string]string{"email": "admin@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	var login loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	adminPath := "/v1/admin/volunteers/" + login.Account.ID.String()
	deskPath := "/v1/admin/volunteers/" + desk.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
		msg    string
	}{
		{"create duplicate", http.MethodPost, "/v1/admin/volunteers", map[string]string{"email": "DESK@example.com", "password": "password123"}, http.StatusBadRequest, "an account already exists with this email address"},
		{"create short password", http.MethodPost, "/v1/admin/volunteers", map[string]string{"email": "new@example.com", "password": "short"}, http.StatusBadRequest, ""},
		{"create bad email", http.MethodPost, "/v1/admin/volunteers", map[string]string{"email": "nope", "password": "password123"}, http.StatusBadRequest, "validation failed"},
		{"update empty", http.MethodPut, deskPath, map[string]string{}, http.StatusBadRequest, "no fields to update"},
		{"update taken email", http.MethodPut, deskPath, map[string]string{"email": "admin@example.com"}, http.StatusBadRequest, "an account already exists with this email address"},
		{"update short password", http.MethodPut, deskPath, map[string]string{"password": "short"}, http.StatusBadRequest, ""},
		{"update admin account", http.MethodPut, adminPath, map[string]string{"contact": "1"}, http.StatusNotFound, "volunteer not found"},
		{"delete admin account", http.MethodDelete, adminPath, nil, http.StatusNotFound, "volunteer not found"},
		{"update unknown", http.MethodPut, "/v1/admin/volunteers/" + uuid.NewString(), map[string]string{"contact": "1"}, http.StatusNotFound, "volunteer not found"},
		{"bad id", http.MethodDelete, "/v1/admin/volunteers/7", nil, http.StatusBadRequest, "id must be a uuid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, tt.method, tt.path, e.admin, tt.body)
			require.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.msg != "" {
				assert.Equal(t, tt.msg, decode(t, w)["error"])
			}
		})
	}

	w = e.do(t, http.MethodPost, "/v1/admin/login", "", map[string]string{"email": "admin@example.com", "password": "password123"})
	assert.Equal(t, http.StatusOK, w.Code, "admin account must survive volunteer routes")
}

func TestVolunteerRoutesAdminOnly(t *testing.T) {
	e := newEnv(t)
	desk := e.volunteers(t)[0]
	path := "/v1/admin/volunteers/" + desk.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"list", http.MethodGet, "/v1/admin/volunteers", nil},
		{"create", http.MethodPost, "/v1/admin/volunteers", map[string]string{"email": "x@example.com", "password": "password123"}},
		{"update", http.MethodPut, path, map[string]string{"contact": "1"}},
		{"delete", http.MethodDelete, path, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusForbidden, e.do(t, tt.method, tt.path, e.volunteer, tt.body).Code)
			assert.Equal(t, http.StatusUnauthorized, e.do(t, tt.method, tt.path, "", tt.body).Code)
		})
	}
	assert.Len(t, e.volunteers(t), 1)
}
