package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Strob0t/democrm/internal/domain/tenant"
	"github.com/Strob0t/democrm/internal/domain/user"
	"github.com/Strob0t/democrm/internal/service"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Companies *service.CompanyService
	Users     *service.UserService
	DB        Pinger
	Version   string
}

// ---------------------------------------------------------------------------
// Companies
// ---------------------------------------------------------------------------

// ListCompanies handles GET /api/v1/companies
func (h *Handlers) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.Companies.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Companies retrieved successfully.", companies)
}

// GetCompany handles GET /api/v1/companies/{id}
func (h *Handlers) GetCompany(w http.ResponseWriter, r *http.Request) {
	c, err := h.Companies.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "no company with this id exists")
		return
	}
	writeSuccess(w, http.StatusOK, "Company retrieved successfully.", c)
}

// CurrentCompany handles GET /api/v1/companies/current
func (h *Handlers) CurrentCompany(w http.ResponseWriter, r *http.Request) {
	c, err := h.Companies.Current(r.Context())
	if err != nil {
		writeDomainError(w, err, "company not found")
		return
	}
	writeSuccess(w, http.StatusOK, "Company retrieved successfully.", c)
}

// ProvisionCompany handles POST /api/v1/companies
func (h *Handlers) ProvisionCompany(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tenant.ProvisionRequest](w, r)
	if !ok {
		return
	}
	c, err := h.Companies.Provision(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "company not found")
		return
	}
	writeSuccess(w, http.StatusCreated, "Company has been created successfully.", c)
}

// UpdateCompany handles PATCH /api/v1/companies/{id}
func (h *Handlers) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tenant.UpdateRequest](w, r)
	if !ok {
		return
	}
	c, err := h.Companies.Update(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "no company with this id exists")
		return
	}
	writeSuccess(w, http.StatusOK, "Company has been updated successfully.", c)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// ListUsers handles GET /api/v1/users
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	if users == nil {
		users = []user.User{}
	}
	writeSuccess(w, http.StatusOK, "Users retrieved successfully.", users)
}

// GetUser handles GET /api/v1/users/{id}
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeSuccess(w, http.StatusOK, "User retrieved successfully.", u)
}

// CreateUser handles POST /api/v1/users
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.CreateRequest](w, r)
	if !ok {
		return
	}
	u, err := h.Users.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeSuccess(w, http.StatusCreated, "User has been created successfully.", u)
}

// ScheduleUserDeletion handles POST /api/v1/users/{id}/schedule-deletion
func (h *Handlers) ScheduleUserDeletion(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.ScheduleDeletionRequest](w, r)
	if !ok {
		return
	}
	u, err := h.Users.ScheduleDeletion(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	msg := "User deletion has been scheduled."
	if u.DeletionDate == nil {
		msg = "User deletion has been cancelled."
	}
	writeSuccess(w, http.StatusOK, msg, u)
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Postgres  string `json:"postgres"`
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Version:   h.Version,
		Postgres:  "ok",
	}
	status := http.StatusOK

	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Postgres = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}
