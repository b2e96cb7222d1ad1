package devserver

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-workforce-client/internal/utils"
	"github.com/jrsteele09/go-workforce-client/users"
)

const maxImportBytes = 4 << 20

var exportHeader = []string{"id", "email", "firstName", "lastName", "jobTitle", "department", "managerId", "roles", "status"}

func userParams(r *http.Request) users.ListParams {
	q := r.URL.Query()
	return users.ListParams{
		Page:       queryInt(r, "page"),
		Limit:      queryInt(r, "limit"),
		Department: q.Get("department"),
		Search:     q.Get("search"),
	}
}

// tenantUser loads id if it belongs to the caller's tenant.
func (s *Server) tenantUser(r *http.Request, id string) (*users.User, bool) {
	u, err := s.users.GetByID(id)
	if err != nil || u.TenantID != claimsFrom(r.Context()).Tenant {
		return nil, false
	}
	return u, true
}

func (s *Server) ListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := userParams(r)
		list, total, err := s.users.List(claimsFrom(r.Context()).Tenant, params)
		if err != nil {
			writeError(w, err)
			return
		}
		writePage(w, list, params.Page, params.Limit, total)
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := s.users.GetByID(claimsFrom(r.Context()).Subject)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, http.StatusOK, u)
	}
}

func (s *Server) GetUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.tenantUser(r, r.PathValue("id"))
		if !ok {
			writeFail(w, http.StatusNotFound, "Resource not found", "NOT_FOUND")
			return
		}
		writeOK(w, http.StatusOK, u)
	}
}

// setPassword hashes in.Password onto u, or the default password for new
// users created without one.
func setPassword(u *users.User, password string) error {
	if password == "" {
		if u.PasswordHash != "" {
			return nil
		}
		password = DefaultPassword
	} else if err := users.ValidatePasswordStrength(password); err != nil {
		return err
	}
	hash, err := users.HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (s *Server) createUser(tenantID string, in users.Input) (*users.User, error) {
	u := &users.User{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Roles:     []users.RoleType{users.RoleEmployee},
		Status:    users.StatusActive,
		CreatedAt: NowTimeFunc().UTC(),
	}
	u.Apply(in)
	if err := setPassword(u, in.Password); err != nil {
		return nil, err
	}
	return u, s.users.Upsert(u)
}

func (s *Server) CreateUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in users.Input
		if !decodeJSON(w, r, &in) || s.validationFailed(w, in) {
			return
		}
		claims := claimsFrom(r.Context())
		if _, err := s.users.GetByEmail(strings.ToLower(in.Email)); err == nil {
			writeFail(w, http.StatusConflict, "Email already in use", "CONFLICT")
			return
		}
		u, err := s.createUser(claims.Tenant, in)
		if err != nil {
			writeFail(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		s.changed(claims, claims.Tenant, "users", "create")
		writeOK(w, http.StatusCreated, u)
	}
}

func (s *Server) UpdateUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.tenantUser(r, r.PathValue("id"))
		if !ok {
			writeFail(w, http.StatusNotFound, "Resource not found", "NOT_FOUND")
			return
		}
		var in users.Input
		if !decodeJSON(w, r, &in) || s.validationFailed(w, in) {
			return
		}
		if other, err := s.users.GetByEmail(strings.ToLower(in.Email)); err == nil && other.ID != u.ID {
			writeFail(w, http.StatusConflict, "Email already in use", "CONFLICT")
			return
		}
		u.Apply(in)
		if err := setPassword(u, in.Password); err != nil {
			writeFail(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		if err := s.users.Upsert(u); err != nil {
			writeError(w, err)
			return
		}
		claims := claimsFrom(r.Context())
		s.changed(claims, claims.Tenant, "users", "update")
		writeOK(w, http.StatusOK, u)
	}
}

func (s *Server) DeleteUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		u, ok := s.tenantUser(r, r.PathValue("id"))
		if !ok {
			writeFail(w, http.StatusNotFound, "Resource not found", "NOT_FOUND")
			return
		}
		if u.ID == claims.Subject {
			writeFail(w, http.StatusConflict, "You cannot delete your own account", "CONFLICT")
			return
		}
		if err := s.users.Delete(u.ID); err != nil {
			writeError(w, err)
			return
		}
		s.changed(claims, claims.Tenant, "users", "delete")
		writeOK(w, http.StatusOK, struct{}{})
	}
}

// ImportUsersHandler reads a CSV upload in the export format (id and status
// columns are ignored) and creates or updates a user per row.
func (s *Server) ImportUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
		file, _, err := r.FormFile("file")
		if err != nil {
			writeFail(w, http.StatusBadRequest, "A CSV file is required", "BAD_REQUEST")
			return
		}
		defer file.Close()

		claims := claimsFrom(r.Context())
		res, err := s.importUsers(claims.Tenant, file)
		if err != nil {
			writeFail(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		if res.Created+res.Updated > 0 {
			s.changed(claims, claims.Tenant, "users", "import")
		}
		writeOK(w, http.StatusOK, res)
	}
}

func (s *Server) importUsers(tenantID string, src io.Reader) (users.ImportResult, error) {
	var res users.ImportResult
	rd := csv.NewReader(src)
	rd.FieldsPerRecord = -1
	header, err := rd.Read()
	if err != nil {
		return res, fmt.Errorf("unreadable CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	if _, ok := col["email"]; !ok {
		return res, errors.New("CSV has no email column")
	}
	field := func(rec []string, name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	for line := 2; ; line++ {
		rec, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		in := users.Input{
			Email:      field(rec, "email"),
			FirstName:  field(rec, "firstName"),
			LastName:   field(rec, "lastName"),
			JobTitle:   field(rec, "jobTitle"),
			Department: field(rec, "department"),
			ManagerID:  field(rec, "managerId"),
		}
		if roles := field(rec, "roles"); roles != "" {
			in.Roles = utils.Of[users.RoleType](strings.Split(roles, ";"))
		}
		if err := s.validate.Struct(in); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		existing, err := s.users.GetByEmail(strings.ToLower(in.Email))
		switch {
		case err == nil && existing.TenantID != tenantID:
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: email %s belongs to another tenant", line, in.Email))
		case err == nil:
			existing.Apply(in)
			if err := s.users.Upsert(existing); err != nil {
				return res, err
			}
			res.Updated++
		default:
			if _, err := s.createUser(tenantID, in); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", line, err))
				continue
			}
			res.Created++
		}
	}
	return res, nil
}

func (s *Server) ExportUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := claimsFrom(r.Context()).Tenant
		list, _, err := s.users.List(tenantID, users.ListParams{})
		if err != nil {
			writeError(w, err)
			return
		}

		var buf bytes.Buffer
		cw := csv.NewWriter(&buf)
		_ = cw.Write(exportHeader)
		for _, u := range list {
			_ = cw.Write([]string{
				u.ID, u.Email, u.FirstName, u.LastName, u.JobTitle, u.Department, u.ManagerID,
				strings.Join(utils.Strings(u.Roles), ";"), string(u.Status),
			})
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="users-%s.csv"`, tenantID))
		_, _ = w.Write(buf.Bytes())
	}
}
