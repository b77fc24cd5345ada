package server

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"taxdesk/internal/domain"
	"taxdesk/internal/services"
	apperrors "taxdesk/pkg/errors"
)

// QueryRecordResult is the staff view of a stored query
type QueryRecordResult struct {
	Reference    string  `json:"reference"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	QueryMethod  string  `json:"query_method"`
	EmailAddress *string `json:"email_address,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Query        *string `json:"query,omitempty"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    *string `json:"updated_at,omitempty"`
}

// UserResult is the staff account as returned by /auth/me
type UserResult struct {
	ID        uint    `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	FullName  *string `json:"full_name,omitempty"`
	IsAdmin   bool    `json:"is_admin"`
	IsStaff   bool    `json:"is_staff"`
	LastLogin *string `json:"last_login,omitempty"`
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type statusPayload struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := withAccept(r)
	result := s.health.Check(ctx)
	status := http.StatusOK
	if result.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	_ = encode(ctx, w, status, result)
}

func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	ctx := withAccept(r)
	_ = encode(ctx, w, http.StatusOK, s.queries.Methods())
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := withAccept(r)
	var in domain.QueryIntake
	if err := decode(w, r, &in); err != nil {
		s.writeError(ctx, w, err)
		return
	}
	_ = encode(ctx, w, http.StatusOK, s.queries.Validate(ctx, in))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := withAccept(r)
	var in domain.QueryIntake
	if err := decode(w, r, &in); err != nil {
		s.writeError(ctx, w, err)
		return
	}

	res, err := s.queries.Submit(ctx, in, s.clientIP(r))
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	_ = encode(ctx, w, http.StatusCreated, res)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, user *domain.User) {
	ctx := withAccept(r)
	q := r.URL.Query()

	skip, err := intParam(q.Get("skip"), 0)
	if err != nil {
		s.writeError(ctx, w, apperrors.New(apperrors.ErrCodeBadRequest, "skip must be an integer"))
		return
	}
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		s.writeError(ctx, w, apperrors.New(apperrors.ErrCodeBadRequest, "limit must be an integer"))
		return
	}

	records, err := s.queries.List(ctx, services.ListParams{
		Skip:   skip,
		Limit:  limit,
		Method: q.Get("method"),
		Status: q.Get("status"),
	})
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	results := make([]*QueryRecordResult, len(records))
	for i := range records {
		results[i] = toRecordResult(&records[i])
	}
	s.log.Debug("queries listed", zap.String("user", user.Username), zap.Int("count", len(results)))
	_ = encode(ctx, w, http.StatusOK, results)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, user *domain.User) {
	ctx := withAccept(r)
	rec, err := s.queries.Get(ctx, s.mux.Vars(r)["reference"])
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	_ = encode(ctx, w, http.StatusOK, toRecordResult(rec))
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request, user *domain.User) {
	ctx := withAccept(r)
	var p statusPayload
	if err := decode(w, r, &p); err != nil {
		s.writeError(ctx, w, err)
		return
	}

	rec, err := s.queries.UpdateStatus(ctx, s.mux.Vars(r)["reference"], p.Status)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	s.log.Info("status changed by staff", zap.String("user", user.Username), zap.String("reference", rec.Reference))
	_ = encode(ctx, w, http.StatusOK, toRecordResult(rec))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := withAccept(r)
	var p loginPayload
	if err := decode(w, r, &p); err != nil {
		s.writeError(ctx, w, err)
		return
	}
	if p.Username == "" || p.Password == "" {
		s.writeError(ctx, w, apperrors.New(apperrors.ErrCodeBadRequest, "username and password are required"))
		return
	}

	res, err := s.auth.Login(ctx, p.Username, p.Password)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	_ = encode(ctx, w, http.StatusOK, res)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user *domain.User) {
	ctx := withAccept(r)
	res := &UserResult{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
		IsAdmin:  user.IsAdmin,
		IsStaff:  user.IsStaff,
	}
	if user.LastLogin != nil {
		ts := user.LastLogin.UTC().Format(time.RFC3339)
		res.LastLogin = &ts
	}
	_ = encode(ctx, w, http.StatusOK, res)
}

func toRecordResult(rec *domain.QueryRecord) *QueryRecordResult {
	res := &QueryRecordResult{
		Reference:    rec.Reference,
		FirstName:    rec.FirstName,
		LastName:     rec.LastName,
		QueryMethod:  rec.Method,
		EmailAddress: rec.EmailAddress,
		Phone:        rec.Phone,
		Query:        rec.Query,
		Status:       rec.Status,
		CreatedAt:    rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rec.UpdatedAt != nil {
		ts := rec.UpdatedAt.UTC().Format(time.RFC3339)
		res.UpdatedAt = &ts
	}
	return res
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
