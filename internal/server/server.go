// Package server exposes the intake and staff services over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	goahttp "goa.design/goa/v3/http"
	httpmiddleware "goa.design/goa/v3/http/middleware"
	goa "goa.design/goa/v3/pkg"

	"taxdesk/internal/config"
	"taxdesk/internal/domain"
	"taxdesk/internal/metrics"
	"taxdesk/internal/services"
	"taxdesk/internal/util"
	apperrors "taxdesk/pkg/errors"
)

const maxBodyBytes = 64 << 10

// Server routes HTTP requests to the services
type Server struct {
	cfg     *config.Config
	queries *services.QueryService
	auth    *services.AuthService
	health  *services.HealthService
	log     *zap.Logger
	mux     goahttp.Muxer
}

// New creates the server and mounts every route
func New(cfg *config.Config, queries *services.QueryService, auth *services.AuthService, health *services.HealthService, log *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		queries: queries,
		auth:    auth,
		health:  health,
		log:     log.Named("http"),
		mux:     goahttp.NewMuxer(),
	}
	s.mount()
	return s
}

func (s *Server) mount() {
	s.mux.Handle(http.MethodGet, "/health", s.handleHealth)

	s.mux.Handle(http.MethodGet, "/api/v1/queries/methods", s.handleMethods)
	s.mux.Handle(http.MethodPost, "/api/v1/queries/validate", s.handleValidate)
	s.mux.Handle(http.MethodPost, "/api/v1/queries", s.handleSubmit)
	s.mux.Handle(http.MethodGet, "/api/v1/queries", s.staff(s.handleList))
	s.mux.Handle(http.MethodGet, "/api/v1/queries/{reference}", s.staff(s.handleGet))
	s.mux.Handle(http.MethodPatch, "/api/v1/queries/{reference}/status", s.staff(s.handleUpdateStatus))

	s.mux.Handle(http.MethodPost, "/api/v1/auth/login", s.handleLogin)
	s.mux.Handle(http.MethodGet, "/api/v1/auth/me", s.staff(s.handleMe))
}

// Handler returns the root handler with the middleware chain applied:
// security headers, CORS, request id, logging, metrics.
func (s *Server) Handler() http.Handler {
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			promhttp.Handler().ServeHTTP(w, r)
			return
		}
		s.mux.ServeHTTP(w, r)
	})

	var h http.Handler = metrics.PrometheusMiddleware(routeLabel, root)
	h = s.requestLogging(h)
	h = httpmiddleware.PopulateRequestContext()(h)
	h = httpmiddleware.RequestID(httpmiddleware.UseXRequestIDHeaderOption(true))(h)
	h = s.cors(h)
	return securityHeaders(h, s.cfg)
}

// ErrorBody is the JSON body of every error response
type ErrorBody struct {
	Name    string            `json:"name"`
	ID      string            `json:"id"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// encode writes v as the response body with the given status
func encode(ctx context.Context, w http.ResponseWriter, status int, v any) error {
	enc := goahttp.ResponseEncoder(ctx, w)
	w.WriteHeader(status)
	return enc.Encode(v)
}

// decode reads a JSON (or other goa-supported) request body of at most
// maxBodyBytes into v
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := goahttp.RequestDecoder(r).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperrors.Wrap(apperrors.ErrCodeTooLarge, "request body too large", err)
		case errors.Is(err, io.EOF):
			return apperrors.New(apperrors.ErrCodeBadRequest, "request body is required")
		}
		return apperrors.Wrap(apperrors.ErrCodeBadRequest, "invalid request body", err)
	}
	return nil
}

// withAccept carries the Accept header to the goa response encoder
func withAccept(r *http.Request) context.Context {
	return context.WithValue(r.Context(), goahttp.AcceptTypeKey, r.Header.Get("Accept"))
}

// writeError maps err to a status code and writes an ErrorBody
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, name := http.StatusInternalServerError, "internal"
	message := "internal server error"
	var fields map[string]string

	var verrs domain.ValidationErrors
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &verrs):
		status, name, message = http.StatusBadRequest, "validation_failed", "one or more fields are invalid"
		fields = verrs.Fields()
	case errors.As(err, &appErr):
		message = appErr.Message
		switch appErr.Code {
		case apperrors.ErrCodeBadRequest, apperrors.ErrCodeValidation:
			status, name = http.StatusBadRequest, "bad_request"
		case apperrors.ErrCodeUnauthorized:
			status, name = http.StatusUnauthorized, "unauthorized"
		case apperrors.ErrCodeForbidden:
			status, name = http.StatusForbidden, "forbidden"
		case apperrors.ErrCodeNotFound:
			status, name = http.StatusNotFound, "not_found"
		case apperrors.ErrCodeTooLarge:
			status, name = http.StatusRequestEntityTooLarge, "request_too_large"
		case apperrors.ErrCodeRateLimited:
			status, name = http.StatusTooManyRequests, "rate_limited"
		default:
			message = "internal server error"
		}
	}

	svcErr := goa.NewServiceError(err, name, false, false, status >= http.StatusInternalServerError)
	if svcErr.Fault {
		s.log.Error("request failed", zap.String("error_id", svcErr.ID), zap.Error(err))
	}

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(err)))
	}
	if err := encode(ctx, w, status, &ErrorBody{
		Name:    svcErr.Name,
		ID:      svcErr.ID,
		Message: message,
		Fields:  fields,
	}); err != nil {
		s.log.Warn("failed to encode error response", zap.Error(err))
	}
}

func retryAfterSeconds(err error) int {
	var rl *util.RateLimitError
	if !errors.As(err, &rl) {
		return 60
	}
	secs := int(rl.RetryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// clientIP returns the submitter's address used as the rate limit key.
// Behind a trusted proxy it is the rightmost X-Forwarded-For entry.
func (s *Server) clientIP(r *http.Request) string {
	if s.cfg.App.TrustProxy {
		// the proxy appends the address it saw; earlier entries are client supplied
		fwd := r.Header.Values("X-Forwarded-For")
		if len(fwd) > 0 {
			hops := strings.Split(fwd[len(fwd)-1], ",")
			if ip := strings.TrimSpace(hops[len(hops)-1]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// routeLabel collapses path parameters so metric labels stay bounded
func routeLabel(r *http.Request) string {
	path := r.URL.Path
	rest, ok := strings.CutPrefix(path, "/api/v1/queries/")
	if !ok || rest == "methods" || rest == "validate" {
		return path
	}
	if strings.HasSuffix(rest, "/status") {
		return "/api/v1/queries/{reference}/status"
	}
	return "/api/v1/queries/{reference}"
}
