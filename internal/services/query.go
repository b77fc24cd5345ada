package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"taxdesk/internal/domain"
	"taxdesk/internal/metrics"
	"taxdesk/internal/util"
	apperrors "taxdesk/pkg/errors"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
	notifyTimeout    = 30 * time.Second

	submitSuccessMessage = "Query submitted successfully!"
)

// ValidationResult is the outcome of a dry-run validation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors"`
}

// SubmitResult is returned for an accepted query
type SubmitResult struct {
	Reference   string `json:"reference"`
	QueryMethod string `json:"query_method"`
	Message     string `json:"message"`
}

// ListParams filters the staff query listing
type ListParams struct {
	Skip   int
	Limit  int
	Method string
	Status string
}

// QueryService accepts query submissions and serves them to staff
type QueryService struct {
	db       *gorm.DB
	notifier Notifier
	limiter  *util.RateLimiter
	log      *zap.Logger

	pending sync.WaitGroup
}

// NewQueryService creates a new query service
func NewQueryService(db *gorm.DB, notifier Notifier, limiter *util.RateLimiter, log *zap.Logger) *QueryService {
	return &QueryService{
		db:       db,
		notifier: notifier,
		limiter:  limiter,
		log:      log.Named("query"),
	}
}

// Methods lists the selectable query methods
func (s *QueryService) Methods() []domain.MethodOption {
	return domain.QueryMethods()
}

// Validate runs the form rules without storing anything
func (s *QueryService) Validate(ctx context.Context, in domain.QueryIntake) ValidationResult {
	errs := in.Validate()
	return ValidationResult{Valid: len(errs) == 0, Errors: errs.Fields()}
}

// Submit validates and stores a query, then notifies staff in the background.
// clientKey identifies the submitter for rate limiting; rejected records are
// not counted.
func (s *QueryService) Submit(ctx context.Context, in domain.QueryIntake, clientKey string) (*SubmitResult, error) {
	req, err := in.Resolve()
	if err != nil {
		var verrs domain.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				metrics.RecordValidationFailure(fe.Field)
			}
		}
		s.log.Info("submission rejected", zap.Error(err))
		return nil, err
	}

	// only accepted records count against the client's allowance
	if s.limiter != nil {
		if err := s.limiter.Allow(clientKey); err != nil {
			metrics.RecordRateLimited()
			s.log.Warn("submission rate limited", zap.String("client", clientKey))
			return nil, apperrors.Wrap(apperrors.ErrCodeRateLimited, "too many submissions, please try again shortly", err)
		}
	}

	rec := domain.NewQueryRecord(req)
	rec.ClientIP = clientKey

	start := time.Now()
	err = s.db.WithContext(ctx).Create(rec).Error
	metrics.RecordDBQuery("query_create", time.Since(start), err)
	if err != nil {
		s.log.Error("failed to save query", zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to save query", err)
	}

	metrics.RecordQuerySubmission(rec.Method)
	s.log.Info("query submitted",
		zap.String("reference", rec.Reference),
		zap.String("method", rec.Method),
		zap.String("name", rec.FullName()))

	s.dispatch(ctx, rec)

	return &SubmitResult{
		Reference:   rec.Reference,
		QueryMethod: rec.Method,
		Message:     submitSuccessMessage,
	}, nil
}

// dispatch notifies outside the request; failures never reach the submitter
func (s *QueryService) dispatch(ctx context.Context, rec *domain.QueryRecord) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	snapshot := *rec

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		if err := s.notifier.Notify(ctx, &snapshot); err != nil {
			s.log.Warn("failed to send notification", zap.String("reference", snapshot.Reference), zap.Error(err))
			return
		}
		s.log.Debug("notification sent", zap.String("reference", snapshot.Reference))
	}()
}

// Wait blocks until in-flight notifications finish
func (s *QueryService) Wait() {
	s.pending.Wait()
}

// List returns stored queries, newest first
func (s *QueryService) List(ctx context.Context, p ListParams) ([]domain.QueryRecord, error) {
	if p.Skip < 0 {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, "skip must not be negative")
	}
	switch {
	case p.Limit == 0:
		p.Limit = defaultListLimit
	case p.Limit < 0 || p.Limit > maxListLimit:
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
	}

	query := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if p.Method != "" {
		method, ok := domain.ParseQueryMethod(p.Method)
		if !ok {
			return nil, apperrors.New(apperrors.ErrCodeBadRequest, domain.MsgQueryMethodInvalid)
		}
		query = query.Where("method = ?", string(method))
	}
	if p.Status != "" {
		if !domain.ValidStatus(p.Status) {
			return nil, apperrors.New(apperrors.ErrCodeBadRequest, "invalid status")
		}
		query = query.Where("status = ?", p.Status)
	}

	var records []domain.QueryRecord
	start := time.Now()
	err := query.Offset(p.Skip).Limit(p.Limit).Find(&records).Error
	metrics.RecordDBQuery("query_list", time.Since(start), err)
	if err != nil {
		s.log.Error("failed to list queries", zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to fetch queries", err)
	}

	s.log.Debug("queries listed", zap.Int("count", len(records)), zap.Int("skip", p.Skip))
	return records, nil
}

// Get returns one query by its public reference
func (s *QueryService) Get(ctx context.Context, reference string) (*domain.QueryRecord, error) {
	var rec domain.QueryRecord
	start := time.Now()
	err := s.db.WithContext(ctx).Where("reference = ?", reference).First(&rec).Error
	metrics.RecordDBQuery("query_get", time.Since(start), err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrCodeNotFound, "query not found")
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to fetch query", err)
	}
	return &rec, nil
}

// UpdateStatus moves a query through the staff workflow
func (s *QueryService) UpdateStatus(ctx context.Context, reference, status string) (*domain.QueryRecord, error) {
	if !domain.ValidStatus(status) {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, "status must be one of new, read, replied, closed")
	}

	rec, err := s.Get(ctx, reference)
	if err != nil {
		return nil, err
	}

	previous := rec.Status
	rec.Status = status
	start := time.Now()
	err = s.db.WithContext(ctx).Save(rec).Error
	metrics.RecordDBQuery("query_update", time.Since(start), err)
	if err != nil {
		s.log.Error("failed to update query status", zap.String("reference", reference), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to update query", err)
	}

	s.log.Info("query status updated",
		zap.String("reference", reference),
		zap.String("from", previous),
		zap.String("to", status))
	return rec, nil
}
