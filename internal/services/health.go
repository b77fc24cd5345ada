package services

import (
	"context"

	"gorm.io/gorm"

	"taxdesk/internal/database"
)

// HealthResult reports service liveness
type HealthResult struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Database string `json:"database"`
}

// HealthService implements the health check
type HealthService struct {
	db   *gorm.DB
	name string
}

// NewHealthService creates a new health service
func NewHealthService(db *gorm.DB, name string) *HealthService {
	return &HealthService{db: db, name: name}
}

// Check pings the database and reports degraded when it is unreachable
func (s *HealthService) Check(ctx context.Context) *HealthResult {
	result := &HealthResult{Status: "healthy", Service: s.name, Database: "ok"}
	if err := database.Ping(ctx, s.db); err != nil {
		result.Status = "degraded"
		result.Database = "unreachable"
		return result
	}
	_ = database.ReportStats(s.db)
	return result
}
