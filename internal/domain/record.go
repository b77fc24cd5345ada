package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Query record statuses
const (
	StatusNew     = "new"
	StatusRead    = "read"
	StatusReplied = "replied"
	StatusClosed  = "closed"
)

// ValidStatus reports whether s is a status staff may set
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusRead, StatusReplied, StatusClosed:
		return true
	}
	return false
}

// QueryRecord is a submitted query as stored for staff follow-up
type QueryRecord struct {
	ID           uint       `gorm:"primaryKey" json:"-"`
	Reference    string     `gorm:"uniqueIndex;size:36;not null" json:"reference"`
	FirstName    string     `gorm:"not null" json:"first_name"`
	LastName     string     `gorm:"not null" json:"last_name"`
	Method       string     `gorm:"index;not null" json:"query_method"`
	EmailAddress *string    `json:"email_address,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	Query        *string    `gorm:"type:text" json:"query,omitempty"`
	Status       string     `gorm:"default:'new'" json:"status"`
	ClientIP     string     `gorm:"size:64" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// TableName specifies the table name for QueryRecord
func (QueryRecord) TableName() string {
	return "query_intakes"
}

// BeforeCreate hook
func (r *QueryRecord) BeforeCreate(tx *gorm.DB) error {
	if r.Reference == "" {
		r.Reference = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = StatusNew
	}
	return nil
}

// BeforeUpdate hook
func (r *QueryRecord) BeforeUpdate(tx *gorm.DB) error {
	now := time.Now().UTC()
	r.UpdatedAt = &now
	return nil
}

// NewQueryRecord maps a resolved request onto a storable record. Only the
// fields the request's method carries are set.
func NewQueryRecord(req Request) *QueryRecord {
	person := req.Person()
	rec := &QueryRecord{
		FirstName: person.FirstName,
		LastName:  person.LastName,
		Method:    string(req.Method()),
		Status:    StatusNew,
	}

	switch r := req.(type) {
	case EmailRequest:
		rec.EmailAddress = &r.EmailAddress
		rec.Query = &r.Query
	case PhoneRequest:
		rec.Phone = &r.Phone
		rec.Query = &r.Query
	case MeetingRequest:
	}
	return rec
}

// FullName joins first and last name
func (r *QueryRecord) FullName() string {
	return r.FirstName + " " + r.LastName
}
