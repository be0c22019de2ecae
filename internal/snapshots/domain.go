package snapshots

import (
	"errors"
	"strings"
	"time"

	"github.com/odyssey-erp/explotacion/internal/profitability"
)

// Status enumerates async job lifecycle values.
type Status string

const (
	// StatusPending indicates waiting to be processed.
	StatusPending Status = "PENDING"
	// StatusInProgress indicates job executing.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusReady indicates payload ready for consumption.
	StatusReady Status = "READY"
	// StatusFailed indicates error occurred.
	StatusFailed Status = "FAILED"
)

// Snapshot stores the profitability report of one closed month.
type Snapshot struct {
	ID          string                `json:"id"`
	Month       string                `json:"month"`
	GroupBy     string                `json:"group_by,omitempty"`
	Status      Status                `json:"status"`
	Payload     *profitability.Result `json:"payload,omitempty"`
	Error       string                `json:"error,omitempty"`
	GeneratedAt *time.Time            `json:"generated_at,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// Request configures a trigger for a month snapshot.
type Request struct {
	Month   string `json:"month" validate:"required,len=7"`
	GroupBy string `json:"group_by" validate:"omitempty,oneof=space salesperson client vertical maitre month"`
}

// Validate ensures request is valid.
func (r Request) Validate() error {
	if _, err := profitability.ParseMonth(strings.TrimSpace(r.Month), time.UTC); err != nil {
		return ErrInvalidMonth
	}
	if _, err := profitability.GroupKeyByName(r.GroupBy); err != nil {
		return err
	}
	return nil
}

// ListFilters pages the snapshot listing.
type ListFilters struct {
	Page  int
	Limit int
}

var (
	// ErrSnapshotNotFound occurs when snapshot missing.
	ErrSnapshotNotFound = errors.New("snapshots: snapshot not found")
	// ErrInvalidMonth rejects a month outside YYYY-MM.
	ErrInvalidMonth = errors.New("snapshots: month must be YYYY-MM")
)
