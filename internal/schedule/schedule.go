package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
)

const (
	// DefaultLookahead is the window in which a callback counts as upcoming
	DefaultLookahead = 30 * time.Minute

	maxNotesLength = 500
)

const (
	StatusOverdue   = "overdue"
	StatusUpcoming  = "upcoming"
	StatusScheduled = "scheduled"
)

var (
	ErrMissingLead  = errors.New("callback requires a lead")
	ErrMissingTime  = errors.New("callback time is required")
	ErrNotesTooLong = fmt.Errorf("callback notes exceed %d characters", maxNotesLength)
)

// Plan validates and normalizes a callback commitment. Both the in-call
// outcome path and the idle queue path build their schedule through here.
func Plan(lead types.Lead, at time.Time, notes string) (types.CallbackSchedule, error) {
	if lead.ID <= 0 {
		return types.CallbackSchedule{}, ErrMissingLead
	}
	if at.IsZero() {
		return types.CallbackSchedule{}, ErrMissingTime
	}
	notes = strings.TrimSpace(notes)
	if len([]rune(notes)) > maxNotesLength {
		return types.CallbackSchedule{}, ErrNotesTooLong
	}

	return types.CallbackSchedule{
		LeadID:   lead.ID,
		LeadName: lead.Name,
		At:       at.UTC().Truncate(time.Second),
		Notes:    notes,
	}, nil
}

// Request renders a schedule as the body of a standalone scheduling request
func Request(s types.CallbackSchedule) types.CallbackRequest {
	return types.CallbackRequest{
		CallbackTime:  s.At.Format(time.RFC3339),
		CallbackNotes: s.Notes,
		Status:        types.LeadStatusCallback,
	}
}

// Status classifies a scheduled time relative to now
func Status(now, at time.Time, lookahead time.Duration) string {
	if at.Before(now) {
		return StatusOverdue
	}
	if at.Sub(now) <= lookahead {
		return StatusUpcoming
	}
	return StatusScheduled
}

// IsOverdue reports whether at is in the past
func IsOverdue(now, at time.Time) bool {
	return Status(now, at, 0) == StatusOverdue
}

// IsUpcoming reports whether at falls inside the lookahead window
func IsUpcoming(now, at time.Time, lookahead time.Duration) bool {
	return Status(now, at, lookahead) == StatusUpcoming
}
