package model

import "errors"

// Validation errors are returned before any write is attempted
var (
	ErrReasonRequired     = errors.New("a reason is required")
	ErrTemplateRequired   = errors.New("a shift template must be selected")
	ErrVolunteerRequired  = errors.New("a volunteer must be selected")
	ErrWeekdaysRequired   = errors.New("at least one weekday must be selected")
	ErrStartDateRequired  = errors.New("a start date is required")
	ErrInvalidDateRange   = errors.New("end date must not be before start date")
	ErrInvalidSlot        = errors.New("slot is out of range")
	ErrVirtualInstance    = errors.New("shift instance has not been created yet")
	ErrNotScheduled       = errors.New("template does not occur on that date")
	ErrInvalidPreference  = errors.New("unknown notification preference")
	ErrInvalidTimeOfDay   = errors.New("time of day must be HH:MM")
	ErrSubscriptionFields = errors.New("endpoint and keys are required")
)

// Precondition errors describe a transition the current state does not allow
var (
	ErrNotFound          = errors.New("not found")
	ErrNotPermitted      = errors.New("not permitted")
	ErrInvalidTransition = errors.New("assignment is not in a state that allows this action")
	ErrSlotTaken         = errors.New("slot is already filled")
	ErrShiftFull         = errors.New("shift has no open slots")
)
