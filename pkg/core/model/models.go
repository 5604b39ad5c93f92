package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/jakechorley/drop-in-shifts/pkg/core/recurrence"
)

// DefaultCapacity is the conventional number of slots rendered per shift instance
const DefaultCapacity = 6

type Role string

const (
	RoleRegular Role = "Regular Volunteer"
	RoleLead    Role = "Lead"
	RoleAdmin   Role = "Admin"
)

func (r Role) IsValid() bool {
	return r == RoleRegular || r == RoleLead || r == RoleAdmin
}

// ParseRole accepts the stored role names case-insensitively, plus "regular"
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "regular volunteer", "regular":
		return RoleRegular, nil
	case "lead":
		return RoleLead, nil
	case "admin":
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// CanApprove reports whether the role may approve or deny shift requests
func (r Role) CanApprove() bool {
	return r == RoleAdmin
}

// CanAssignAnySlot reports whether the role may fill or empty any slot on behalf of others
func (r Role) CanAssignAnySlot() bool {
	return r == RoleAdmin
}

// CanClaimLeadSlot reports whether the role may occupy slot 0
func (r Role) CanClaimLeadSlot() bool {
	return r == RoleLead || r == RoleAdmin
}

type NotificationPreference string

const (
	PreferenceEmailOnly    NotificationPreference = "email_only"
	PreferencePushAndEmail NotificationPreference = "push_and_email"
)

func (p NotificationPreference) IsValid() bool {
	return p == PreferenceEmailOnly || p == PreferencePushAndEmail
}

// Profile is a volunteer or admin identity record
type Profile struct {
	ID                     string
	FullName               string
	Email                  string
	Phone                  string
	Role                   Role
	NotificationPreference NotificationPreference
}

// ShiftTemplate is the reusable definition of a recurring shift
type ShiftTemplate struct {
	ID         int64
	Title      string
	StartTime  string // "15:04"
	EndTime    string // "15:04"
	Recurrence recurrence.Rule
	Capacity   int
	Active     bool
}

// SlotCount returns the template capacity, falling back to the conventional six slots
func (t ShiftTemplate) SlotCount() int {
	if t.Capacity <= 0 {
		return DefaultCapacity
	}
	return t.Capacity
}

// ShiftInstance is one dated occurrence of a template. A negative ID marks a
// virtual instance that has not been persisted.
type ShiftInstance struct {
	ID         int64
	TemplateID int64
	Date       time.Time
	StartsAt   time.Time
	EndsAt     time.Time
	Note       string
}

// IsVirtual reports whether the instance only exists as a projection
func (i ShiftInstance) IsVirtual() bool {
	return i.ID < 0
}

type AssignmentStatus string

const (
	StatusPending AssignmentStatus = "pending"
	StatusActive  AssignmentStatus = "active"
	StatusDropped AssignmentStatus = "dropped"
)

type AssignmentRole string

const (
	AssignmentLead    AssignmentRole = "lead"
	AssignmentRegular AssignmentRole = "regular"
)

// ShiftAssignment is a volunteer's relationship to one shift instance.
// There is at most one row per (ShiftInstanceID, VolunteerID).
type ShiftAssignment struct {
	ID                    int64
	ShiftInstanceID       int64
	VolunteerID           string
	Status                AssignmentStatus
	Role                  AssignmentRole
	CreatedAt             time.Time
	DroppedAt             *time.Time
	DroppedReason         string // empty when not dropped
	Notes                 string
	RecurringAssignmentID *int64 // set on rows generated by a recurring pattern
}

// IsOpen reports whether the assignment occupies a slot (pending or active)
func (a ShiftAssignment) IsOpen() bool {
	return a.Status == StatusPending || a.Status == StatusActive
}

// RecurringAssignment is a standing pattern that generates assignments
type RecurringAssignment struct {
	ID          int64
	VolunteerID string
	TemplateID  int64
	StartsOn    time.Time
	EndsOn      *time.Time
	ByDay       recurrence.WeekdaySet
	CreatedAt   time.Time
}

// PushSubscription is a web push endpoint registered by a user's device
type PushSubscription struct {
	ID        int64
	UserID    string
	Endpoint  string
	P256dh    string
	Auth      string
	CreatedAt time.Time
}

// PushMessage is the payload handed to the notification dispatcher
type PushMessage struct {
	UserID string
	Title  string
	Body   string
	URL    string
}

// PushResult reports what happened to a push request
type PushResult struct {
	Sent    int  `json:"sent"`
	Failed  int  `json:"failed"`
	Skipped bool `json:"skipped"`
}

// Add accumulates another result into r
func (r PushResult) Add(other PushResult) PushResult {
	return PushResult{
		Sent:    r.Sent + other.Sent,
		Failed:  r.Failed + other.Failed,
		Skipped: r.Skipped && other.Skipped,
	}
}

// UpcomingAssignment joins an active assignment with what a reminder needs to mention
type UpcomingAssignment struct {
	Assignment    ShiftAssignment
	Instance      ShiftInstance
	TemplateTitle string
	Volunteer     Profile
}
