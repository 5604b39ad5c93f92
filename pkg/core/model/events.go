package model

import "time"

type ChangeKind string

const (
	ChangeAssignment ChangeKind = "assignment"
	ChangeInstance   ChangeKind = "instance"
	ChangePattern    ChangeKind = "pattern"
)

// ChangeEvent tells subscribers which rows to refetch. It carries identifiers,
// not state; clients re-query the store after receiving one.
type ChangeEvent struct {
	Kind         ChangeKind `json:"kind"`
	InstanceID   int64      `json:"instanceId,omitempty"`
	AssignmentID int64      `json:"assignmentId,omitempty"`
	PatternID    int64      `json:"patternId,omitempty"`
	VolunteerID  string     `json:"volunteerId,omitempty"`
	Action       string     `json:"action"`
	At           time.Time  `json:"at"`
}
