package reconciler

import (
	"sort"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
)

const (
	LeadSlotLabel = "Needs Lead Coverage"
	OpenSlotLabel = "Open"
)

// Slot is one rendered capacity position of an instance
type Slot struct {
	Index      int
	Label      string
	Assignment *model.ShiftAssignment
	Volunteer  *model.Profile
}

// Empty reports whether nobody occupies the slot
func (s Slot) Empty() bool {
	return s.Assignment == nil
}

// Board is the slot layout of one shift instance
type Board struct {
	Instance model.ShiftInstance
	Slots    []Slot
	// Overflow holds open assignments that did not fit into any slot
	Overflow []model.ShiftAssignment
}

// BuildBoard lays out the open assignments of an instance over capacity slots.
// Slot 0 takes the lead candidate; every other assignment fills slots 1..n-1 in rank order.
func BuildBoard(instance model.ShiftInstance, capacity int, assignments []model.ShiftAssignment, profiles map[string]model.Profile) Board {
	if capacity <= 0 {
		capacity = model.DefaultCapacity
	}

	board := Board{
		Instance: instance,
		Slots:    make([]Slot, capacity),
	}
	for i := range board.Slots {
		board.Slots[i] = Slot{Index: i, Label: OpenSlotLabel}
	}
	board.Slots[0].Label = LeadSlotLabel

	lead, rest := rankAssignments(assignments, profiles)
	if lead != nil {
		board.fill(0, *lead, profiles)
	}

	next := 1
	for _, a := range rest {
		if next >= capacity {
			board.Overflow = append(board.Overflow, a)
			continue
		}
		board.fill(next, a, profiles)
		next++
	}

	return board
}

func (b *Board) fill(index int, a model.ShiftAssignment, profiles map[string]model.Profile) {
	assignment := a
	slot := &b.Slots[index]
	slot.Assignment = &assignment
	if p, ok := profiles[a.VolunteerID]; ok {
		profile := p
		slot.Volunteer = &profile
		slot.Label = p.FullName
	} else {
		slot.Label = a.VolunteerID
	}
}

// Ordered returns the ranked assignments as they appear on the board, overflow last
func (b Board) Ordered() []model.ShiftAssignment {
	var ordered []model.ShiftAssignment
	for _, s := range b.Slots {
		if s.Assignment != nil {
			ordered = append(ordered, *s.Assignment)
		}
	}
	return append(ordered, b.Overflow...)
}

// SlotOf returns the slot index held by the volunteer, or -1
func (b Board) SlotOf(volunteerID string) int {
	for _, s := range b.Slots {
		if s.Assignment != nil && s.Assignment.VolunteerID == volunteerID {
			return s.Index
		}
	}
	return -1
}

// HasRoomFor reports whether the profile could take any empty slot
func (b Board) HasRoomFor(p model.Profile) bool {
	for _, s := range b.Slots {
		if !s.Empty() {
			continue
		}
		if s.Index == 0 && !p.Role.CanClaimLeadSlot() {
			continue
		}
		return true
	}
	return false
}

// CanModify reports whether actor may act on the given slot. An empty slot 0 is
// claimable only by leads and admins, other empty slots by anyone. A filled slot
// may only be changed by its occupant or an admin.
func (b Board) CanModify(actor model.Profile, index int) bool {
	if index < 0 || index >= len(b.Slots) {
		return false
	}
	s := b.Slots[index]
	if s.Empty() {
		if index == 0 {
			return actor.Role.CanClaimLeadSlot()
		}
		return true
	}
	return s.Assignment.VolunteerID == actor.ID || actor.Role.CanAssignAnySlot()
}

// RankAssignments returns assignments in display order regardless of input order
func RankAssignments(assignments []model.ShiftAssignment, profiles map[string]model.Profile) []model.ShiftAssignment {
	lead, rest := rankAssignments(assignments, profiles)
	if lead == nil {
		return rest
	}
	return append([]model.ShiftAssignment{*lead}, rest...)
}

func rankAssignments(assignments []model.ShiftAssignment, profiles map[string]model.Profile) (*model.ShiftAssignment, []model.ShiftAssignment) {
	open := make([]model.ShiftAssignment, 0, len(assignments))
	for _, a := range assignments {
		if a.IsOpen() {
			open = append(open, a)
		}
	}

	sort.SliceStable(open, func(i, j int) bool {
		return lessAssignment(open[i], open[j], profiles)
	})

	// Slot 0 goes to the earliest lead-capable assignment, preferring active over pending
	leadIdx := -1
	for i, a := range open {
		if !isLeadCandidate(a, profiles) {
			continue
		}
		if leadIdx == -1 {
			leadIdx = i
			continue
		}
		cur := open[leadIdx]
		if cur.Status != model.StatusActive && a.Status == model.StatusActive {
			leadIdx = i
			continue
		}
		if cur.Status == a.Status && a.CreatedAt.Before(cur.CreatedAt) {
			leadIdx = i
		}
	}

	if leadIdx == -1 {
		return nil, open
	}

	lead := open[leadIdx]
	rest := make([]model.ShiftAssignment, 0, len(open)-1)
	rest = append(rest, open[:leadIdx]...)
	rest = append(rest, open[leadIdx+1:]...)
	return &lead, rest
}

func isLeadCandidate(a model.ShiftAssignment, profiles map[string]model.Profile) bool {
	if a.Role == model.AssignmentLead {
		return true
	}
	return profileRole(a.VolunteerID, profiles) == model.RoleAdmin
}

func lessAssignment(a, b model.ShiftAssignment, profiles map[string]model.Profile) bool {
	if sa, sb := statusRank(a.Status), statusRank(b.Status); sa != sb {
		return sa < sb
	}
	if ra, rb := roleRank(a, profiles), roleRank(b, profiles); ra != rb {
		return ra < rb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func statusRank(s model.AssignmentStatus) int {
	if s == model.StatusActive {
		return 0
	}
	return 1
}

func roleRank(a model.ShiftAssignment, profiles map[string]model.Profile) int {
	switch profileRole(a.VolunteerID, profiles) {
	case model.RoleAdmin:
		return 0
	case model.RoleLead:
		return 1
	}
	if a.Role == model.AssignmentLead {
		return 1
	}
	return 2
}

func profileRole(volunteerID string, profiles map[string]model.Profile) model.Role {
	if p, ok := profiles[volunteerID]; ok {
		return p.Role
	}
	return model.RoleRegular
}
