package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
)

// RemovedByAdminReason is recorded when an admin drops an assignment
const RemovedByAdminReason = "Removed by admin"

// AssignmentUpsert is the row written by an upsert keyed on (instance, volunteer)
type AssignmentUpsert struct {
	ShiftInstanceID int64
	VolunteerID     string
	Status          model.AssignmentStatus
	Role            model.AssignmentRole
}

// AssignmentStore defines the database operations the state machine needs
type AssignmentStore interface {
	GetInstance(ctx context.Context, id int64) (*model.ShiftInstance, error)
	GetTemplate(ctx context.Context, id int64) (*model.ShiftTemplate, error)
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	GetProfilesByIDs(ctx context.Context, ids []string) (map[string]model.Profile, error)
	GetAssignment(ctx context.Context, id int64) (*model.ShiftAssignment, error)
	// FindAssignment returns nil without error when the pair has no row
	FindAssignment(ctx context.Context, instanceID int64, volunteerID string) (*model.ShiftAssignment, error)
	ListOpenAssignments(ctx context.Context, instanceID int64) ([]model.ShiftAssignment, error)
	// UpsertAssignment writes on conflict (shift_instance_id, volunteer_id) and clears drop metadata
	UpsertAssignment(ctx context.Context, row AssignmentUpsert) (*model.ShiftAssignment, error)
	// SetAssignmentStatus updates status by id; a dropped status stamps dropped_at with the given reason
	SetAssignmentStatus(ctx context.Context, id int64, status model.AssignmentStatus, reason string) (*model.ShiftAssignment, error)
	SetAssignmentNotes(ctx context.Context, id int64, notes string) (*model.ShiftAssignment, error)
}

// Notifier is the push side of the notification dispatcher
type Notifier interface {
	SendPush(ctx context.Context, msg model.PushMessage) (model.PushResult, error)
	NotifyAdmins(ctx context.Context, msg model.PushMessage) (model.PushResult, error)
}

// ChangePublisher announces committed changes to live subscribers
type ChangePublisher interface {
	Publish(ctx context.Context, event model.ChangeEvent) error
}

// TransitionRecorder observes the outcome of each reconciler operation
type TransitionRecorder interface {
	ObserveTransition(action string, err error)
}

// Result is the outcome of a committed transition. Warning is set when the
// change was stored but a notification could not be delivered.
type Result struct {
	Assignment *model.ShiftAssignment
	Warning    string
}

// Options holds the optional collaborators of a Reconciler
type Options struct {
	Changes ChangePublisher
	Metrics TransitionRecorder
	// BaseURL prefixes links sent in notifications
	BaseURL string
	Now     func() time.Time
}

// Reconciler applies assignment state transitions against the store
type Reconciler struct {
	store     Store
	instances InstanceResolver
	notifier  Notifier
	changes   ChangePublisher
	metrics   TransitionRecorder
	logger    *zap.Logger
	baseURL   string
	now       func() time.Time
}

// New creates a reconciler
func New(store Store, instances InstanceResolver, notifier Notifier, logger *zap.Logger, opts Options) *Reconciler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		store:     store,
		instances: instances,
		notifier:  notifier,
		changes:   opts.Changes,
		metrics:   opts.Metrics,
		logger:    logger,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		now:       now,
	}
}

// Board returns the slot layout of an instance
func (r *Reconciler) Board(ctx context.Context, instanceID int64) (*Board, error) {
	if instanceID <= 0 {
		return nil, model.ErrVirtualInstance
	}

	instance, err := r.store.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shift instance: %w", err)
	}

	tmpl, err := r.store.GetTemplate(ctx, instance.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shift template: %w", err)
	}

	assignments, err := r.store.ListOpenAssignments(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignments: %w", err)
	}

	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.VolunteerID)
	}
	profiles, err := r.store.GetProfilesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profiles: %w", err)
	}

	board := BuildBoard(*instance, tmpl.SlotCount(), assignments, profiles)
	return &board, nil
}

// RequestShift records a volunteer's pending request for an instance and tells the admins.
// Repeating the request while one is open returns the existing row without writing.
func (r *Reconciler) RequestShift(ctx context.Context, actor model.Profile, instanceID int64) (res *Result, err error) {
	defer func() { r.observe("request", err) }()

	if instanceID <= 0 {
		return nil, model.ErrVirtualInstance
	}

	existing, err := r.store.FindAssignment(ctx, instanceID, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignment: %w", err)
	}
	if existing != nil && existing.IsOpen() {
		r.logger.Debug("Shift already requested",
			zap.Int64("assignment_id", existing.ID),
			zap.String("status", string(existing.Status)))
		return &Result{Assignment: existing}, nil
	}

	board, err := r.Board(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if !board.HasRoomFor(actor) {
		return nil, model.ErrShiftFull
	}

	assignment, err := r.store.UpsertAssignment(ctx, AssignmentUpsert{
		ShiftInstanceID: instanceID,
		VolunteerID:     actor.ID,
		Status:          model.StatusPending,
		Role:            assignmentRoleFor(actor),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request shift: %w", err)
	}

	r.logger.Info("Shift requested",
		zap.Int64("instance_id", instanceID),
		zap.String("volunteer_id", actor.ID),
		zap.Int64("assignment_id", assignment.ID))

	r.publish(ctx, assignment, "requested")
	warning := r.notifyAdmins(ctx, model.PushMessage{
		Title: "New shift request",
		Body:  fmt.Sprintf("%s requested %s", displayName(actor), r.describe(ctx, instanceID)),
		URL:   r.instanceURL(instanceID),
	})

	return &Result{Assignment: assignment, Warning: warning}, nil
}

// JoinShift puts the actor straight into an empty slot. Slot 0 is open to leads
// and admins; only admins may join other slots directly.
func (r *Reconciler) JoinShift(ctx context.Context, actor model.Profile, instanceID int64, slot int) (res *Result, err error) {
	defer func() { r.observe("join", err) }()

	if instanceID <= 0 {
		return nil, model.ErrVirtualInstance
	}
	if slot == 0 && !actor.Role.CanClaimLeadSlot() {
		return nil, model.ErrNotPermitted
	}
	if slot > 0 && !actor.Role.CanAssignAnySlot() {
		return nil, model.ErrNotPermitted
	}

	board, err := r.Board(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if slot < 0 || slot >= len(board.Slots) {
		return nil, model.ErrInvalidSlot
	}
	if !board.Slots[slot].Empty() {
		return nil, model.ErrSlotTaken
	}

	role := assignmentRoleFor(actor)
	if slot == 0 {
		role = model.AssignmentLead
	}

	assignment, err := r.store.UpsertAssignment(ctx, AssignmentUpsert{
		ShiftInstanceID: instanceID,
		VolunteerID:     actor.ID,
		Status:          model.StatusActive,
		Role:            role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join shift: %w", err)
	}

	r.logger.Info("Joined shift",
		zap.Int64("instance_id", instanceID),
		zap.String("volunteer_id", actor.ID),
		zap.Int("slot", slot))

	r.publish(ctx, assignment, "joined")
	return &Result{Assignment: assignment}, nil
}

// Approve activates a pending request and tells the volunteer
func (r *Reconciler) Approve(ctx context.Context, admin model.Profile, assignmentID int64) (res *Result, err error) {
	defer func() { r.observe("approve", err) }()

	if !admin.Role.CanApprove() {
		return nil, model.ErrNotPermitted
	}

	current, err := r.getAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if current.Status != model.StatusPending {
		return nil, model.ErrInvalidTransition
	}

	assignment, err := r.store.SetAssignmentStatus(ctx, assignmentID, model.StatusActive, "")
	if err != nil {
		return nil, fmt.Errorf("failed to approve request: %w", err)
	}

	r.logger.Info("Shift request approved",
		zap.Int64("assignment_id", assignmentID),
		zap.String("admin_id", admin.ID))

	r.publish(ctx, assignment, "approved")
	warning := r.push(ctx, model.PushMessage{
		UserID: assignment.VolunteerID,
		Title:  "Shift request approved",
		Body:   fmt.Sprintf("You're confirmed for %s", r.describe(ctx, assignment.ShiftInstanceID)),
		URL:    r.instanceURL(assignment.ShiftInstanceID),
	})

	return &Result{Assignment: assignment, Warning: warning}, nil
}

// Deny drops a pending request with the admin's reason
func (r *Reconciler) Deny(ctx context.Context, admin model.Profile, assignmentID int64, reason string) (res *Result, err error) {
	defer func() { r.observe("deny", err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, model.ErrReasonRequired
	}
	if !admin.Role.CanApprove() {
		return nil, model.ErrNotPermitted
	}

	current, err := r.getAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if current.Status != model.StatusPending {
		return nil, model.ErrInvalidTransition
	}

	assignment, err := r.store.SetAssignmentStatus(ctx, assignmentID, model.StatusDropped, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to deny request: %w", err)
	}

	r.logger.Info("Shift request denied",
		zap.Int64("assignment_id", assignmentID),
		zap.String("admin_id", admin.ID))

	r.publish(ctx, assignment, "denied")
	warning := r.push(ctx, model.PushMessage{
		UserID: assignment.VolunteerID,
		Title:  "Shift request declined",
		Body:   fmt.Sprintf("Your request for %s was declined: %s", r.describe(ctx, assignment.ShiftInstanceID), reason),
		URL:    r.instanceURL(assignment.ShiftInstanceID),
	})

	return &Result{Assignment: assignment, Warning: warning}, nil
}

// AdminAssign places a volunteer into an empty slot as active
func (r *Reconciler) AdminAssign(ctx context.Context, admin model.Profile, instanceID int64, volunteerID string, slot int) (res *Result, err error) {
	defer func() { r.observe("assign", err) }()

	if !admin.Role.CanAssignAnySlot() {
		return nil, model.ErrNotPermitted
	}
	if volunteerID == "" {
		return nil, model.ErrVolunteerRequired
	}
	if instanceID <= 0 {
		return nil, model.ErrVirtualInstance
	}

	target, err := r.store.GetProfile(ctx, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch volunteer: %w", err)
	}

	existing, err := r.store.FindAssignment(ctx, instanceID, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignment: %w", err)
	}
	if existing != nil && existing.Status == model.StatusActive {
		return &Result{Assignment: existing}, nil
	}

	role := assignmentRoleFor(*target)

	// A pending request already holds a place on the board
	if existing == nil || existing.Status != model.StatusPending {
		board, err := r.Board(ctx, instanceID)
		if err != nil {
			return nil, err
		}
		if slot < 0 || slot >= len(board.Slots) {
			return nil, model.ErrInvalidSlot
		}
		if slot == 0 && !target.Role.CanClaimLeadSlot() {
			return nil, model.ErrNotPermitted
		}
		if !board.Slots[slot].Empty() {
			return nil, model.ErrSlotTaken
		}
		if slot == 0 {
			role = model.AssignmentLead
		}
	}

	assignment, err := r.store.UpsertAssignment(ctx, AssignmentUpsert{
		ShiftInstanceID: instanceID,
		VolunteerID:     volunteerID,
		Status:          model.StatusActive,
		Role:            role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assign volunteer: %w", err)
	}

	r.logger.Info("Volunteer assigned",
		zap.Int64("instance_id", instanceID),
		zap.String("volunteer_id", volunteerID),
		zap.String("admin_id", admin.ID))

	r.publish(ctx, assignment, "assigned")
	warning := r.push(ctx, model.PushMessage{
		UserID: volunteerID,
		Title:  "You've been assigned a shift",
		Body:   fmt.Sprintf("You're on %s", r.describe(ctx, instanceID)),
		URL:    r.instanceURL(instanceID),
	})

	return &Result{Assignment: assignment, Warning: warning}, nil
}

// AdminRemove drops someone else's assignment
func (r *Reconciler) AdminRemove(ctx context.Context, admin model.Profile, assignmentID int64) (res *Result, err error) {
	defer func() { r.observe("remove", err) }()

	if !admin.Role.CanAssignAnySlot() {
		return nil, model.ErrNotPermitted
	}

	current, err := r.getAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if current.Status == model.StatusDropped {
		return nil, model.ErrInvalidTransition
	}

	assignment, err := r.store.SetAssignmentStatus(ctx, assignmentID, model.StatusDropped, RemovedByAdminReason)
	if err != nil {
		return nil, fmt.Errorf("failed to remove assignment: %w", err)
	}

	r.logger.Info("Assignment removed by admin",
		zap.Int64("assignment_id", assignmentID),
		zap.String("admin_id", admin.ID))

	r.publish(ctx, assignment, "removed")
	shift := r.describe(ctx, assignment.ShiftInstanceID)
	url := r.instanceURL(assignment.ShiftInstanceID)
	warning := joinWarnings(
		r.push(ctx, model.PushMessage{
			UserID: assignment.VolunteerID,
			Title:  "Removed from shift",
			Body:   fmt.Sprintf("You've been removed from %s", shift),
			URL:    url,
		}),
		r.notifyAdmins(ctx, model.PushMessage{
			Title: "Volunteer removed",
			Body:  fmt.Sprintf("%s removed %s from %s", displayName(admin), r.volunteerName(ctx, assignment.VolunteerID), shift),
			URL:   url,
		}),
	)

	return &Result{Assignment: assignment, Warning: warning}, nil
}

// Drop releases the actor's own assignment. Volunteers must give a reason and
// the admins are told; an admin dropping their own row needs neither.
func (r *Reconciler) Drop(ctx context.Context, actor model.Profile, assignmentID int64, reason string) (res *Result, err error) {
	defer func() { r.observe("drop", err) }()

	isAdmin := actor.Role == model.RoleAdmin
	reason = strings.TrimSpace(reason)
	if !isAdmin && reason == "" {
		return nil, model.ErrReasonRequired
	}

	current, err := r.getAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if current.VolunteerID != actor.ID {
		return nil, model.ErrNotPermitted
	}
	if current.Status == model.StatusDropped {
		return nil, model.ErrInvalidTransition
	}

	if isAdmin {
		reason = RemovedByAdminReason
	}

	assignment, err := r.store.SetAssignmentStatus(ctx, assignmentID, model.StatusDropped, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to drop shift: %w", err)
	}

	r.logger.Info("Shift dropped",
		zap.Int64("assignment_id", assignmentID),
		zap.String("volunteer_id", actor.ID))

	r.publish(ctx, assignment, "dropped")
	if isAdmin {
		return &Result{Assignment: assignment}, nil
	}

	warning := r.notifyAdmins(ctx, model.PushMessage{
		Title: "Shift dropped",
		Body:  fmt.Sprintf("%s dropped %s: %s", displayName(actor), r.describe(ctx, assignment.ShiftInstanceID), reason),
		URL:   r.instanceURL(assignment.ShiftInstanceID),
	})

	return &Result{Assignment: assignment, Warning: warning}, nil
}

// SetNotes replaces the admin notes on an assignment
func (r *Reconciler) SetNotes(ctx context.Context, admin model.Profile, assignmentID int64, notes string) (res *Result, err error) {
	defer func() { r.observe("notes", err) }()

	if !admin.Role.CanApprove() {
		return nil, model.ErrNotPermitted
	}

	assignment, err := r.store.SetAssignmentNotes(ctx, assignmentID, strings.TrimSpace(notes))
	if err != nil {
		return nil, fmt.Errorf("failed to save notes: %w", err)
	}

	r.publish(ctx, assignment, "notes")
	return &Result{Assignment: assignment}, nil
}

func (r *Reconciler) getAssignment(ctx context.Context, id int64) (*model.ShiftAssignment, error) {
	a, err := r.store.GetAssignment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignment: %w", err)
	}
	return a, nil
}

// push sends to one user and returns a warning when delivery failed
func (r *Reconciler) push(ctx context.Context, msg model.PushMessage) string {
	if r.notifier == nil {
		return ""
	}
	result, err := r.notifier.SendPush(ctx, msg)
	return r.warningFor(msg, result, err)
}

func (r *Reconciler) notifyAdmins(ctx context.Context, msg model.PushMessage) string {
	if r.notifier == nil {
		return ""
	}
	result, err := r.notifier.NotifyAdmins(ctx, msg)
	return r.warningFor(msg, result, err)
}

func (r *Reconciler) warningFor(msg model.PushMessage, result model.PushResult, err error) string {
	if err != nil {
		r.logger.Warn("Failed to send notification",
			zap.String("title", msg.Title),
			zap.String("user_id", msg.UserID),
			zap.Error(err))
		return fmt.Sprintf("saved, but the notification failed: %v", err)
	}
	if result.Failed > 0 {
		r.logger.Warn("Notification partially failed",
			zap.String("title", msg.Title),
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed))
		return fmt.Sprintf("saved, but %d notification(s) could not be delivered", result.Failed)
	}
	return ""
}

func (r *Reconciler) publish(ctx context.Context, a *model.ShiftAssignment, action string) {
	r.publishEvent(ctx, model.ChangeEvent{
		Kind:         model.ChangeAssignment,
		InstanceID:   a.ShiftInstanceID,
		AssignmentID: a.ID,
		VolunteerID:  a.VolunteerID,
		Action:       action,
	})
}

func (r *Reconciler) publishEvent(ctx context.Context, event model.ChangeEvent) {
	if r.changes == nil {
		return
	}
	event.At = r.now()
	if err := r.changes.Publish(ctx, event); err != nil {
		r.logger.Warn("Failed to publish change", zap.String("action", event.Action), zap.Error(err))
	}
}

func (r *Reconciler) observe(action string, err error) {
	if r.metrics != nil {
		r.metrics.ObserveTransition(action, err)
	}
}

// describe renders "<title> on <date>" for notification text
func (r *Reconciler) describe(ctx context.Context, instanceID int64) string {
	instance, err := r.store.GetInstance(ctx, instanceID)
	if err != nil {
		return "your shift"
	}
	when := instance.StartsAt.Format("Mon 2 Jan 15:04")
	tmpl, err := r.store.GetTemplate(ctx, instance.TemplateID)
	if err != nil || tmpl.Title == "" {
		return "the shift on " + when
	}
	return tmpl.Title + " on " + when
}

// volunteerName falls back to the id when the profile cannot be loaded
func (r *Reconciler) volunteerName(ctx context.Context, volunteerID string) string {
	p, err := r.store.GetProfile(ctx, volunteerID)
	if err != nil {
		return volunteerID
	}
	return displayName(*p)
}

func (r *Reconciler) instanceURL(instanceID int64) string {
	return fmt.Sprintf("%s/shifts/%d", r.baseURL, instanceID)
}

func assignmentRoleFor(p model.Profile) model.AssignmentRole {
	if p.Role == model.RoleLead {
		return model.AssignmentLead
	}
	return model.AssignmentRegular
}

func displayName(p model.Profile) string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.ID
}

func joinWarnings(warnings ...string) string {
	var parts []string
	for _, w := range warnings {
		if w != "" {
			parts = append(parts, w)
		}
	}
	return strings.Join(parts, "; ")
}

// IsValidationError reports whether err was raised before any write was attempted
func IsValidationError(err error) bool {
	for _, target := range []error{
		model.ErrReasonRequired, model.ErrTemplateRequired, model.ErrVolunteerRequired,
		model.ErrWeekdaysRequired, model.ErrStartDateRequired, model.ErrInvalidDateRange,
		model.ErrInvalidSlot, model.ErrVirtualInstance,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
