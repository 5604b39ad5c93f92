package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/mailqueue"
)

// ReminderKind identifies the single reminder sent ahead of a shift
const ReminderKind = "upcoming"

const maxConcurrentReminders = 10

// ReminderStore defines the database operations needed
type ReminderStore interface {
	ListUpcomingUnreminded(ctx context.Context, from, to time.Time, kind string) ([]model.UpcomingAssignment, error)
	RecordReminder(ctx context.Context, assignmentID int64, kind string, runID uuid.UUID) (bool, error)
}

// PushSender delivers a push to every device of one user
type PushSender interface {
	SendPush(ctx context.Context, msg model.PushMessage) (model.PushResult, error)
}

// EmailQueue accepts email for background delivery
type EmailQueue interface {
	Enqueue(ctx context.Context, email mailqueue.Email) error
}

// ReminderObserver records per-assignment outcomes
type ReminderObserver interface {
	ObserveReminder(outcome string)
}

// ReminderOptions configures one reminder run. Push and Emails may be nil.
type ReminderOptions struct {
	LeadTime time.Duration
	BaseURL  string
	Location *time.Location
	Now      time.Time
	Observer ReminderObserver
}

// ReminderResult summarises one run
type ReminderResult struct {
	RunID      uuid.UUID
	Considered int
	Reminded   int
	Skipped    int
	Failed     int
}

// SendReminders notifies volunteers of active assignments starting within
// the lead time. An assignment is recorded as reminded once any channel
// accepted the message, so later runs skip it.
func SendReminders(
	ctx context.Context,
	database ReminderStore,
	push PushSender,
	emails EmailQueue,
	logger *zap.Logger,
	opts ReminderOptions,
) (*ReminderResult, error) {
	if opts.LeadTime <= 0 {
		return nil, fmt.Errorf("reminder lead time must be positive, got %s", opts.LeadTime)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	result := &ReminderResult{RunID: uuid.New()}
	from := opts.Now
	to := opts.Now.Add(opts.LeadTime)

	logger.Debug("Fetching upcoming assignments",
		zap.String("run_id", result.RunID.String()),
		zap.Time("from", from),
		zap.Time("to", to))

	upcoming, err := database.ListUpcomingUnreminded(ctx, from, to, ReminderKind)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch upcoming assignments: %w", err)
	}
	result.Considered = len(upcoming)

	if len(upcoming) == 0 {
		logger.Info("No reminders due", zap.String("run_id", result.RunID.String()))
		return result, nil
	}

	outcomes := make(chan string, len(upcoming))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, maxConcurrentReminders)

	for _, u := range upcoming {
		wg.Add(1)
		go func(u model.UpcomingAssignment) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			outcome := remind(ctx, database, push, emails, logger, opts, result.RunID, u)
			if opts.Observer != nil {
				opts.Observer.ObserveReminder(outcome)
			}
			outcomes <- outcome
		}(u)
	}

	wg.Wait()
	close(outcomes)

	for outcome := range outcomes {
		switch outcome {
		case "sent":
			result.Reminded++
		case "skipped":
			result.Skipped++
		default:
			result.Failed++
		}
	}

	logger.Info("Reminder run completed",
		zap.String("run_id", result.RunID.String()),
		zap.Int("considered", result.Considered),
		zap.Int("reminded", result.Reminded),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))

	if result.Failed == result.Considered {
		return result, fmt.Errorf("all %d reminders failed", result.Failed)
	}

	return result, nil
}

// remind delivers one reminder and returns its outcome: sent, skipped or failed
func remind(
	ctx context.Context,
	database ReminderStore,
	push PushSender,
	emails EmailQueue,
	logger *zap.Logger,
	opts ReminderOptions,
	runID uuid.UUID,
	u model.UpcomingAssignment,
) string {
	log := logger.With(
		zap.Int64("assignment_id", u.Assignment.ID),
		zap.String("volunteer_id", u.Volunteer.ID))

	title, body := reminderText(u, opts.Location)
	delivered := false
	attempted := false

	if push != nil {
		res, err := push.SendPush(ctx, model.PushMessage{
			UserID: u.Volunteer.ID,
			Title:  title,
			Body:   body,
			URL:    strings.TrimRight(opts.BaseURL, "/") + "/shifts/" + strconv.FormatInt(u.Instance.ID, 10),
		})
		switch {
		case err != nil:
			attempted = true
			log.Warn("Reminder push failed", zap.Error(err))
		case res.Sent > 0:
			delivered = true
		case res.Failed > 0:
			attempted = true
		}
	}

	if emails != nil && u.Volunteer.Email != "" {
		attempted = true
		err := emails.Enqueue(ctx, mailqueue.Email{
			To:      u.Volunteer.Email,
			Subject: title,
			Body:    body,
		})
		if err != nil {
			log.Warn("Failed to queue reminder email", zap.Error(err))
		} else {
			delivered = true
		}
	}

	if !delivered {
		if attempted {
			return "failed"
		}
		log.Debug("No channel available for reminder")
		return "skipped"
	}

	recorded, err := database.RecordReminder(ctx, u.Assignment.ID, ReminderKind, runID)
	if err != nil {
		log.Error("Failed to record reminder", zap.Error(err))
		return "failed"
	}
	if !recorded {
		log.Debug("Reminder already recorded by another run")
	}
	return "sent"
}

func reminderText(u model.UpcomingAssignment, loc *time.Location) (string, string) {
	starts := u.Instance.StartsAt.In(loc)
	title := fmt.Sprintf("Reminder: %s on %s", u.TemplateTitle, starts.Format("Mon 2 Jan"))

	name := u.Volunteer.FullName
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf("Hi %s, you're down for %s starting at %s.",
		name, u.TemplateTitle, starts.Format("15:04"))
	if u.Assignment.Role == model.AssignmentLead {
		body += " You're leading this shift."
	}
	return title, body
}
