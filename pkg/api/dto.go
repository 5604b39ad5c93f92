package api

import (
	"time"

	"github.com/jakechorley/drop-in-shifts/pkg/core/materializer"
	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/reconciler"
)

const dateLayout = "2006-01-02"

type instanceDTO struct {
	ID         int64     `json:"id"`
	TemplateID int64     `json:"templateId"`
	Title      string    `json:"title"`
	Date       string    `json:"date"`
	StartsAt   time.Time `json:"startsAt"`
	EndsAt     time.Time `json:"endsAt"`
	Capacity   int       `json:"capacity"`
	Note       string    `json:"note,omitempty"`
	Virtual    bool      `json:"virtual"`
}

type weekDTO struct {
	Start     string        `json:"start"`
	End       string        `json:"end"`
	Instances []instanceDTO `json:"instances"`
}

type assignmentDTO struct {
	ID                    int64      `json:"id"`
	ShiftInstanceID       int64      `json:"shiftInstanceId"`
	VolunteerID           string     `json:"volunteerId"`
	Status                string     `json:"status"`
	Role                  string     `json:"role"`
	CreatedAt             time.Time  `json:"createdAt"`
	DroppedAt             *time.Time `json:"droppedAt,omitempty"`
	DroppedReason         string     `json:"droppedReason,omitempty"`
	Notes                 string     `json:"notes,omitempty"`
	RecurringAssignmentID *int64     `json:"recurringAssignmentId,omitempty"`
}

type volunteerDTO struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

type slotDTO struct {
	Index      int            `json:"index"`
	Label      string         `json:"label"`
	Assignment *assignmentDTO `json:"assignment,omitempty"`
	Volunteer  *volunteerDTO  `json:"volunteer,omitempty"`
}

type boardDTO struct {
	Instance instanceDTO     `json:"instance"`
	Slots    []slotDTO       `json:"slots"`
	Overflow []assignmentDTO `json:"overflow"`
}

type resultDTO struct {
	Assignment *assignmentDTO `json:"assignment"`
	Warning    string         `json:"warning,omitempty"`
}

type patternDTO struct {
	ID          int64     `json:"id"`
	VolunteerID string    `json:"volunteerId"`
	TemplateID  int64     `json:"templateId"`
	StartsOn    string    `json:"startsOn"`
	EndsOn      *string   `json:"endsOn,omitempty"`
	ByDay       []string  `json:"byDay"`
	CreatedAt   time.Time `json:"createdAt"`
}

type patternResultDTO struct {
	Pattern  patternDTO `json:"pattern"`
	Dates    int        `json:"dates"`
	Assigned int        `json:"assigned"`
	Warning  string     `json:"warning,omitempty"`
}

type profileDTO struct {
	ID                     string `json:"id"`
	FullName               string `json:"fullName"`
	Email                  string `json:"email"`
	Phone                  string `json:"phone,omitempty"`
	Role                   string `json:"role"`
	NotificationPreference string `json:"notificationPreference"`
	VAPIDPublicKey         string `json:"vapidPublicKey,omitempty"`
}

func toInstance(i model.ShiftInstance, tmpl model.ShiftTemplate) instanceDTO {
	return instanceDTO{
		ID:         i.ID,
		TemplateID: i.TemplateID,
		Title:      tmpl.Title,
		Date:       i.Date.Format(dateLayout),
		StartsAt:   i.StartsAt,
		EndsAt:     i.EndsAt,
		Capacity:   tmpl.SlotCount(),
		Note:       i.Note,
		Virtual:    i.IsVirtual(),
	}
}

func toWeek(view *materializer.WeekView) weekDTO {
	out := weekDTO{
		Start:     view.Start.Format(dateLayout),
		End:       view.End.Format(dateLayout),
		Instances: make([]instanceDTO, 0, len(view.Instances)),
	}
	for _, inst := range view.Instances {
		out.Instances = append(out.Instances, toInstance(inst, view.Templates[inst.TemplateID]))
	}
	return out
}

func toAssignment(a *model.ShiftAssignment) *assignmentDTO {
	if a == nil {
		return nil
	}
	return &assignmentDTO{
		ID:                    a.ID,
		ShiftInstanceID:       a.ShiftInstanceID,
		VolunteerID:           a.VolunteerID,
		Status:                string(a.Status),
		Role:                  string(a.Role),
		CreatedAt:             a.CreatedAt,
		DroppedAt:             a.DroppedAt,
		DroppedReason:         a.DroppedReason,
		Notes:                 a.Notes,
		RecurringAssignmentID: a.RecurringAssignmentID,
	}
}

func toBoard(b *reconciler.Board) boardDTO {
	out := boardDTO{
		Instance: instanceDTO{
			ID:         b.Instance.ID,
			TemplateID: b.Instance.TemplateID,
			Date:       b.Instance.Date.Format(dateLayout),
			StartsAt:   b.Instance.StartsAt,
			EndsAt:     b.Instance.EndsAt,
			Capacity:   len(b.Slots),
			Note:       b.Instance.Note,
		},
		Slots:    make([]slotDTO, 0, len(b.Slots)),
		Overflow: make([]assignmentDTO, 0, len(b.Overflow)),
	}
	for _, slot := range b.Slots {
		dto := slotDTO{Index: slot.Index, Label: slot.Label, Assignment: toAssignment(slot.Assignment)}
		if slot.Volunteer != nil {
			dto.Volunteer = &volunteerDTO{
				ID:       slot.Volunteer.ID,
				FullName: slot.Volunteer.FullName,
				Role:     string(slot.Volunteer.Role),
			}
		}
		out.Slots = append(out.Slots, dto)
	}
	for i := range b.Overflow {
		out.Overflow = append(out.Overflow, *toAssignment(&b.Overflow[i]))
	}
	return out
}

func toResult(res *reconciler.Result) resultDTO {
	return resultDTO{Assignment: toAssignment(res.Assignment), Warning: res.Warning}
}

func toPattern(p model.RecurringAssignment) patternDTO {
	out := patternDTO{
		ID:          p.ID,
		VolunteerID: p.VolunteerID,
		TemplateID:  p.TemplateID,
		StartsOn:    p.StartsOn.Format(dateLayout),
		ByDay:       p.ByDay.Codes(),
		CreatedAt:   p.CreatedAt,
	}
	if p.EndsOn != nil {
		end := p.EndsOn.Format(dateLayout)
		out.EndsOn = &end
	}
	return out
}

func toProfile(p model.Profile, vapidKey string) profileDTO {
	return profileDTO{
		ID:                     p.ID,
		FullName:               p.FullName,
		Email:                  p.Email,
		Phone:                  p.Phone,
		Role:                   string(p.Role),
		NotificationPreference: string(p.NotificationPreference),
		VAPIDPublicKey:         vapidKey,
	}
}
