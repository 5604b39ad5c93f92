package api

import (
	"net/http"
	"time"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/reconciler"
	"github.com/jakechorley/drop-in-shifts/pkg/core/recurrence"
)

type patternRequest struct {
	VolunteerID string   `json:"volunteerId"`
	TemplateID  int64    `json:"templateId"`
	StartsOn    string   `json:"startsOn"`
	EndsOn      string   `json:"endsOn"`
	ByDay       []string `json:"byDay"`
}

// input converts the request; empty fields are left for PatternInput.Validate to report
func (req patternRequest) input() (reconciler.PatternInput, error) {
	in := reconciler.PatternInput{
		VolunteerID: req.VolunteerID,
		TemplateID:  req.TemplateID,
	}

	days, err := recurrence.ParseWeekdayCodes(req.ByDay)
	if err != nil {
		return in, err
	}
	in.ByDay = days

	if req.StartsOn != "" {
		start, err := time.Parse(recurrence.DateLayout, req.StartsOn)
		if err != nil {
			return in, model.ErrStartDateRequired
		}
		in.StartsOn = start
	}
	if req.EndsOn != "" {
		end, err := time.Parse(recurrence.DateLayout, req.EndsOn)
		if err != nil {
			return in, model.ErrInvalidDateRange
		}
		in.EndsOn = &end
	}
	return in, nil
}

// listPatterns returns the caller's patterns; admins may pass ?volunteerId= or see all
func (s *Server) listPatterns(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	volunteerID := actor.ID
	if actor.Role.CanAssignAnySlot() {
		volunteerID = r.URL.Query().Get("volunteerId")
	}

	patterns, err := s.deps.Store.ListPatterns(r.Context(), volunteerID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	out := make([]patternDTO, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, toPattern(p))
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) createPattern(w http.ResponseWriter, r *http.Request) {
	var req patternRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Shifts.SavePattern(r.Context(), actorFrom(r), in)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusCreated, patternResultDTO{
		Pattern:  toPattern(*res.Pattern),
		Dates:    res.Dates,
		Assigned: res.Assigned,
		Warning:  res.Warning,
	})
}

func (s *Server) deletePattern(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	removed, err := s.deps.Shifts.DeletePattern(r.Context(), actorFrom(r), id)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]int{"removed": removed})
}
