package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/reconciler"
	"github.com/jakechorley/drop-in-shifts/pkg/core/recurrence"
)

type resolveRequest struct {
	TemplateID int64  `json:"templateId" validate:"required,gt=0"`
	Date       string `json:"date" validate:"required"`
}

type slotRequest struct {
	Slot int `json:"slot" validate:"gte=0"`
}

type assignRequest struct {
	VolunteerID string `json:"volunteerId" validate:"required"`
	Slot        int    `json:"slot" validate:"gte=0"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// parseDay accepts YYYY-MM-DD or "today" in the service timezone
func (s *Server) parseDay(value string) (time.Time, error) {
	if value == "today" {
		return recurrence.DateOf(time.Now().In(s.deps.Location)), nil
	}
	return time.Parse(recurrence.DateLayout, value)
}

func (s *Server) getWeek(w http.ResponseWriter, r *http.Request) {
	day, err := s.parseDay(chi.URLParam(r, "date"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	view, err := s.deps.Weeks.MaterializeWeek(r.Context(), day)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.deps.Metrics.ObserveWeek(len(view.Instances)-view.VirtualCount, view.VirtualCount)

	s.writeJSON(w, r, http.StatusOK, toWeek(view))
}

func (s *Server) resolveInstance(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	date, err := s.parseDay(req.Date)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	id, err := s.deps.Weeks.Resolve(r.Context(), req.TemplateID, date)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]int64{"instanceId": id})
}

func (s *Server) getSlots(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	board, err := s.deps.Shifts.Board(r.Context(), id)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, toBoard(board))
}

func (s *Server) requestShift(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Shifts.RequestShift(r.Context(), actorFrom(r), id)
	s.writeResult(w, r, http.StatusCreated, res, err)
}

func (s *Server) joinShift(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req slotRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Shifts.JoinShift(r.Context(), actorFrom(r), id, req.Slot)
	s.writeResult(w, r, http.StatusCreated, res, err)
}

func (s *Server) assignShift(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req assignRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Shifts.AdminAssign(r.Context(), actorFrom(r), id, req.VolunteerID, req.Slot)
	s.writeResult(w, r, http.StatusOK, res, err)
}

func (s *Server) approveAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Shifts.Approve(r.Context(), actorFrom(r), id)
	s.writeResult(w, r, http.StatusOK, res, err)
}

func (s *Server) denyAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req reasonRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Shifts.Deny(r.Context(), actorFrom(r), id, req.Reason)
	s.writeResult(w, r, http.StatusOK, res, err)
}

func (s *Server) removeAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Shifts.AdminRemove(r.Context(), actorFrom(r), id)
	s.writeResult(w, r, http.StatusOK, res, err)
}

func (s *Server) dropAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req reasonRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Shifts.Drop(r.Context(), actorFrom(r), id, req.Reason)
	s.writeResult(w, r, http.StatusOK, res, err)
}

func (s *Server) setNotes(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req notesRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Shifts.SetNotes(r.Context(), actorFrom(r), id, req.Notes)
	s.writeResult(w, r, http.StatusOK, res, err)
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, status int, res *reconciler.Result, err error) {
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if res.Warning != "" {
		s.logger.Warn("Transition stored with notification warning",
			zap.String("request_id", requestIDFrom(r)),
			zap.String("warning", res.Warning))
	}
	s.writeJSON(w, r, status, toResult(res))
}
