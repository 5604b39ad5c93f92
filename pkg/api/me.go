package api

import (
	"net/http"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/services"
)

type preferenceRequest struct {
	Preference string `json:"preference" validate:"required"`
}

type subscriptionRequest struct {
	Endpoint       string `json:"endpoint"`
	ExpirationTime *int64 `json:"expirationTime"`
	Keys           struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, toProfile(actorFrom(r), s.deps.VAPIDPublicKey))
}

func (s *Server) updatePreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pref, err := services.UpdateNotificationPreference(r.Context(), s.deps.Store, s.logger, actorFrom(r).ID, req.Preference)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"preference": string(pref)})
}

// registerSubscription accepts the browser's PushSubscription JSON as-is
func (s *Server) registerSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := services.RegisterPushSubscription(r.Context(), s.deps.Store, s.logger, actorFrom(r).ID, model.PushSubscription{
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, map[string]int64{"id": saved.ID})
}
