package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/D371L/asmodeus/internal/app"
	"github.com/D371L/asmodeus/internal/domain"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateWheelRequest is the optional body of POST /api/wheels
type CreateWheelRequest struct {
	Settings *domain.SettingsPatch `json:"settings,omitempty"`
}

// CreateWheelResponse is the response for wheel creation
type CreateWheelResponse struct {
	WheelID   string             `json:"wheelId"`
	ShareLink string             `json:"shareLink"`
	State     *domain.WheelState `json:"state"`
}

// WheelExistsResponse is the response for checking if a wheel exists
type WheelExistsResponse struct {
	Exists bool `json:"exists"`
}

// HistoryResponse lists recent winners
type HistoryResponse struct {
	WheelID string         `json:"wheelId"`
	History domain.History `json:"history"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	ActiveWheels   int `json:"activeWheels"`
	SpinningWheels int `json:"spinningWheels"`
	TotalClients   int `json:"totalClients"`
}

// handleCreateWheel handles POST /api/wheels
func (s *Server) handleCreateWheel(w http.ResponseWriter, r *http.Request) {
	var req CreateWheelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.sendError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON")
		return
	}

	session, err := s.hub.CreateWheel(r.Context(), req.Settings)
	if err != nil {
		s.logger.Error("failed to create wheel", "error", err)
		s.sendError(w, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create wheel")
		return
	}

	// Build share link
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	shareLink := scheme + "://" + r.Host + "/wheel/" + session.GetWheelID()

	s.sendSuccessStatus(w, http.StatusCreated, &CreateWheelResponse{
		WheelID:   session.GetWheelID(),
		ShareLink: shareLink,
		State:     session.GetState(),
	})
}

// lookup resolves {wheelId}, writing the error response on failure
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*app.WheelSession, bool) {
	wheelID := r.PathValue("wheelId")
	if wheelID == "" {
		s.sendError(w, http.StatusBadRequest, "MISSING_WHEEL_ID", "Wheel ID is required")
		return nil, false
	}

	session, err := s.hub.GetSession(strings.ToUpper(wheelID))
	if err != nil {
		if errors.Is(err, domain.ErrWheelNotFound) {
			s.sendError(w, http.StatusNotFound, "WHEEL_NOT_FOUND", "Wheel not found")
		} else {
			s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}
		return nil, false
	}
	return session, true
}

// handleGetWheel handles GET /api/wheels/{wheelId}
func (s *Server) handleGetWheel(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.sendSuccess(w, session.GetState())
}

// handleWheelExists handles GET /api/wheels/{wheelId}/exists
func (s *Server) handleWheelExists(w http.ResponseWriter, r *http.Request) {
	wheelID := r.PathValue("wheelId")
	if wheelID == "" {
		s.sendError(w, http.StatusBadRequest, "MISSING_WHEEL_ID", "Wheel ID is required")
		return
	}

	_, err := s.hub.GetSession(strings.ToUpper(wheelID))
	s.sendSuccess(w, &WheelExistsResponse{
		Exists: err == nil,
	})
}

// handleWheelHistory handles GET /api/wheels/{wheelId}/history
func (s *Server) handleWheelHistory(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.sendSuccess(w, &HistoryResponse{
		WheelID: session.GetWheelID(),
		History: session.GetHistory(),
	})
}

// handleDeleteWheel handles DELETE /api/wheels/{wheelId}
func (s *Server) handleDeleteWheel(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if err := s.hub.DeleteWheel(r.Context(), session.GetWheelID()); err != nil {
		if errors.Is(err, domain.ErrWheelNotFound) {
			s.sendError(w, http.StatusNotFound, "WHEEL_NOT_FOUND", "Wheel not found")
			return
		}
		// The session is gone either way; only the stored records may linger
		s.logger.Error("failed to delete wheel records", "wheelId", session.GetWheelID(), "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &StatsResponse{
		ActiveWheels:   s.hub.GetSessionCount(),
		SpinningWheels: s.hub.GetSpinningCount(),
		TotalClients:   s.hub.GetTotalClientCount(),
	})
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	s.sendSuccessStatus(w, http.StatusOK, data)
}

func (s *Server) sendSuccessStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
