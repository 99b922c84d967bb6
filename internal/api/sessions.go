package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"interviewpad/pkg/interfaces"
	"interviewpad/pkg/types"
)

// SessionResponse is the public representation of a session
// FUNCTIONAL DISCOVERY: The password digest never leaves the server, only
// whether one is set
type SessionResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Language    types.Language `json:"language"`
	Code        string         `json:"code"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   *time.Time     `json:"expires_at"`
	IsProtected bool           `json:"is_protected"`
	IsActive    bool           `json:"is_active"`
	ShareURL    string         `json:"share_url"`
}

// ParticipantsResponse lists the live participants of a session
type ParticipantsResponse struct {
	Participants []*types.Participant `json:"participants"`
	Count        int                  `json:"count"`
}

// LanguagesResponse is the static language catalog
type LanguagesResponse struct {
	Languages []types.LanguageInfo `json:"languages"`
}

// ErrorResponse is every error body; Errors is set only for validation failures
type ErrorResponse struct {
	Detail string             `json:"detail"`
	Errors []types.FieldError `json:"errors,omitempty"`
}

func (s *Server) toResponse(c *gin.Context, session *types.Session) SessionResponse {
	return SessionResponse{
		ID:          session.ID,
		Title:       session.Title,
		Language:    session.Language,
		Code:        session.Code,
		CreatedAt:   session.CreatedAt,
		ExpiresAt:   session.ExpiresAt,
		IsProtected: session.IsProtected(),
		IsActive:    session.IsActive,
		ShareURL:    s.baseURL(c) + "/session/" + session.ID,
	}
}

// POST /api/sessions
func (s *Server) createSession(c *gin.Context) {
	var req types.SessionCreate
	if !s.bindJSON(c, &req) {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	session, err := s.sessions.Create(ctx, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.toResponse(c, session))
}

// GET /api/sessions/:id?password=
func (s *Server) getSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	session, err := s.sessions.Read(ctx, id, passwordParam(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.toResponse(c, session))
}

// PATCH /api/sessions/:id
func (s *Server) updateSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req types.SessionUpdate
	if !s.bindJSON(c, &req) {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	session, err := s.sessions.Update(ctx, id, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.toResponse(c, session))
}

// DELETE /api/sessions/:id
func (s *Server) deleteSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.sessions.Delete(ctx, id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/sessions/:id/participants?password=
// Same access checks as reading the session
func (s *Server) listParticipants(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if _, err := s.sessions.Read(ctx, id, passwordParam(c)); err != nil {
		s.writeError(c, err)
		return
	}

	participants, err := s.presence.ParticipantsOf(ctx, id)
	if err != nil {
		s.logger.Warn("live participant lookup failed", "session_id", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Detail: "Live state unavailable"})
		return
	}
	if participants == nil {
		participants = []*types.Participant{}
	}
	c.JSON(http.StatusOK, ParticipantsResponse{Participants: participants, Count: len(participants)})
}

// GET /api/languages
func (s *Server) listLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, LanguagesResponse{Languages: types.SupportedLanguages})
}

// bindJSON decodes the body, answering 400 for malformed JSON and 422 for
// fields of the wrong type
func (s *Server) bindJSON(c *gin.Context, v interface{}) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Detail: "Validation failed",
			Errors: []types.FieldError{{Field: field, Message: "must be " + typeErr.Type.String()}},
		})
		return false
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "Invalid JSON body"})
	return false
}

// writeError maps service errors onto status codes
func (s *Server) writeError(c *gin.Context, err error) {
	var verr *types.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Detail: "Validation failed", Errors: verr.Fields})
	case errors.Is(err, interfaces.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Detail: "Session not found"})
	case errors.Is(err, interfaces.ErrSessionExpired):
		c.JSON(http.StatusGone, ErrorResponse{Detail: "Session has expired"})
	case errors.Is(err, interfaces.ErrPasswordRequired):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Detail: "Password required for this session"})
	case errors.Is(err, interfaces.ErrPasswordIncorrect):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Detail: "Incorrect password"})
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("request timed out", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Detail: "Request timed out"})
	default:
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "Internal server error"})
	}
}

// sessionID reads the :id parameter; anything that is not a UUID cannot name
// a session and is answered 404 directly
func sessionID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Detail: "Session not found"})
		return "", false
	}
	return id, true
}

// passwordParam distinguishes an absent password from an empty one
func passwordParam(c *gin.Context) *string {
	if p, ok := c.GetQuery("password"); ok {
		return &p
	}
	return nil
}
