package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/reading-server/internal/domain"
	"github.com/listenupapp/reading-server/internal/service"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createSession",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Start reading session",
		Description:   "Opens a reading session for a book. A session opened within the last hour is returned instead of a new one.",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "endSession",
		Method:      http.MethodPut,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "End reading session",
		Description: "Closes a reading session and recomputes the book's total reading time. Ending a closed session is a no-op.",
		Tags:        []string{"Sessions"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleEndSession)
}

// === DTOs ===

type CreateSessionRequest struct {
	BookID    string     `json:"book_id" doc:"Book ID"`
	StartTime *time.Time `json:"start_time,omitempty" doc:"Session start, defaults to now"`
}

type CreateSessionInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateSessionRequest
}

type SessionResponse struct {
	SessionID string                 `json:"session_id" doc:"Session ID"`
	Session   *domain.ReadingSession `json:"session" doc:"Session record"`
}

type SessionOutput struct {
	Body SessionResponse
}

type EndSessionRequest struct {
	EndTime       *time.Time `json:"end_time,omitempty" doc:"Session end, defaults to now"`
	ProgressAfter *float64   `json:"progress_after,omitempty" doc:"Progress at the end of the session, 0 to 1"`
}

type EndSessionInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Session ID"`
	Body          *EndSessionRequest
}

// === Handlers ===

func (s *Server) handleCreateSession(ctx context.Context, input *CreateSessionInput) (*SessionOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	sess, err := s.services.Sessions.CreateSession(ctx, userID, input.Body.BookID, input.Body.StartTime)
	if err != nil {
		return nil, toAPIError(err, s.logger, "user_id", userID, "book_id", input.Body.BookID)
	}

	return &SessionOutput{Body: SessionResponse{SessionID: sess.ID, Session: sess}}, nil
}

func (s *Server) handleEndSession(ctx context.Context, input *EndSessionInput) (*SessionOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var req service.EndSessionRequest
	if input.Body != nil {
		req.EndTime = input.Body.EndTime
		req.ProgressAfter = input.Body.ProgressAfter
	}

	sess, err := s.services.Sessions.EndSession(ctx, input.ID, userID, req)
	if err != nil {
		return nil, toAPIError(err, s.logger, "user_id", userID, "session_id", input.ID)
	}

	return &SessionOutput{Body: SessionResponse{SessionID: sess.ID, Session: sess}}, nil
}
