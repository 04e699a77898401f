package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/reading-server/internal/domain"
	"github.com/listenupapp/reading-server/internal/service"
)

func (s *Server) registerProgressRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "updateProgress",
		Method:      http.MethodPut,
		Path:        "/api/v1/progress",
		Summary:     "Update reading progress",
		Description: "Stores the reader's position in a book. Rejected with 409 when the server holds newer, further progress from another device.",
		Tags:        []string{"Progress"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "getProgress",
		Method:      http.MethodGet,
		Path:        "/api/v1/progress/{bookId}",
		Summary:     "Get reading progress",
		Description: "Returns the reader's progress record for a book, or null",
		Tags:        []string{"Progress"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "listRecentProgress",
		Method:      http.MethodGet,
		Path:        "/api/v1/progress",
		Summary:     "List recently read books",
		Description: "Returns progress records ordered by last read, most recent first",
		Tags:        []string{"Progress"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListRecentProgress)
}

// === DTOs ===

type UpdateProgressRequest struct {
	BookID          string     `json:"book_id" doc:"Book ID"`
	Progress        float64    `json:"progress" doc:"Fraction of the book read, 0 to 1"`
	Position        string     `json:"position,omitempty" maxLength:"2048" doc:"Opaque client position, e.g. an EPUB CFI"`
	CurrentPage     *int       `json:"current_page,omitempty" doc:"Current page"`
	TotalPages      *int       `json:"total_pages,omitempty" doc:"Total pages as seen by the client"`
	ChapterIndex    *int       `json:"chapter_index,omitempty" doc:"Current chapter index"`
	ScrollTop       *float64   `json:"scroll_top,omitempty" doc:"Scroll offset within the chapter"`
	ClientTimestamp *time.Time `json:"client_timestamp,omitempty" doc:"When the client recorded this position"`
	Force           bool       `json:"force,omitempty" doc:"Overwrite even if the server has newer progress"`
}

type UpdateProgressInput struct {
	Authorization string `header:"Authorization"`
	Body          UpdateProgressRequest
}

type UpdateProgressResponse struct {
	Progress  *domain.ReadingProgress `json:"progress" doc:"Stored progress record"`
	SessionID string                  `json:"session_id,omitempty" doc:"Reading session the update was attributed to"`
}

type UpdateProgressOutput struct {
	Body UpdateProgressResponse
}

type GetProgressInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookId" doc:"Book ID"`
}

type ProgressResponse struct {
	Progress *domain.ReadingProgress `json:"progress" doc:"Progress record, null if the book was never opened"`
}

type ProgressOutput struct {
	Body ProgressResponse
}

type ListRecentProgressInput struct {
	Authorization string `header:"Authorization"`
	Limit         int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum results (default 10)"`
}

type ListRecentProgressResponse struct {
	Items []domain.ProgressWithBook `json:"items" doc:"Progress records with book details"`
}

type ListRecentProgressOutput struct {
	Body ListRecentProgressResponse
}

// === Handlers ===

func (s *Server) handleUpdateProgress(ctx context.Context, input *UpdateProgressInput) (*UpdateProgressOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if err := s.allowProgressPush(userID); err != nil {
		return nil, err
	}

	body := input.Body
	res, err := s.services.Progress.UpdateProgress(ctx, userID, service.UpdateProgressRequest{
		BookID:          body.BookID,
		Progress:        &body.Progress,
		Position:        body.Position,
		CurrentPage:     body.CurrentPage,
		TotalPages:      body.TotalPages,
		ChapterIndex:    body.ChapterIndex,
		ScrollTop:       body.ScrollTop,
		ClientTimestamp: body.ClientTimestamp,
		Force:           body.Force,
	})
	if err != nil {
		return nil, toAPIError(err, s.logger, "user_id", userID, "book_id", body.BookID)
	}

	return &UpdateProgressOutput{Body: UpdateProgressResponse{Progress: res.Progress, SessionID: res.SessionID}}, nil
}

func (s *Server) handleGetProgress(ctx context.Context, input *GetProgressInput) (*ProgressOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	p, err := s.services.Progress.GetProgress(ctx, userID, input.BookID)
	if err != nil {
		return nil, toAPIError(err, s.logger, "user_id", userID, "book_id", input.BookID)
	}

	return &ProgressOutput{Body: ProgressResponse{Progress: p}}, nil
}

func (s *Server) handleListRecentProgress(ctx context.Context, input *ListRecentProgressInput) (*ListRecentProgressOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	items, err := s.services.Progress.ListRecentProgress(ctx, userID, input.Limit)
	if err != nil {
		return nil, toAPIError(err, s.logger, "user_id", userID)
	}
	if items == nil {
		items = []domain.ProgressWithBook{}
	}

	return &ListRecentProgressOutput{Body: ListRecentProgressResponse{Items: items}}, nil
}
