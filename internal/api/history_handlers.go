package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/reading-server/internal/domain"
)

func (s *Server) registerHistoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getReadingHistory",
		Method:      http.MethodGet,
		Path:        "/api/v1/history/{bookId}",
		Summary:     "Get reading history",
		Description: "Returns the lifetime reading rollup for a book with its sessions",
		Tags:        []string{"History"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetHistory)

	huma.Register(s.api, huma.Operation{
		OperationID: "listReadingHistory",
		Method:      http.MethodGet,
		Path:        "/api/v1/history",
		Summary:     "List reading history",
		Description: "Returns reading rollups ordered by last read, most recent first",
		Tags:        []string{"History"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListHistory)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteReadingHistory",
		Method:        http.MethodDelete,
		Path:          "/api/v1/history/{bookId}",
		Summary:       "Delete reading history",
		Description:   "Removes the reading history, its sessions and the progress record for a book",
		Tags:          []string{"History"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteHistory)
}

// === DTOs ===

type BookHistoryInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookId" doc:"Book ID"`
}

type HistoryResponse struct {
	History  *domain.ReadingHistory   `json:"history" doc:"History record, null if the book was never read"`
	Sessions []*domain.ReadingSession `json:"sessions" doc:"Reading sessions in start order"`
}

type HistoryOutput struct {
	Body HistoryResponse
}

type ListHistoryInput struct {
	Authorization string `header:"Authorization"`
	Limit         int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum results (default 10)"`
}

type ListHistoryResponse struct {
	Items []*domain.ReadingHistory `json:"items" doc:"History records"`
}

type ListHistoryOutput struct {
	Body ListHistoryResponse
}

// === Handlers ===

func (s *Server) handleGetHistory(ctx context.Context, input *BookHistoryInput) (*HistoryOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	view, err := s.services.History.GetHistory(ctx, userID, input.BookID)
	if err != nil {
		return nil, toAPIError(err, s.logger, "user_id", userID, "book_id", input.BookID)
	}

	return &HistoryOutput{Body: HistoryResponse{History: view.History, Sessions: view.Sessions}}, nil
}

func (s *Server) handleListHistory(ctx context.Context, input *ListHistoryInput) (*ListHistoryOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	items, err := s.services.History.ListHistory(ctx, userID, input.Limit)
	if err != nil {
		return nil, toAPIError(err, s.logger, "user_id", userID)
	}
	if items == nil {
		items = []*domain.ReadingHistory{}
	}

	return &ListHistoryOutput{Body: ListHistoryResponse{Items: items}}, nil
}

func (s *Server) handleDeleteHistory(ctx context.Context, input *BookHistoryInput) (*struct{}, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.History.DeleteHistory(ctx, userID, input.BookID); err != nil {
		return nil, toAPIError(err, s.logger, "user_id", userID, "book_id", input.BookID)
	}

	return nil, nil
}
