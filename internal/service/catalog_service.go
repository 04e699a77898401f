package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/listenupapp/reading-server/internal/clock"
	"github.com/listenupapp/reading-server/internal/domain"
	domainerrors "github.com/listenupapp/reading-server/internal/errors"
	"github.com/listenupapp/reading-server/internal/id"
	"github.com/listenupapp/reading-server/internal/normalize"
	"github.com/listenupapp/reading-server/internal/store"
	"github.com/listenupapp/reading-server/internal/validation"
)

// CreateUserRequest registers a reader.
type CreateUserRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=200"`
}

// CreateBookRequest registers a book.
type CreateBookRequest struct {
	Title      string `json:"title" validate:"required,max=500"`
	Author     string `json:"author,omitempty" validate:"max=500"`
	TotalPages *int   `json:"total_pages,omitempty" validate:"omitempty,gte=1"`
}

// CatalogService owns the users and books that reading activity refers to.
type CatalogService struct {
	store     store.Store
	clock     clock.Clock
	validator *validation.Validator
	logger    *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(st store.Store, clk clock.Clock, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:     st,
		clock:     clk,
		validator: validation.New(),
		logger:    logger,
	}
}

// CreateUser registers a new user. The display name is normalized first,
// so whitespace-only names fail validation.
func (s *CatalogService) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	req.DisplayName = normalize.Text(req.DisplayName)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}

	u := &domain.User{ID: userID, DisplayName: req.DisplayName, CreatedAt: s.clock.Now()}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created", "user_id", u.ID)
	return u, nil
}

// CreateBook registers a new book.
func (s *CatalogService) CreateBook(ctx context.Context, req CreateBookRequest) (*domain.Book, error) {
	req.Title = normalize.Text(req.Title)
	req.Author = normalize.Text(req.Author)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, fmt.Errorf("generate book id: %w", err)
	}

	b := &domain.Book{
		ID:         bookID,
		Title:      req.Title,
		Author:     req.Author,
		TotalPages: req.TotalPages,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.store.CreateBook(ctx, b); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.logger.Info("book created", "book_id", b.ID, "title", b.Title)
	return b, nil
}

// GetBook returns a book by id.
func (s *CatalogService) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	b, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("book %s not found", bookID)
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

// GetUser returns a user by id.
func (s *CatalogService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("user %s not found", userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
