package service

import (
	"context"
	"fmt"

	domainerrors "github.com/listenupapp/reading-server/internal/errors"
	"github.com/listenupapp/reading-server/internal/store"
)

// resolveCurrentProgress is the one place that decides "how far is the
// reader": the progress record, else the history high-water mark, else fallback.
func resolveCurrentProgress(ctx context.Context, tx store.Tx, userID, bookID string, fallback float64) (float64, error) {
	p, err := tx.GetProgress(ctx, userID, bookID)
	if err != nil {
		return 0, fmt.Errorf("get progress: %w", err)
	}
	if p != nil {
		return p.Progress, nil
	}

	h, err := tx.GetHistory(ctx, userID, bookID)
	if err != nil {
		return 0, fmt.Errorf("get history: %w", err)
	}
	if h != nil {
		return h.TotalProgress, nil
	}

	return fallback, nil
}

// ensureReaderAndBook returns NOT_FOUND when either side of the pair is unknown.
func ensureReaderAndBook(ctx context.Context, tx store.Tx, userID, bookID string) error {
	ok, err := tx.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if !ok {
		return domainerrors.NotFoundf("user %s not found", userID)
	}

	ok, err = tx.BookExists(ctx, bookID)
	if err != nil {
		return fmt.Errorf("check book: %w", err)
	}
	if !ok {
		return domainerrors.NotFoundf("book %s not found", bookID)
	}
	return nil
}
