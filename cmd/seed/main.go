// Package main creates a reader and a book and prints an access token for
// the reader, so a fresh database can be exercised from a client.
//
// Usage:
//
//	DATA_PATH=~/reading go run ./cmd/seed -name Ada -title Middlemarch
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/listenupapp/reading-server/internal/auth"
	"github.com/listenupapp/reading-server/internal/clock"
	"github.com/listenupapp/reading-server/internal/config"
	"github.com/listenupapp/reading-server/internal/service"
	"github.com/listenupapp/reading-server/internal/store/sqlite"
)

func main() {
	dataPath := flag.String("data-path", os.Getenv("DATA_PATH"), "Directory holding the database and auth key")
	name := flag.String("name", "Test Reader", "Display name of the reader")
	title := flag.String("title", "Middlemarch", "Title of the book")
	author := flag.String("author", "George Eliot", "Author of the book")
	pages := flag.Int("pages", 0, "Page count of the book, 0 if unknown")
	ttl := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed access token")
	flag.Parse()

	if *dataPath == "" {
		*dataPath = os.ExpandEnv("$HOME/reading")
	}
	if err := os.MkdirAll(*dataPath, 0o755); err != nil {
		log.Fatalf("Failed to create data path: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	db := config.DatabaseConfig{DataPath: *dataPath}

	st, err := sqlite.Open(db.DBFile(), logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	clk := clock.Real{}
	catalog := service.NewCatalogService(st, clk, logger)

	user, err := catalog.CreateUser(ctx, service.CreateUserRequest{DisplayName: *name})
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	req := service.CreateBookRequest{Title: *title, Author: *author}
	if *pages > 0 {
		req.TotalPages = pages
	}
	book, err := catalog.CreateBook(ctx, req)
	if err != nil {
		log.Fatalf("Failed to create book: %v", err)
	}

	key, err := auth.LoadOrGenerateKey(*dataPath)
	if err != nil {
		log.Fatalf("Failed to load auth key: %v", err)
	}
	tokens, err := auth.NewTokenService(key, *ttl, clk)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}
	token, expires, err := tokens.GenerateAccessToken(user.ID)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Printf("user_id:  %s\n", user.ID)
	fmt.Printf("book_id:  %s\n", book.ID)
	fmt.Printf("token:    %s\n", token)
	fmt.Printf("expires:  %s\n", expires.Format(time.RFC3339))
}
