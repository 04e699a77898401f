// Package main prints a reader's progress, histories and sessions.
//
// Usage:
//
//	DATA_PATH=~/reading go run ./cmd/dbinspect -user user-abc
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/listenupapp/reading-server/internal/config"
	"github.com/listenupapp/reading-server/internal/store/sqlite"
)

func main() {
	dataPath := flag.String("data-path", os.Getenv("DATA_PATH"), "Directory holding the database")
	userID := flag.String("user", "", "User ID to inspect")
	limit := flag.Int("limit", 100, "Maximum books to list")
	flag.Parse()

	if *userID == "" {
		log.Fatal("-user is required")
	}
	if *dataPath == "" {
		*dataPath = os.ExpandEnv("$HOME/reading")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	db := config.DatabaseConfig{DataPath: *dataPath}

	st, err := sqlite.Open(db.DBFile(), logger)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	fmt.Println("=== Progress ===")
	progress, err := st.ListRecentProgress(ctx, *userID, *limit)
	if err != nil {
		log.Fatalf("Failed to list progress: %v", err)
	}
	for _, p := range progress {
		fmt.Printf("  %-24s %-30q %5.1f%%  last read %s\n",
			p.BookID, p.Title, p.Progress*100, p.LastReadAt.Format(time.RFC3339))
	}

	fmt.Println()
	fmt.Println("=== History ===")
	histories, err := st.ListHistory(ctx, *userID, *limit)
	if err != nil {
		log.Fatalf("Failed to list history: %v", err)
	}
	for _, h := range histories {
		fmt.Printf("  %s  book=%s  total=%s  reads=%d  furthest=%.1f%%\n",
			h.ID, h.BookID, time.Duration(h.TotalReadingTime)*time.Second, h.ReadCount, h.TotalProgress*100)

		sessions, err := st.ListSessions(ctx, h.ID)
		if err != nil {
			log.Printf("    failed to list sessions: %v", err)
			continue
		}
		for _, s := range sessions {
			state := "open"
			if s.EndTime != nil {
				state = "closed " + s.EndTime.Format(time.RFC3339)
			}
			fmt.Printf("    %s  start=%s  %s  duration=%s\n",
				s.ID, s.StartTime.Format(time.RFC3339), state, time.Duration(s.Duration)*time.Second)
		}
	}
}
