// cmd/tools/keyctl/main.go
//
// keyctl is the operator's command line for the licensing database:
// issuing comp keys, inspecting licenses, and poking at build history
// without going through the HTTP surface.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"builder-licensing/internal/common/config"
	"builder-licensing/internal/common/database"
	"builder-licensing/internal/common/logger"
	"builder-licensing/internal/models"
	"builder-licensing/internal/store"
)

func main() {
	issueCmd := flag.NewFlagSet("issue", flag.ExitOnError)
	showCmd := flag.NewFlagSet("show", flag.ExitOnError)
	statsCmd := flag.NewFlagSet("stats", flag.ExitOnError)
	historyCmd := flag.NewFlagSet("history", flag.ExitOnError)

	// Issue command flags
	email := issueCmd.String("email", "", "Holder email")
	name := issueCmd.String("name", "", "Holder name")
	tier := issueCmd.String("tier", models.TierPro, "Tier (starter, pro, master)")
	days := issueCmd.Int("days", 365, "License term in days")
	notes := issueCmd.String("notes", "manual issue via keyctl", "Notes")

	// Show command flags
	showKey := showCmd.String("key", "", "License key")

	// History command flags
	historyKey := historyCmd.String("key", "", "License key")
	historyLimit := historyCmd.Int("limit", 20, "Max entries to list")
	historyAdd := historyCmd.String("add", "", "Save a new entry instead of listing")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	log := logger.NewNoOpLogger()
	cfg, err := config.Load()
	if err != nil {
		fail("config load failed: %v", err)
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		fail("postgres connection failed: %v", err)
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pg.Ping(ctx); err != nil {
		fail("postgres unreachable: %v", err)
	}

	licenses := store.NewLicenseStore(pg.DB, log)
	queue := store.NewQueue(pg.DB, log)
	history := store.NewHistoryStore(pg.DB, log)

	switch os.Args[1] {
	case "issue":
		issueCmd.Parse(os.Args[2:])
		if *email == "" || !models.ValidTier(*tier) || *days < 1 {
			fmt.Println("Error: email is required, tier must be valid, days must be positive.")
			issueCmd.Usage()
			os.Exit(1)
		}
		lic, created, err := licenses.Issue(ctx, store.IssueParams{
			Email: *email,
			Name:  *name,
			Tier:  *tier,
			Days:  *days,
			Notes: *notes,
			Now:   time.Now().UTC(),
		})
		if err != nil {
			fail("issue failed: %v", err)
		}
		if !created {
			fmt.Println("License already existed:")
		}
		printJSON(lic)

	case "show":
		showCmd.Parse(os.Args[2:])
		if *showKey == "" {
			fmt.Println("Error: key is required.")
			showCmd.Usage()
			os.Exit(1)
		}
		lic, err := licenses.GetByKey(ctx, *showKey)
		if err != nil {
			fail("lookup failed: %v", err)
		}
		if lic == nil {
			fail("no license with key %s", *showKey)
		}
		printJSON(lic)

	case "stats":
		statsCmd.Parse(os.Args[2:])
		licStats, err := licenses.Stats(ctx)
		if err != nil {
			fail("license stats failed: %v", err)
		}
		queueStats, err := queue.Stats(ctx)
		if err != nil {
			fail("queue stats failed: %v", err)
		}
		printJSON(map[string]interface{}{
			"licenses": licStats,
			"queue":    queueStats,
		})

	case "history":
		historyCmd.Parse(os.Args[2:])
		if *historyKey == "" {
			fmt.Println("Error: key is required.")
			historyCmd.Usage()
			os.Exit(1)
		}
		if *historyAdd != "" {
			if err := history.Save(ctx, *historyKey, *historyAdd, time.Now().UTC()); err != nil {
				fail("history save failed: %v", err)
			}
			fmt.Println("Saved.")
			return
		}
		entries, err := history.List(ctx, *historyKey, *historyLimit)
		if err != nil {
			fail("history list failed: %v", err)
		}
		if len(entries) == 0 {
			fmt.Println("No history.")
			return
		}
		printJSON(entries)

	default:
		help()
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func help() {
	fmt.Println(`keyctl <command> [flags]

Commands:
  issue    Issue a license directly (comp keys, support cases)
  show     Print one license as JSON
  stats    License and queue counts
  history  List build history for a key, or -add to save an entry`)
}
