package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/glabrego/tideline/internal/cache"
	"github.com/glabrego/tideline/internal/config"
	"github.com/glabrego/tideline/internal/engine"
	"github.com/glabrego/tideline/internal/fetch"
	"github.com/glabrego/tideline/internal/mastodon"
)

func main() {
	var (
		server   = flag.String("server", "", "base URL of the Mastodon-compatible server")
		token    = flag.String("token", "", "OAuth bearer token")
		account  = flag.String("account", "", "account key used to scope the local cache")
		dbPath   = flag.String("db", "tideline.db", "path to the SQLite cache")
		timeline = flag.String("timeline", "home", "timeline to follow: home, local, federated, resume, or a #hashtag")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	if *server == "" || *token == "" {
		logger.Fatal("both -server and -token are required")
	}
	if *account == "" {
		*account = *server
	}

	store, err := cache.NewCache(*dbPath)
	if err != nil {
		logger.Fatal("cache init failed", "error", err)
	}
	defer store.Close()

	initCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := store.Init(initCtx); err != nil {
		logger.Fatal("cache schema failed", "path", *dbPath, "error", err)
	}

	client := mastodon.NewClient(*server, *token, nil)

	e := engine.New(engine.Options{
		Pager:      fetch.NewPager(client, logger),
		Cache:      store,
		Markers:    client,
		Streams:    mastodon.NewStreamClient(*server, *token, logger),
		Config:     config.Defaults(),
		Logger:     logger,
		AccountKey: *account,
		OnChange: func() {
			// Re-render hook for an embedding UI; here we just summarize.
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := e.SetTimeline(ctx, parseTimeline(*timeline)); err != nil {
		logger.Fatal("initial load failed", "timeline", *timeline, "error", err)
	}

	snap := e.Snapshot()
	logger.Info("timeline loaded", "entries", len(snap.Entries), "pending", e.PendingCount())
	for _, entry := range snap.Entries {
		if entry.IsGap() {
			fmt.Printf("  ~~~ gap (%s, %s) ~~~\n", entry.Gap.SinceID, entry.Gap.MaxID)
			continue
		}
		fmt.Printf("  %s  @%s\n", entry.Status.ID, entry.Status.Account.Acct)
	}

	logger.Info("following live updates, ctrl-c to stop")
	if err := e.Start(ctx); err != nil {
		logger.Fatal("engine stopped", "error", err)
	}
}

func parseTimeline(name string) mastodon.Timeline {
	switch name {
	case "home":
		return mastodon.HomeTimeline()
	case "local":
		return mastodon.LocalTimeline()
	case "federated":
		return mastodon.FederatedTimeline()
	case "resume":
		return mastodon.ResumeTimeline()
	default:
		if len(name) > 1 && name[0] == '#' {
			return mastodon.HashtagTimeline(name[1:])
		}
		return mastodon.HomeTimeline()
	}
}
