package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"inkroom/collab/internal/archive"
	"inkroom/collab/internal/autosave"
	"inkroom/collab/internal/changes"
	"inkroom/collab/internal/config"
	"inkroom/collab/internal/editor"
	"inkroom/collab/internal/presence"
	"inkroom/collab/internal/registry"
	"inkroom/collab/internal/room"
	"inkroom/collab/internal/search"
	"inkroom/collab/internal/store"
	"inkroom/collab/internal/util"
	"inkroom/collab/internal/versions"
)

const localUserColor = "#ffb61e"

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("parse redis url: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}

	reg := registry.NewWithClient(rdb, util.NewSessionID())
	if err := reg.RegisterSelf(ctx); err != nil {
		log.Fatalf("register session: %v", err)
	}

	displayName, err := reg.DisplayName(ctx)
	if err != nil {
		log.Fatalf("display name: %v", err)
	}
	log.Printf("collabd: session %s as %s", reg.SessionID(), displayName)

	svc := versions.NewService(dataStore, rdb)
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		svc.SetIndexer(meiliClient)
	}
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		archiver, err := archive.NewMinio(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Printf("WARNING: archive disabled: %v", err)
		} else {
			svc.SetArchiver(archiver)
		}
	}

	hub := room.NewHub()
	conn, err := hub.Connect(ctx)
	if err != nil {
		log.Fatalf("connect room: %v", err)
	}
	defer conn.Close()

	awareness := conn.Awareness()
	awareness.SetLocalState(room.UserState{Name: displayName, Color: localUserColor})

	ed := editor.New()
	binding := editor.Bind(ed, conn.Text())
	defer binding.Destroy()

	detector := changes.NewDetector(ed.PlainText, cfg.ChangeDebounce)
	defer detector.Stop()
	cancelEdits := ed.OnTextChange(detector.NoteEdit)
	defer cancelEdits()

	loadInitialContent(ctx, svc, cfg.NovelID, ed, conn.Text(), detector)
	ed.MarkReady()

	directory := presence.NewDirectory(awareness)
	defer directory.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	coordinator := autosave.New(autosave.Options{
		NovelID:   cfg.NovelID,
		LocalName: displayName,
		Interval:  cfg.AutosaveInterval,
		Editor:    ed,
		Presence:  directory,
		Sessions:  reg,
		Detector:  detector,
		Saver:     svc,
	})
	go coordinator.Run(runCtx)

	go refreshVersions(runCtx, svc, cfg.NovelID, cfg.VersionPollInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancel()
	awareness.ClearLocalState()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := reg.DeregisterSelf(shutdownCtx); err != nil {
		log.Printf("deregister session: %v", err)
	}
}

// loadInitialContent seeds the shared document from the persisted manuscript
// when the room text is still empty, and records the baseline either way.
func loadInitialContent(ctx context.Context, svc *versions.Service, novelID string, ed *editor.Editor, text room.Text, detector *changes.Detector) {
	novel, err := svc.GetNovel(ctx, novelID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("collabd: load novel %s: %v", novelID, err)
		}
		return
	}
	if novel.FinalManuscript == "" {
		return
	}
	if text.Len() > 0 {
		// Peers already seeded the room; their live content wins.
		return
	}

	<-ed.SetContents(editor.ParseContent([]byte(novel.FinalManuscript)))
	detector.SetBaseline(ed.PlainText())
	log.Printf("collabd: loaded manuscript for %s (%d words)", novelID, versions.WordCount(ed.PlainText()))
}

// refreshVersions re-lists the history on a timer and on push notifications.
// Both triggers stay active: push delivery is not guaranteed across every
// transport failure mode.
func refreshVersions(ctx context.Context, svc *versions.Service, novelID string, pollInterval time.Duration) {
	sub := svc.Subscribe(ctx, novelID)
	defer sub.Close()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case _, ok := <-sub.Channel():
			if !ok {
				return
			}
		}
		items := svc.List(ctx, novelID)
		log.Printf("collabd: %d versions of %s", len(items), novelID)
	}
}
