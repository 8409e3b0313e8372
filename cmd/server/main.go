package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"procoin.app/internal/persistence/r2s3"
	"procoin.app/internal/persistence/snapshot"
	"procoin.app/internal/sim/catalogs"
	"procoin.app/internal/sim/tuning"
	"procoin.app/internal/sim/world"
	"procoin.app/internal/transport/ws"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configDir   = flag.String("configs", "./configs", "config directory (items.json, tuning.yaml)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite read index")
		archiveKeep = flag.Int("archive_keep", 288, "compressed ledger archives to keep (0 = keep all)")
		wsToken     = flag.String("ws_token", "", "shared secret for HELLO auth.token (or set PROCOIN_WS_TOKEN)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	itemsPath := filepath.Join(*configDir, "items.json")
	rawItems, err := os.ReadFile(itemsPath)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}
	cat, err := catalogs.Parse(rawItems)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}
	logger.Printf("catalog: %d items digest=%s", cat.Len(), cat.Digest)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune, err = tuning.Load("")
	}
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if _, ok := cat.Lookup(tune.Curse.ScrollItemID); !ok {
		logger.Printf("WARN: curse.scroll_item_id %q is not in the catalog; REMOVE_CURSE will always fail", tune.Curse.ScrollItemID)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	// Optional read-model index; the ledger file stays the source of truth.
	idx, err := openRuntimeIndex(*dataDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalog(context.Background(), rawItems, cat, tune); err != nil {
			logger.Printf("index backend: upsert catalog: %v", err)
		}
	}

	// Optional off-site copies of ledger archives.
	r2cfg, err := r2s3.ConfigFromEnv()
	if err != nil {
		logger.Fatalf("r2 config: %v", err)
	}
	var mirror *r2s3.Mirror
	if r2cfg.Enabled() {
		client, err := r2s3.New(r2cfg)
		if err != nil {
			logger.Fatalf("r2 mirror: %v", err)
		}
		mirror = r2s3.NewMirror(client, *dataDir, r2cfg, logger)
		logger.Printf("r2 mirror enabled bucket=%s prefix=%s", r2cfg.Bucket, r2cfg.Prefix)
	}

	wopts := snapshot.WriterOptions{
		ArchiveDir:  filepath.Join(*dataDir, "snapshots"),
		ArchiveKeep: *archiveKeep,
		Logger:      logger,
	}
	if idx != nil || mirror != nil {
		wopts.OnSaved = func(info snapshot.SaveInfo) {
			if idx != nil {
				idx.RecordSave(info)
			}
			if mirror != nil {
				mirror.OnSaved(info)
			}
		}
	}
	ledgerPath := filepath.Join(*dataDir, "users.json")
	writer := snapshot.NewWriter(ledgerPath, wopts)

	doc, err := snapshot.ReadLedger(ledgerPath)
	if err != nil {
		logger.Fatalf("read ledger: %v", err)
	}
	w := world.New(tune, cat, world.Deps{Logger: logger, Saver: writer})
	w.ImportLedger(doc)

	ctx, cancel := signalContext()
	defer cancel()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	token := strings.TrimSpace(*wsToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("PROCOIN_WS_TOKEN"))
	}
	a := &app{
		w:           w,
		writer:      writer,
		idx:         idx,
		mirror:      mirror,
		itemsPath:   itemsPath,
		log:         logger,
		enableAdmin: envBool("PROCOIN_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		wsOpts:      ws.Options{Token: token},
	}
	mux := a.mux()
	if envBool("PROCOIN_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (PROCOIN_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
		cancel()
	}

	// The world saves the ledger on its way out; wait for that before closing the writer.
	<-worldDone
	if err := writer.Close(); err != nil {
		logger.Printf("snapshot writer: %v", err)
	}
	mirror.Close()
	logger.Printf("shutdown complete")
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
