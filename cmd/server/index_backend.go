package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"procoin.app/internal/persistence/indexdb"
	"procoin.app/internal/persistence/snapshot"
	"procoin.app/internal/sim/catalogs"
	"procoin.app/internal/sim/tuning"
)

type runtimeIndex interface {
	Close() error
	RecordSave(info snapshot.SaveInfo)
	UpsertCatalog(ctx context.Context, raw []byte, cat *catalogs.Catalog, tune tuning.Tuning) error
	Stats() indexdb.Stats
}

func openRuntimeIndex(dataDir string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("PROCOIN_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(dataDir, "index", "procoin.sqlite")
		idx, err := indexdb.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		logger.Printf("index backend: sqlite %s", dbPath)
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported PROCOIN_INDEX_BACKEND=%q", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
