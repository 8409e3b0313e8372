package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"maps"
	"net"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"procoin.app/internal/persistence/r2s3"
	"procoin.app/internal/persistence/snapshot"
	"procoin.app/internal/sim/catalogs"
	"procoin.app/internal/sim/economy"
	"procoin.app/internal/sim/world"
	"procoin.app/internal/transport/observer"
	"procoin.app/internal/transport/ws"
)

type app struct {
	w         *world.World
	writer    *snapshot.Writer
	idx       runtimeIndex
	mirror    *r2s3.Mirror
	itemsPath string
	log       *log.Logger

	enableAdmin bool
	wsOpts      ws.Options
}

func (a *app) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", a.handleMetrics)

	if a.enableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", a.loopbackOnly("", a.handleState))
		mux.HandleFunc("/admin/v1/save", a.loopbackOnly(http.MethodPost, a.handleSave))
		mux.HandleFunc("/admin/v1/restock", a.loopbackOnly(http.MethodPost, a.handleRestock))
		mux.HandleFunc("/admin/v1/prize", a.loopbackOnly(http.MethodPost, a.handleAward(false)))
		mux.HandleFunc("/admin/v1/curse", a.loopbackOnly(http.MethodPost, a.handleAward(true)))
		mux.HandleFunc("/admin/v1/cash", a.loopbackOnly(http.MethodPost, a.handleCash))
		mux.HandleFunc("/admin/v1/reload", a.loopbackOnly(http.MethodPost, a.handleReload))

		obs := observer.NewServer(a.w, a.log)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obs.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obs.WSHandler())
	} else {
		a.log.Printf("admin endpoints disabled (PROCOIN_ENABLE_ADMIN_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(a.w, a.log, a.wsOpts).Handler())
	return mux
}

func (a *app) loopbackOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if method != "" && r.Method != method {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeErr(rw http.ResponseWriter, err error) {
	status := http.StatusServiceUnavailable
	var e *economy.Error
	if errors.As(err, &e) {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(rw, status, map[string]any{"ok": false, "code": economy.CodeOf(err), "error": err.Error()})
}

func (a *app) handleState(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, struct {
		Metrics world.WorldMetrics `json:"metrics"`
		Saves   snapshot.Stats     `json:"saves"`
	}{
		Metrics: a.w.Metrics(),
		Saves:   a.writer.Stats(),
	})
}

func (a *app) handleSave(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	blocking := r.URL.Query().Get("blocking") == "1"
	var (
		users int
		err   error
	)
	if blocking {
		users, err = a.w.SaveBlocking(ctx)
	} else {
		users, err = a.w.RequestSave(ctx)
	}
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "users": users, "blocking": blocking})
}

func (a *app) handleRestock(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	var listing string
	err := a.w.Do(ctx, func(w *world.World) error {
		w.Restock()
		listing = w.ShowStore()
		return nil
	})
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "store": listing})
}

func (a *app) handleAward(curse bool) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.URL.Query().Get("user"))
		if user == "" {
			http.Error(rw, "missing user", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		var it *catalogs.Item
		err := a.w.Do(ctx, func(w *world.World) error {
			var err error
			if curse {
				it, err = w.AwardCurse(user)
			} else {
				it, err = w.AwardPrize(user)
			}
			return err
		})
		if err != nil {
			writeErr(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "user": user, "item": it.ID, "display": it.PrefixedName()})
	}
}

func (a *app) handleCash(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := strings.TrimSpace(q.Get("user"))
	amount, err := strconv.ParseInt(q.Get("amount"), 10, 64)
	if user == "" || err != nil || amount == 0 {
		http.Error(rw, "need user and non-zero amount", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	var balance int64
	err = a.w.Do(ctx, func(w *world.World) error {
		var err error
		if amount > 0 {
			err = w.AddCash(user, amount)
		} else {
			err = w.RemoveCash(user, -amount)
		}
		if u, ok := w.Ledger().Find(user); ok {
			balance = u.Balance
		}
		return err
	})
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "user": user, "balance": balance})
}

func (a *app) handleReload(rw http.ResponseWriter, r *http.Request) {
	raw, err := os.ReadFile(a.itemsPath)
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	cat, err := catalogs.Parse(raw)
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	err = a.w.Do(ctx, func(w *world.World) error {
		w.ReloadCatalog(cat)
		return nil
	})
	if err != nil {
		writeErr(rw, err)
		return
	}
	if a.idx != nil {
		if err := a.idx.UpsertCatalog(ctx, raw, cat, a.w.Tuning()); err != nil {
			a.log.Printf("index backend: upsert catalog: %v", err)
		}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "items": cat.Len(), "digest": cat.Digest})
}

func (a *app) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	m := a.w.Metrics()

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP procoin_users Accounts in the ledger.\n")
	fmt.Fprintf(rw, "# TYPE procoin_users gauge\n")
	fmt.Fprintf(rw, "procoin_users %d\n", m.Users)

	fmt.Fprintf(rw, "# HELP procoin_money_supply Sum of all balances.\n")
	fmt.Fprintf(rw, "# TYPE procoin_money_supply gauge\n")
	fmt.Fprintf(rw, "procoin_money_supply %d\n", m.MoneySupply)

	fmt.Fprintf(rw, "# HELP procoin_store_entries Items currently in stock.\n")
	fmt.Fprintf(rw, "# TYPE procoin_store_entries gauge\n")
	fmt.Fprintf(rw, "procoin_store_entries %d\n", m.StoreEntries)

	fmt.Fprintf(rw, "# HELP procoin_store_last_restock_unix Unix time of the last restock.\n")
	fmt.Fprintf(rw, "# TYPE procoin_store_last_restock_unix gauge\n")
	fmt.Fprintf(rw, "procoin_store_last_restock_unix %d\n", m.LastRestock.Unix())

	fmt.Fprintf(rw, "# HELP procoin_catalog_items Item definitions loaded.\n")
	fmt.Fprintf(rw, "# TYPE procoin_catalog_items gauge\n")
	fmt.Fprintf(rw, "procoin_catalog_items %d\n", m.CatalogItems)

	fmt.Fprintf(rw, "# HELP procoin_commands_total Commands executed.\n")
	fmt.Fprintf(rw, "# TYPE procoin_commands_total counter\n")
	fmt.Fprintf(rw, "procoin_commands_total %d\n", m.Commands)

	fmt.Fprintf(rw, "# HELP procoin_command_failures_total Failed commands by code.\n")
	fmt.Fprintf(rw, "# TYPE procoin_command_failures_total counter\n")
	for _, code := range slices.Sorted(maps.Keys(m.Failures)) {
		fmt.Fprintf(rw, "procoin_command_failures_total{code=%q} %d\n", code, m.Failures[code])
	}

	fmt.Fprintf(rw, "# HELP procoin_restocks_total Store regenerations.\n")
	fmt.Fprintf(rw, "# TYPE procoin_restocks_total counter\n")
	fmt.Fprintf(rw, "procoin_restocks_total %d\n", m.Restocks)

	fmt.Fprintf(rw, "# HELP procoin_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE procoin_queue_depth gauge\n")
	fmt.Fprintf(rw, "procoin_queue_depth{queue=%q} %d\n", "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(rw, "procoin_queue_depth{queue=%q} %d\n", "do", m.QueueDepths.Do)
	fmt.Fprintf(rw, "procoin_queue_depth{queue=%q} %d\n", "save", m.QueueDepths.Save)

	s := a.writer.Stats()
	fmt.Fprintf(rw, "# HELP procoin_saves_total Ledger writes by result.\n")
	fmt.Fprintf(rw, "# TYPE procoin_saves_total counter\n")
	fmt.Fprintf(rw, "procoin_saves_total{result=%q} %d\n", "ok", s.Saves)
	fmt.Fprintf(rw, "procoin_saves_total{result=%q} %d\n", "failed", s.Failures)
	fmt.Fprintf(rw, "procoin_saves_total{result=%q} %d\n", "superseded", s.Dropped)

	fmt.Fprintf(rw, "# HELP procoin_last_save_unix Unix time of the last successful ledger write.\n")
	fmt.Fprintf(rw, "# TYPE procoin_last_save_unix gauge\n")
	fmt.Fprintf(rw, "procoin_last_save_unix %d\n", unixOrZero(s.LastAt))

	if a.idx != nil {
		is := a.idx.Stats()
		fmt.Fprintf(rw, "# HELP procoin_index_saves_total Saves handled by the index by result.\n")
		fmt.Fprintf(rw, "# TYPE procoin_index_saves_total counter\n")
		fmt.Fprintf(rw, "procoin_index_saves_total{result=%q} %d\n", "indexed", is.Indexed)
		fmt.Fprintf(rw, "procoin_index_saves_total{result=%q} %d\n", "dropped", is.Dropped)
		fmt.Fprintf(rw, "procoin_index_saves_total{result=%q} %d\n", "failed", is.Failed)
		fmt.Fprintf(rw, "# HELP procoin_index_queue_depth Index queue depth.\n")
		fmt.Fprintf(rw, "# TYPE procoin_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "procoin_index_queue_depth %d\n", is.QueueDepth)
	}

	if a.mirror != nil {
		ms := a.mirror.Stats()
		fmt.Fprintf(rw, "# HELP procoin_r2_uploads_total Archive uploads by result.\n")
		fmt.Fprintf(rw, "# TYPE procoin_r2_uploads_total counter\n")
		fmt.Fprintf(rw, "procoin_r2_uploads_total{result=%q} %d\n", "ok", ms.Uploaded)
		fmt.Fprintf(rw, "procoin_r2_uploads_total{result=%q} %d\n", "failed", ms.Failed)
		fmt.Fprintf(rw, "procoin_r2_uploads_total{result=%q} %d\n", "dropped", ms.Dropped)
		fmt.Fprintf(rw, "# HELP procoin_r2_queue_depth Archive upload queue depth.\n")
		fmt.Fprintf(rw, "# TYPE procoin_r2_queue_depth gauge\n")
		fmt.Fprintf(rw, "procoin_r2_queue_depth %d\n", ms.QueueDepth)
		fmt.Fprintf(rw, "procoin_r2_last_success_unix %d\n", unixOrZero(ms.LastSuccess))
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
