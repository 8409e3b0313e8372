package world

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"procoin.app/internal/persistence/snapshot"
	"procoin.app/internal/sim/catalogs"
	"procoin.app/internal/sim/economy"
	"procoin.app/internal/sim/tuning"
)

// Saver persists ledger documents off the loop. snapshot.Writer implements it.
type Saver interface {
	Save(doc snapshot.LedgerV1) uint64
	Wait(ctx context.Context, gen uint64) error
	SaveBlocking(doc snapshot.LedgerV1) error
}

type Deps struct {
	Logger *log.Logger
	Rand   economy.Rand
	Now    func() time.Time
	Saver  Saver
}

// World is the single authoritative economy. All state is owned by the Run
// goroutine; other goroutines reach it through Exec, Do, RequestSave and
// SaveBlocking. The exported economy methods (Buy, Sell, ...) touch state
// directly and must only be called from the loop (or before Run starts).
type World struct {
	cfg tuning.Tuning
	log *log.Logger
	rng economy.Rand
	now func() time.Time

	cat    *catalogs.Catalog
	store  *economy.Store
	merges *economy.Merges
	ledger *economy.Ledger
	saver  Saver

	inbox   chan cmdReq
	do      chan doReq
	saveReq chan saveReq

	stop     chan struct{}
	stopOnce sync.Once

	stats   loopStats
	metrics atomic.Value // WorldMetrics
}

func New(cfg tuning.Tuning, cat *catalogs.Catalog, deps Deps) *World {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Rand == nil {
		deps.Rand = economy.NewRand()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	w := &World{
		cfg:     cfg,
		log:     deps.Logger,
		rng:     deps.Rand,
		now:     deps.Now,
		cat:     cat,
		saver:   deps.Saver,
		inbox:   make(chan cmdReq, 256),
		do:      make(chan doReq, 16),
		saveReq: make(chan saveReq, 4),
		stop:    make(chan struct{}),
	}
	w.store = economy.NewStore(cat, economy.StoreConfig{
		OrdinarySlots: cfg.Store.OrdinarySlots,
		BigSlots:      cfg.Store.BigSlots,
		BigItemCost:   cfg.Store.BigItemCost,
	}, w.rng)
	w.merges = economy.NewMerges(cat)
	w.ledger = economy.NewLedger(cfg.StartingBalance, w.log)
	w.stats.failures = map[string]uint64{}
	w.Restock()
	return w
}

func (w *World) Catalog() *catalogs.Catalog { return w.cat }
func (w *World) Store() *economy.Store      { return w.store }
func (w *World) Ledger() *economy.Ledger    { return w.ledger }
func (w *World) Merges() *economy.Merges    { return w.merges }
func (w *World) Tuning() tuning.Tuning      { return w.cfg }

// Restock regenerates the store.
func (w *World) Restock() {
	now := w.now()
	w.store.Regenerate(now)
	w.stats.restocks++
	w.publishMetrics()
	w.log.Printf("store restocked: %d entries", w.store.Len())
}

// ReloadCatalog swaps in a new catalog: recipes are rebuilt, store pools
// repartitioned and every user's boost recomputed.
func (w *World) ReloadCatalog(cat *catalogs.Catalog) {
	w.cat = cat
	w.store.Repartition(cat)
	w.merges.Rebuild(cat)
	w.ledger.RecalcAll(cat)
	w.publishMetrics()
	w.log.Printf("catalog reloaded: %d items, %d recipes, digest %s", cat.Len(), w.merges.Len(), cat.Digest)
}
