package r2s3

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"procoin.app/internal/persistence/snapshot"
)

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	Uploaded      uint64
	Failed        uint64
	Dropped       uint64
	LastSuccess   time.Time
}

type uploader interface {
	PutFile(ctx context.Context, objectKey, localPath string) error
}

// Mirror copies ledger archives to the bucket on a single background
// worker. Object keys are the archive path relative to the data directory
// under the configured prefix.
type Mirror struct {
	client  uploader
	dataDir string
	prefix  string
	log     *log.Logger

	jobs        chan string
	enqueueWait time.Duration
	backoff     time.Duration
	wg          sync.WaitGroup

	uploaded    atomic.Uint64
	failed      atomic.Uint64
	dropped     atomic.Uint64
	lastSuccess atomic.Int64
}

func NewMirror(client *Client, dataDir string, cfg Config, logger *log.Logger) *Mirror {
	return newMirror(client, dataDir, cfg, logger)
}

func newMirror(client uploader, dataDir string, cfg Config, logger *log.Logger) *Mirror {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 64
	}
	if cfg.EnqueueWait <= 0 {
		cfg.EnqueueWait = 25 * time.Millisecond
	}
	if logger == nil {
		logger = log.Default()
	}
	m := &Mirror{
		client:      client,
		dataDir:     dataDir,
		prefix:      strings.Trim(strings.ReplaceAll(cfg.Prefix, "\\", "/"), "/"),
		log:         logger,
		jobs:        make(chan string, cfg.QueueCapacity),
		enqueueWait: cfg.EnqueueWait,
		backoff:     200 * time.Millisecond,
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for p := range m.jobs {
			m.uploadOne(p)
		}
	}()
	return m
}

// OnSaved queues the archive written by a ledger save, if any.
func (m *Mirror) OnSaved(info snapshot.SaveInfo) {
	if info.Archive != "" {
		m.Enqueue(info.Archive)
	}
}

// Enqueue never blocks for longer than the configured wait.
func (m *Mirror) Enqueue(localPath string) {
	if m == nil {
		return
	}
	select {
	case m.jobs <- localPath:
		return
	default:
	}
	timer := time.NewTimer(m.enqueueWait)
	defer timer.Stop()
	select {
	case m.jobs <- localPath:
	case <-timer.C:
		n := m.dropped.Add(1)
		m.log.Printf("r2 mirror: drop %s (queue full, dropped=%d)", localPath, n)
	}
}

// Close uploads what is queued and stops the worker.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	close(m.jobs)
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	s := Stats{
		QueueDepth:    len(m.jobs),
		QueueCapacity: cap(m.jobs),
		Uploaded:      m.uploaded.Load(),
		Failed:        m.failed.Load(),
		Dropped:       m.dropped.Load(),
	}
	if ns := m.lastSuccess.Load(); ns > 0 {
		s.LastSuccess = time.Unix(0, ns)
	}
	return s
}

func (m *Mirror) uploadOne(localPath string) {
	key, err := m.objectKey(localPath)
	if err != nil {
		m.failed.Add(1)
		m.log.Printf("r2 mirror: skip %s: %v", localPath, err)
		return
	}
	const attempts = 4
	for i := 1; i <= attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err = m.client.PutFile(ctx, key, localPath)
		cancel()
		if err == nil {
			break
		}
		if i < attempts {
			time.Sleep(time.Duration(i*i) * m.backoff)
		}
	}
	if err != nil {
		m.failed.Add(1)
		m.log.Printf("r2 mirror: upload %s failed: %v", key, err)
		return
	}
	m.uploaded.Add(1)
	m.lastSuccess.Store(time.Now().UnixNano())
}

func (m *Mirror) objectKey(localPath string) (string, error) {
	absBase, err := filepath.Abs(m.dataDir)
	if err != nil {
		return "", err
	}
	absLocal, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absBase, absLocal)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside data dir %s", absLocal, absBase)
	}
	if m.prefix != "" {
		rel = path.Join(m.prefix, rel)
	}
	return rel, nil
}
