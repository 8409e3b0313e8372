package world

import (
	"context"
	"errors"
)

type saveReq struct {
	Resp chan saveResp
}

type saveResp struct {
	Gen   uint64
	Users int
	Err   string
}

var errNoSaver = errors.New("saver not configured")

// RequestSave asks the loop to snapshot the ledger and queue an async write.
// It returns once the snapshot is taken, not when it reaches disk.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestSave(ctx context.Context) (users int, err error) {
	r, err := w.requestSave(ctx)
	return r.Users, err
}

// SaveBlocking snapshots the ledger on the loop and waits for that snapshot,
// or a newer one, to be written. The loop itself keeps running meanwhile.
func (w *World) SaveBlocking(ctx context.Context) (users int, err error) {
	r, err := w.requestSave(ctx)
	if err != nil {
		return 0, err
	}
	return r.Users, w.saver.Wait(ctx, r.Gen)
}

func (w *World) requestSave(ctx context.Context) (saveResp, error) {
	if w == nil || w.saver == nil {
		return saveResp{}, errNoSaver
	}
	resp := make(chan saveResp, 1)
	select {
	case w.saveReq <- saveReq{Resp: resp}:
	case <-w.stop:
		return saveResp{}, ErrStopped
	case <-ctx.Done():
		return saveResp{}, ctx.Err()
	}
	select {
	case r := <-resp:
		if r.Err != "" {
			return r, errors.New(r.Err)
		}
		return r, nil
	case <-w.stop:
		return saveResp{}, ErrStopped
	case <-ctx.Done():
		return saveResp{}, ctx.Err()
	}
}

func (w *World) handleSaveRequest(req saveReq) {
	r := saveResp{}
	doc := w.ExportLedger()
	r.Users = len(doc)
	r.Gen = w.saver.Save(doc)
	if r.Gen == 0 {
		r.Err = "saver closed"
	}
	w.stats.saves++
	select {
	case req.Resp <- r:
	default:
		// Client timed out; don't block the loop.
	}
}

func (w *World) saveAsync() {
	if w.saver == nil {
		return
	}
	w.saver.Save(w.ExportLedger())
	w.stats.saves++
	w.publishMetrics()
}

func (w *World) finalSave() {
	if w.saver == nil {
		return
	}
	doc := w.ExportLedger()
	if err := w.saver.SaveBlocking(doc); err != nil {
		w.log.Printf("final save: %v", err)
		return
	}
	w.log.Printf("final save: %d users", len(doc))
}
