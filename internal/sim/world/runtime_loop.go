package world

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"procoin.app/internal/protocol"
)

// ErrStopped is returned to callers whose request reached a stopped loop.
var ErrStopped = errors.New("world stopped")

type cmdReq struct {
	Ctx    context.Context
	UserID string
	Cmd    protocol.CmdMsg
	Resp   chan protocol.ResultMsg
	claim  *claim
}

type doReq struct {
	Ctx   context.Context
	Fn    func(*World) error
	Resp  chan error
	claim *claim
}

const (
	reqPending int32 = iota
	reqRunning
	reqAbandoned
)

// claim decides, exactly once, whether a queued request runs on the loop or
// is abandoned by its caller. A request the caller gave up on never runs, and
// a request that started always reports its result.
type claim struct{ state atomic.Int32 }

func (c *claim) start(ctx context.Context) bool {
	if ctx.Err() != nil {
		c.state.CompareAndSwap(reqPending, reqAbandoned)
		return false
	}
	return c.state.CompareAndSwap(reqPending, reqRunning)
}

func (c *claim) abandon() bool { return c.state.CompareAndSwap(reqPending, reqAbandoned) }

// Run owns all economy state until ctx is done or Stop is called. On the way
// out the ledger is saved and the call waits for the write.
func (w *World) Run(ctx context.Context) error {
	restock := time.NewTicker(w.cfg.RestockEvery)
	defer restock.Stop()
	save := time.NewTicker(w.cfg.SaveEvery)
	defer save.Stop()

	defer w.finalSave()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.inbox:
			if !req.claim.start(req.Ctx) {
				continue
			}
			res := w.dispatch(req.UserID, req.Cmd)
			w.publishMetrics()
			select {
			case req.Resp <- res:
			default:
				// Resp is buffered; never block the loop.
			}
		case req := <-w.do:
			if !req.claim.start(req.Ctx) {
				continue
			}
			err := req.Fn(w)
			w.publishMetrics()
			select {
			case req.Resp <- err:
			default:
			}
		case req := <-w.saveReq:
			w.handleSaveRequest(req)
		case <-restock.C:
			w.Restock()
			w.saveAsync()
		case <-save.C:
			w.saveAsync()
		}
	}
}

func (w *World) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Exec runs one command for userID on the loop and returns its result. If
// ctx ends before the loop picks the command up, it is dropped unapplied and
// ctx.Err() is returned; once started, Exec always returns its result.
func (w *World) Exec(ctx context.Context, userID string, cmd protocol.CmdMsg) (protocol.ResultMsg, error) {
	req := cmdReq{Ctx: ctx, UserID: userID, Cmd: cmd, Resp: make(chan protocol.ResultMsg, 1), claim: &claim{}}
	select {
	case w.inbox <- req:
	case <-w.stop:
		return protocol.ResultMsg{}, ErrStopped
	case <-ctx.Done():
		return protocol.ResultMsg{}, ctx.Err()
	}
	return awaitReply(ctx, w.stop, req.claim, req.Resp)
}

// Do runs fn on the loop goroutine. fn may call any World method. Like Exec,
// fn either runs and its error is returned, or never runs.
func (w *World) Do(ctx context.Context, fn func(*World) error) error {
	req := doReq{Ctx: ctx, Fn: fn, Resp: make(chan error, 1), claim: &claim{}}
	select {
	case w.do <- req:
	case <-w.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	fnErr, err := awaitReply(ctx, w.stop, req.claim, req.Resp)
	if err != nil {
		return err
	}
	return fnErr
}

func awaitReply[T any](ctx context.Context, stop <-chan struct{}, c *claim, resp <-chan T) (T, error) {
	var err error
	select {
	case r := <-resp:
		return r, nil
	case <-stop:
		err = ErrStopped
	case <-ctx.Done():
		err = ctx.Err()
	}
	if c.abandon() {
		var zero T
		return zero, err
	}
	// Already running on the loop; the reply is buffered before it moves on.
	return <-resp, nil
}
