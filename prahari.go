// Package prahari runs caller-supplied work under a moving guard page: a
// single page-aligned no-access span positioned inside an externally owned
// monitored region (typically a stack or bump-allocated arena). When the
// work touches the guard, the fault is intercepted, the guard is re-centered
// between the region's current low and high bounds, and the work re-enters
// if headroom remains. Each re-placement halves the remaining headroom, so
// overruns are detected with logarithmic fault overhead and no per-access
// bounds checks.
//
// The guard page is process-wide: only one guarded call may be in flight at
// a time, and the first call claims SIGINT for the process lifetime.
package prahari

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	// inFlight enforces the one-guarded-call-per-process contract.
	inFlight atomic.Bool

	interruptOnce sync.Once
	interruptC    chan os.Signal
)

// armInterrupt claims SIGINT for the process. The registration is never
// undone; the guard owns the signal for the process lifetime after first use.
func armInterrupt() {
	interruptOnce.Do(func() {
		interruptC = make(chan os.Signal, 1)
		signal.Notify(interruptC, os.Interrupt)
	})
}

// Prahari guards one monitored region. The guard page it places is sticky:
// a successful call leaves the page installed, so repeated calls reuse the
// converged placement instead of starting over.
type Prahari[T any] struct {
	bounds Bounds
	chain  handlerChain
	log    *zap.Logger

	mu      sync.Mutex     // serializes all protection transitions
	page    atomic.Uintptr // current guard page address, 0 when unset
	erupted atomic.Bool    // interrupt latch, read at the fault boundary
	eruptC  chan struct{}
}

type config struct {
	log   *zap.Logger
	chain handlerChain
}

// Option configures a Prahari.
type Option func(*config)

// WithLogger routes the guard's diagnostics through log instead of the
// process-global zap logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithFaultHandler appends h to the chain consulted for faults outside the
// guard page span, in place of whatever fault handling the process had
// before the guard took over. Handlers are consulted in registration order.
func WithFaultHandler(h FaultHandler) Option {
	return func(c *config) { c.chain.use(h) }
}

// New creates a guard over the monitored region described by bounds.
func New[T any](bounds Bounds, opts ...Option) (*Prahari[T], error) {
	if bounds == nil {
		return nil, fmt.Errorf("bounds must not be nil")
	}

	cfg := config{log: zap.L().Named("prahari")}
	for _, o := range opts {
		o(&cfg)
	}

	return &Prahari[T]{
		bounds: bounds,
		chain:  cfg.chain,
		log:    cfg.log,
		eruptC: make(chan struct{}, 1),
	}, nil
}

// callResult carries the work's result, or the terminal outcome, back to
// the orchestrator.
type callResult[T any] struct {
	value   T
	err     error
	outcome Outcome
	repanic any
}

// Guard runs work under the guard page and returns its result.
//
// The work runs on its own goroutine with fault trapping enabled. A touch of
// the guard page unwinds the work, re-centers the guard, and re-enters the
// work from the top; work must therefore track its own progress through
// state it captures and be safe to re-enter. A normal return leaves the
// guard page installed for the next call.
//
// Terminal conditions are reported as ErrSpent (the region's bounds have met
// or crossed, or the guard has nowhere left to move), ErrWeird (contract
// violation), ErrArmor (the OS rejected a protection change), or ErrErupt
// (SIGINT, Interrupt, or ctx cancellation). On every terminal condition the
// guard page is released before Guard returns and no result is produced.
// Errors returned by the work itself pass through unchanged.
func (p *Prahari[T]) Guard(ctx context.Context, work func(context.Context) (T, error)) (T, error) {
	var zero T
	if work == nil {
		return zero, fmt.Errorf("work must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !inFlight.CompareAndSwap(false, true) {
		return zero, ErrBusy
	}
	defer inFlight.Store(false)

	p.erupted.Store(false)
	select { // discard a stale interrupt from before this call
	case <-p.eruptC:
	default:
	}

	// Initial placement. Spent is tolerated here: a region with no headroom
	// yet is valid, and the work may never grow into it.
	if p.page.Load() == 0 {
		if out := p.focus(); out != Sound && out != Spent {
			p.log.Error("failed to install guard page", zap.Stringer("outcome", out))
			p.abandon()
			return zero, out.err()
		}
	}

	armInterrupt()

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resC := make(chan callResult[T], 1)
	go p.run(wctx, work, resC)

	select {
	case res := <-resC:
		if res.repanic != nil {
			p.abandon()
			panic(res.repanic)
		}
		if res.outcome == Sound {
			return res.value, res.err
		}
		p.log.Warn("guarded call failed", zap.Stringer("outcome", res.outcome))
		p.abandon()
		return zero, res.outcome.err()
	case <-interruptC:
	case <-p.eruptC:
	case <-ctx.Done():
	}

	// Interrupted. Latch first so a concurrently faulting work goroutine
	// reaches a terminal state instead of re-protecting, then tear down
	// without waiting for the work to notice the cancellation.
	p.erupted.Store(true)
	cancel()
	p.log.Warn("interrupted")
	p.abandon()
	return zero, ErrErupt
}

// run drives the work, re-entering it after every sound re-placement, and
// delivers exactly one callResult.
func (p *Prahari[T]) run(ctx context.Context, work func(context.Context) (T, error), resC chan<- callResult[T]) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	for {
		res, completed := p.once(ctx, work)
		if completed || res.repanic != nil || res.outcome != Sound {
			resC <- res
			return
		}
		// Guard re-centered (or a foreign fault handled); re-enter the work.
	}
}

// once establishes the recovery point and invokes the work once.
func (p *Prahari[T]) once(ctx context.Context, work func(context.Context) (T, error)) (res callResult[T], completed bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		out, rethrow := p.intercept(r)
		if rethrow {
			res.repanic = r
			return
		}
		res.outcome = out
	}()
	res.value, res.err = work(ctx)
	completed = true
	return
}

// Interrupt aborts the active guarded call with ErrErupt. It is the
// programmatic equivalent of SIGINT and is safe to call from any goroutine.
func (p *Prahari[T]) Interrupt() {
	p.erupted.Store(true)
	select {
	case p.eruptC <- struct{}{}:
	default:
	}
}

// Page returns the current guard page address, or zero when none is placed.
func (p *Prahari[T]) Page() uintptr {
	return p.page.Load()
}

// Retire releases the guard page left installed by successful calls and
// resets the placement, so the next call starts fresh. It does not give up
// the SIGINT registration. Retire fails with ErrBusy while a call is in
// flight.
func (p *Prahari[T]) Retire() error {
	if !inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer inFlight.Store(false)
	return p.releasePage()
}

// abandon releases the guard page on a terminal path. A release failure is
// logged but never overrides the outcome being reported.
func (p *Prahari[T]) abandon() {
	if err := p.releasePage(); err != nil {
		p.log.Error("failed to release guard page", zap.Error(err))
	}
}

// releasePage restores the current page to read/write and marks it unset.
// On release failure the page stays recorded, since it is still protected.
func (p *Prahari[T]) releasePage() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	page := p.page.Load()
	if page == 0 {
		return nil
	}
	if err := releaseFunc(page); err != nil {
		return err
	}
	p.page.Store(0)
	return nil
}
