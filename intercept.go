package prahari

import (
	"runtime"

	"go.uber.org/zap"
)

// FaultHandler inspects a fault at an address outside the guard page span.
// It reports whether the fault was handled; a handled fault lets the guarded
// work resume. Handlers stand in for whatever fault handling the process had
// installed before the guard took over.
type FaultHandler func(addr uintptr) bool

// handlerChain consults prior fault handlers in registration order. The
// implicit tail of the chain is the runtime's own fault handling: if every
// handler declines, the fault is re-raised.
type handlerChain struct {
	handlers []FaultHandler
}

func (c *handlerChain) use(h FaultHandler) {
	c.handlers = append(c.handlers, h)
}

func (c *handlerChain) empty() bool {
	return len(c.handlers) == 0
}

// dispatch forwards the fault along the chain. The first handler to report
// it handled wins.
func (c *handlerChain) dispatch(addr uintptr) bool {
	for _, h := range c.handlers {
		if h(addr) {
			return true
		}
	}
	return false
}

// memFault is the shape of a panic value raised for a memory fault while
// runtime/debug.SetPanicOnFault is in effect. The runtime attaches the
// faulting address for faults at non-nil addresses.
type memFault interface {
	error
	Addr() uintptr
}

// asFault reports whether a recovered panic value is a memory fault with a
// known faulting address. Address-less runtime errors (nil dereferences,
// index panics) are the work's own and are not classified here.
func asFault(r any) (memFault, bool) {
	rerr, ok := r.(runtime.Error)
	if !ok {
		return nil, false
	}
	f, ok := rerr.(memFault)
	return f, ok
}

// intercept classifies a panic recovered at the recovery point. It returns
// the terminal outcome for the guarded call, or Sound when the work may
// re-enter (guard re-centered, or a foreign fault handled by the chain).
// rethrow reports that the panic is not ours and must propagate unchanged.
func (p *Prahari[T]) intercept(r any) (out Outcome, rethrow bool) {
	if p.erupted.Load() {
		p.log.Warn("interrupted")
		return Erupt, false
	}

	flt, ok := asFault(r)
	if !ok {
		// The work's own panic; it owns that channel.
		return Sound, true
	}

	page := p.page.Load()
	if page == 0 {
		p.log.Error("fault with no guard page", zap.Uintptr("addr", flt.Addr()))
		return Weird, false
	}

	addr := flt.Addr()
	if addr >= page && addr < page+PageSize {
		p.log.Debug("guard hit", zap.Uintptr("addr", addr))
		return p.focus(), false
	}

	// A fault somewhere else entirely. Forward it to the prior handlers; if
	// none exists this is an anomaly, and if none claims it the runtime's own
	// fault handling takes over.
	p.log.Warn("foreign fault", zap.Uintptr("addr", addr))
	if p.chain.empty() {
		return Weird, false
	}
	if p.chain.dispatch(addr) {
		return Sound, false
	}
	return Sound, true
}
