package prahari

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// armorRecorder interposes protectFunc/releaseFunc so tests can observe
// protection transitions over synthetic addresses without touching real
// memory.
type armorRecorder struct {
	ops        []string // "protect"/"release" in call order
	protects   []uintptr
	releases   []uintptr
	protectErr error
	releaseErr error
}

// install swaps the protection funcs for the recorder. The returned func
// restores the real ones and must be deferred.
func (a *armorRecorder) install() (restore func()) {
	oldProtect, oldRelease := protectFunc, releaseFunc
	protectFunc = func(addr uintptr) error {
		if a.protectErr != nil {
			return a.protectErr
		}
		a.ops = append(a.ops, "protect")
		a.protects = append(a.protects, addr)
		return nil
	}
	releaseFunc = func(addr uintptr) error {
		if a.releaseErr != nil {
			return a.releaseErr
		}
		a.ops = append(a.ops, "release")
		a.releases = append(a.releases, addr)
		return nil
	}
	return func() {
		protectFunc, releaseFunc = oldProtect, oldRelease
	}
}

// fakeFault mimics the panic value the runtime raises for a memory fault
// while SetPanicOnFault is in effect.
type fakeFault struct {
	addr uintptr
}

func (f fakeFault) Error() string { return "unexpected fault address" }
func (f fakeFault) RuntimeError() {}
func (f fakeFault) Addr() uintptr { return f.addr }

// plainRuntimeError is a runtime error without a faulting address, as the
// runtime raises for nil dereferences.
type plainRuntimeError struct{}

func (plainRuntimeError) Error() string { return "runtime error: invalid memory address" }
func (plainRuntimeError) RuntimeError() {}

// testBase is a synthetic, guard-page-aligned region base.
const testBase = uintptr(1) << 30

// mutableBounds is a Bounds whose extents tests can move mid-call.
type mutableBounds struct {
	low  atomic.Uintptr
	high atomic.Uintptr
}

func (b *mutableBounds) Low() uintptr  { return b.low.Load() }
func (b *mutableBounds) High() uintptr { return b.high.Load() }

func newMutableBounds(lo, hi uintptr) *mutableBounds {
	b := &mutableBounds{}
	b.low.Store(lo)
	b.high.Store(hi)
	return b
}

func newTestGuard(b Bounds, opts ...Option) *Prahari[int] {
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	p, err := New[int](b, opts...)
	if err != nil {
		panic(err)
	}
	return p
}
