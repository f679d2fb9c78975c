package prahari

import "go.uber.org/zap"

// protectFunc and releaseFunc indirect the platform protection transitions
// so tests can interpose them.
var (
	protectFunc = protect
	releaseFunc = release
)

// focus centers the guard page between the current low and high bounds of
// the monitored region, or declares the region spent.
func (p *Prahari[T]) focus() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.focusLocked()
}

// focusLocked requires p.mu held. Each re-placement halves the remaining
// headroom, so repeated faults converge the guard toward the region's true
// limit without per-access bounds checks.
func (p *Prahari[T]) focusLocked() Outcome {
	// An interrupt observed here means the call is being torn down; placing a
	// fresh page now would leave it protected after Guard returns.
	if p.erupted.Load() {
		return Erupt
	}

	lo := p.bounds.Low()
	hi := p.bounds.High()

	// Check if we're spent already.
	if lo == hi || lo > hi {
		p.log.Warn("region spent", zap.Uintptr("low", lo), zap.Uintptr("high", hi))
		return Spent
	}

	// Check for strange situations.
	if lo == 0 || hi == 0 {
		p.log.Error("low or high bound is null",
			zap.Uintptr("low", lo), zap.Uintptr("high", hi))
		return Weird
	}

	// Unmark the old guard page if one exists.
	old := p.page.Load()
	if old != 0 {
		p.log.Debug("retiring old guard page", zap.Uintptr("page", old))
		if err := releaseFunc(old); err != nil {
			p.log.Error("failed to release old guard page",
				zap.Uintptr("page", old), zap.Error(err))
			return Armor
		}
	}

	// Center the candidate page in the remaining headroom.
	cand := (lo + (hi-lo)/2) & pageMask

	// If the candidate didn't move and less than a page of headroom remains,
	// there is nowhere left to go.
	left := hi-lo > PageSize
	if cand == old && !left {
		p.log.Warn("region spent", zap.Uintptr("page", cand), zap.Bool("left", left))
		return Spent
	}

	p.log.Debug("focused",
		zap.Uintptr("low", lo), zap.Uintptr("high", hi),
		zap.Uintptr("page", cand), zap.Bool("left", left))
	if err := protectFunc(cand); err != nil {
		p.log.Error("failed to protect guard page",
			zap.Uintptr("page", cand), zap.Error(err))
		return Armor
	}
	p.page.Store(cand)

	return Sound
}
