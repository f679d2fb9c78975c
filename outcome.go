package prahari

import "errors"

// Outcome is the terminal state of a guarded call. It is written by the
// fault interceptor and read by the orchestrator once control returns to it.
type Outcome int32

const (
	// Sound means no error: the work completed, or a re-placement succeeded.
	Sound Outcome = iota
	// Spent means the monitored region's bounds have met or crossed, or no
	// further guard placement is possible. The caller's budget is used up.
	Spent
	// Weird means an internal contract violation: a null bound, a missing
	// guard page, or a foreign fault with nothing to forward to.
	Weird
	// Armor means the operating system rejected a protection change.
	Armor
	// Erupt means an external interrupt arrived during guarded execution.
	Erupt
)

func (o Outcome) String() string {
	switch o {
	case Sound:
		return "sound"
	case Spent:
		return "spent"
	case Weird:
		return "weird"
	case Armor:
		return "armor"
	case Erupt:
		return "erupt"
	default:
		return "unknown"
	}
}

var (
	// ErrSpent reports that the monitored region has no headroom left.
	ErrSpent = errors.New("prahari: region spent")
	// ErrWeird reports an anomalous condition: a usage or environment error,
	// not resource exhaustion.
	ErrWeird = errors.New("prahari: anomalous guard state")
	// ErrArmor reports that a memory protection change was rejected.
	ErrArmor = errors.New("prahari: protection change rejected")
	// ErrErupt reports that the guarded call was interrupted.
	ErrErupt = errors.New("prahari: interrupted")
	// ErrBusy reports that a guarded call is already in flight. Only one
	// guarded call may be active per process.
	ErrBusy = errors.New("prahari: guarded call already in flight")
)

// err maps a terminal outcome to its sentinel error. Sound maps to nil.
func (o Outcome) err() error {
	switch o {
	case Spent:
		return ErrSpent
	case Weird:
		return ErrWeird
	case Armor:
		return ErrArmor
	case Erupt:
		return ErrErupt
	default:
		return nil
	}
}
