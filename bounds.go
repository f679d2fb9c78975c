package prahari

// Bounds reports the current low and high extent of the monitored region.
// Both methods are called synchronously and frequently during re-placement;
// they must be cheap, must never touch the guard page themselves, and must
// return addresses with low <= high while the region is still usable.
type Bounds interface {
	Low() uintptr
	High() uintptr
}

type funcBounds struct {
	low  func() uintptr
	high func() uintptr
}

func (b funcBounds) Low() uintptr  { return b.low() }
func (b funcBounds) High() uintptr { return b.high() }

// BoundsOf adapts a pair of boundary functions to the Bounds interface.
func BoundsOf(low, high func() uintptr) Bounds {
	return funcBounds{low: low, high: high}
}
