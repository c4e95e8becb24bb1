package providers

import "time"

// PowObserver, when non-nil, receives the duration of every successful
// proof-of-work solve. It is set once at startup, before any provider
// is constructed, and must be safe for concurrent calls.
var PowObserver func(provider string, d time.Duration)

// ObservePowSolve reports one completed proof-of-work solve to the
// installed observer, if any.
func ObservePowSolve(provider string, d time.Duration) {
	if PowObserver != nil {
		PowObserver(provider, d)
	}
}
