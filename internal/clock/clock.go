package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Since reports the elapsed time since t, measured with NowFunc.
func Since(t time.Time) time.Duration { return Now().Sub(t) }
