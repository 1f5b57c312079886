package metrics

import "sync/atomic"

var resolutionsOK int64
var resolutionsFailed int64
var dispatchesSent int64
var dispatchesFailed int64
var reloads int64

func IncResolutionOK()     { atomic.AddInt64(&resolutionsOK, 1) }
func IncResolutionFailed() { atomic.AddInt64(&resolutionsFailed, 1) }
func IncDispatchSent()     { atomic.AddInt64(&dispatchesSent, 1) }
func IncDispatchFailed()   { atomic.AddInt64(&dispatchesFailed, 1) }
func IncReload()           { atomic.AddInt64(&reloads, 1) }

func Snapshot() map[string]int64 {
	return map[string]int64{
		"resolutions_ok":     atomic.LoadInt64(&resolutionsOK),
		"resolutions_failed": atomic.LoadInt64(&resolutionsFailed),
		"dispatches_sent":    atomic.LoadInt64(&dispatchesSent),
		"dispatches_failed":  atomic.LoadInt64(&dispatchesFailed),
		"reloads":            atomic.LoadInt64(&reloads),
	}
}
