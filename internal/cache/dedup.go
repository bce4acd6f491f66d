package cache

import "time"

type dedupKey struct {
	userID  int64
	videoID string
}

// DedupGuard suppresses duplicate video processing triggered by webhook
// redeliveries. An acquired key marks a request as in flight until Release
// or until the TTL elapses, whichever comes first.
type DedupGuard struct {
	entries *ExpiringMap[dedupKey, time.Time]
}

// NewDedupGuard creates a guard whose in-flight markers expire after ttl.
func NewDedupGuard(ttl time.Duration) *DedupGuard {
	return &DedupGuard{entries: NewExpiringMap[dedupKey, time.Time](ttl, 0)}
}

// Acquire marks (userID, videoID) as in flight. Returns false when a live
// marker already exists, meaning a concurrent or retried request for the
// same video should be suppressed.
func (g *DedupGuard) Acquire(userID int64, videoID string) bool {
	return g.entries.PutIfAbsent(dedupKey{userID: userID, videoID: videoID}, time.Now())
}

// Release clears the in-flight marker. Callers invoke it from a defer so a
// failed request does not lock out the (user, video) pair beyond the TTL.
func (g *DedupGuard) Release(userID int64, videoID string) {
	g.entries.Delete(dedupKey{userID: userID, videoID: videoID})
}

// Sweep drops expired markers; run periodically in case Release is skipped.
func (g *DedupGuard) Sweep() int {
	return g.entries.Sweep()
}
