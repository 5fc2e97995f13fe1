package chat

import (
	"net"
	"net/netip"
	"time"

	"croissant/server/internal/telemetry"
)

const (
	// DefaultCooldown is the minimum spacing between accepted messages from
	// one bucket.
	DefaultCooldown = 5 * time.Second
	// DefaultBuckets is the number of buckets source addresses fold into.
	DefaultBuckets = 10

	rateLimitedMetricKey = "chat_rate_limited_total"
)

// RateLimiter throttles submissions per source bucket. Sources are folded
// into a small number of buckets, so distinct addresses can alias to the same
// bucket and share its cooldown. That collision is accepted: the limiter is
// a courtesy throttle on a closed network, not an abuse control.
//
// It is not safe for concurrent use; the hub loop is its only caller.
type RateLimiter struct {
	cooldown int64
	last     []int64
	used     []bool
	metrics  telemetry.Metrics
}

// NewRateLimiter constructs a limiter with the given bucket count and
// cooldown.
func NewRateLimiter(buckets int, cooldown time.Duration, metrics telemetry.Metrics) *RateLimiter {
	if buckets < 1 {
		buckets = 1
	}
	if cooldown < 0 {
		cooldown = 0
	}
	return &RateLimiter{
		cooldown: cooldown.Milliseconds(),
		last:     make([]int64, buckets),
		used:     make([]bool, buckets),
		metrics:  metrics,
	}
}

// CheckAndRecord reports whether a send from sourceKey at now (milliseconds)
// is accepted. Only an accepted send updates the bucket.
func (r *RateLimiter) CheckAndRecord(sourceKey int, now int64) bool {
	if r == nil {
		return true
	}
	bucket := r.bucket(sourceKey)
	if r.used[bucket] && now-r.last[bucket] < r.cooldown {
		if r.metrics != nil {
			r.metrics.Add(rateLimitedMetricKey, 1)
		}
		return false
	}
	r.used[bucket] = true
	r.last[bucket] = now
	return true
}

func (r *RateLimiter) bucket(sourceKey int) int {
	n := len(r.last)
	return ((sourceKey % n) + n) % n
}

// SourceKey derives a throttling key from the low two octets of a remote
// address in host:port or bare host form. Unparseable addresses map to 0.
func SourceKey(remoteAddr string) int {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return 0
	}
	raw := addr.As16()
	return int(raw[14])*256 + int(raw[15])
}
