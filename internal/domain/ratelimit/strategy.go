package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// StrategyKind enumerates the limiter algorithms spec.md §4.3 names.
type StrategyKind string

const (
	StrategyFixedWindow   StrategyKind = "fixedWindow"
	StrategySlidingWindow StrategyKind = "slidingWindow"
	StrategyTokenBucket   StrategyKind = "tokenBucket"
)

// segmentsPerWindow controls the sliding-window approximation's
// granularity: the window is divided into this many segments and the
// count decays linearly across the oldest segment as it ages out.
const segmentsPerWindow = 10

// Config describes one limiter instance's parameters. Burst is only
// consulted by StrategyTokenBucket; the other strategies derive their
// effective burst from Limit.
type Config struct {
	Strategy StrategyKind
	Limit    int
	Window   time.Duration
	Burst    int
}

// NewLimiter constructs the strategy named by cfg.Strategy.
func NewLimiter(cfg Config, now func() time.Time) Limiter {
	if now == nil {
		now = time.Now
	}
	switch cfg.Strategy {
	case StrategySlidingWindow:
		return newSlidingWindow(cfg, now)
	case StrategyTokenBucket:
		return newTokenBucket(cfg)
	default:
		return newFixedWindow(cfg, now)
	}
}

// fixedWindow resets its counter at each window boundary.
type fixedWindow struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	now         func() time.Time
	windowStart time.Time
	count       int
}

func newFixedWindow(cfg Config, now func() time.Time) *fixedWindow {
	return &fixedWindow{limit: cfg.Limit, window: cfg.Window, now: now, windowStart: now()}
}

func (f *fixedWindow) AllowNow() Decision {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.now()
	if n.Sub(f.windowStart) >= f.window {
		f.windowStart = n
		f.count = 0
	}
	if f.count >= f.limit {
		retry := f.window - n.Sub(f.windowStart)
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, RetryAfter: retry}
	}
	f.count++
	return Decision{Allowed: true, RemainingHint: f.limit - f.count}
}

// slidingWindow approximates a true sliding window by weighting the
// previous window's count by how much of it still overlaps the current
// instant, divided into segmentsPerWindow steps (spec.md §4.3).
type slidingWindow struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	now        func() time.Time
	currStart  time.Time
	currCount  int
	prevCount  int
}

func newSlidingWindow(cfg Config, now func() time.Time) *slidingWindow {
	return &slidingWindow{limit: cfg.Limit, window: cfg.Window, now: now, currStart: now()}
}

func (s *slidingWindow) AllowNow() Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.now()
	elapsed := n.Sub(s.currStart)
	if elapsed >= s.window {
		periods := int(elapsed / s.window)
		if periods == 1 {
			s.prevCount = s.currCount
		} else {
			s.prevCount = 0
		}
		s.currCount = 0
		s.currStart = s.currStart.Add(time.Duration(periods) * s.window)
		elapsed = n.Sub(s.currStart)
	}

	segment := s.window / segmentsPerWindow
	if segment <= 0 {
		segment = s.window
	}
	overlapSegments := segmentsPerWindow - int(elapsed/segment)
	if overlapSegments < 0 {
		overlapSegments = 0
	}
	weighted := (s.prevCount*overlapSegments)/segmentsPerWindow + s.currCount

	if weighted >= s.limit {
		return Decision{Allowed: false, RetryAfter: segment}
	}
	s.currCount++
	return Decision{Allowed: true, RemainingHint: s.limit - weighted - 1}
}

// tokenBucket wraps golang.org/x/time/rate; burst defaults to the limit
// when unset so a steady-rate caller with no configured burst behaves
// like fixedWindow at t=0.
type tokenBucket struct {
	limiter *rate.Limiter
}

func newTokenBucket(cfg Config) *tokenBucket {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.Limit
	}
	var r rate.Limit
	if cfg.Window > 0 {
		r = rate.Every(cfg.Window / time.Duration(cfg.Limit))
	} else {
		r = rate.Inf
	}
	return &tokenBucket{limiter: rate.NewLimiter(r, burst)}
}

func (t *tokenBucket) AllowNow() Decision {
	res := t.limiter.ReserveN(time.Now(), 1)
	if !res.OK() {
		return Decision{Allowed: false}
	}
	delay := res.Delay()
	if delay > 0 {
		res.Cancel()
		return Decision{Allowed: false, RetryAfter: delay}
	}
	return Decision{Allowed: true, RemainingHint: int(t.limiter.Tokens())}
}

func (t *tokenBucket) AllowBlocking(maxWait time.Duration) Decision {
	res := t.limiter.ReserveN(time.Now(), 1)
	if !res.OK() {
		return Decision{Allowed: false}
	}
	delay := res.Delay()
	if delay > maxWait {
		res.Cancel()
		return Decision{Allowed: false, RetryAfter: delay}
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return Decision{Allowed: true}
}
