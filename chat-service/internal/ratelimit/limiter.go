// Package ratelimit throttles sends per author with a sliding window.
package ratelimit

import "time"

// Config is the send budget of an author.
type Config struct {
	MaxMessages int           `mapstructure:"max_messages"`
	Window      time.Duration `mapstructure:"window"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Limiter tracks recent send times per author. Not safe for concurrent use.
type Limiter struct {
	cfg   Config
	sends map[string][]time.Time
}

func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg, sends: make(map[string][]time.Time)}
}

// Allow records a send at now and reports whether it fits the budget. A
// rejected send is not recorded. A non-positive budget disables the limit.
func (l *Limiter) Allow(authorID string, now time.Time) bool {
	if l.cfg.MaxMessages <= 0 || l.cfg.Window <= 0 {
		return true
	}
	recent := l.prune(authorID, now)
	if len(recent) >= l.cfg.MaxMessages {
		return false
	}
	l.sends[authorID] = append(recent, now)
	return true
}

// TimeoutUntil returns when a timeout applied at now ends.
func (l *Limiter) TimeoutUntil(now time.Time) time.Time {
	return now.Add(l.cfg.Timeout)
}

// Reset forgets an author's history.
func (l *Limiter) Reset(authorID string) {
	delete(l.sends, authorID)
}

// Sweep drops authors whose sends have all left the window.
func (l *Limiter) Sweep(now time.Time) {
	for id := range l.sends {
		if len(l.prune(id, now)) == 0 {
			delete(l.sends, id)
		}
	}
}

func (l *Limiter) prune(authorID string, now time.Time) []time.Time {
	cutoff := now.Add(-l.cfg.Window)
	sends := l.sends[authorID]
	i := 0
	for i < len(sends) && !sends[i].After(cutoff) {
		i++
	}
	sends = sends[i:]
	l.sends[authorID] = sends
	return sends
}
