// Package history is the bounded, time-windowed, deduplicated message log
// of the room. It is not safe for concurrent use; the hub owns it.
package history

import (
	"sort"
	"time"

	"github.com/filmnt/chat/chat-service/internal/domain"
)

// Store keeps messages in insertion order with an id index.
type Store struct {
	msgs  []domain.ChatMessage
	index map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// AppendOrReplace inserts msg, or replaces the message with the same id in
// place. A replaced message is never a system message.
func (s *Store) AppendOrReplace(msg domain.ChatMessage) domain.ChatMessage {
	if i, ok := s.index[msg.ID]; ok {
		msg.IsSystem = false
		s.msgs[i] = msg
		return msg
	}
	s.index[msg.ID] = len(s.msgs)
	s.msgs = append(s.msgs, msg)
	return msg
}

// Trim keeps the max newest messages and returns how many were dropped.
// A negative max keeps everything.
func (s *Store) Trim(max int) int {
	if max < 0 || len(s.msgs) <= max {
		return 0
	}
	newest := make([]domain.ChatMessage, len(s.msgs))
	for i := range s.msgs {
		newest[i] = s.msgs[len(s.msgs)-1-i]
	}
	sortNewestFirst(newest)
	keep := make(map[string]struct{}, max)
	for _, m := range newest[:max] {
		keep[m.ID] = struct{}{}
	}
	return s.filter(func(m domain.ChatMessage) bool {
		_, ok := keep[m.ID]
		return ok
	})
}

// EvictExpired drops non-system messages older than now-window and returns
// how many were removed.
func (s *Store) EvictExpired(now time.Time, window time.Duration) int {
	cutoff := cutoffMillis(now, window)
	return s.filter(func(m domain.ChatMessage) bool {
		return m.IsSystem || m.Timestamp >= cutoff
	})
}

// Snapshot returns the in-window messages newest first, truncated to max.
func (s *Store) Snapshot(now time.Time, window time.Duration, max int) []domain.ChatMessage {
	cutoff := cutoffMillis(now, window)
	out := make([]domain.ChatMessage, 0, len(s.msgs))
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].Timestamp >= cutoff {
			out = append(out, s.msgs[i])
		}
	}
	sortNewestFirst(out)
	if max >= 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// Persistable returns the non-system in-window messages, newest first and
// truncated to max.
func (s *Store) Persistable(now time.Time, window time.Duration, max int) []domain.ChatMessage {
	snap := s.Snapshot(now, window, -1)
	out := snap[:0]
	for _, m := range snap {
		if !m.IsSystem {
			out = append(out, m)
		}
	}
	if max >= 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// Restore replaces the contents with a loaded list, dropping system
// messages, expired messages and duplicate ids. The first occurrence of an
// id wins.
func (s *Store) Restore(msgs []domain.ChatMessage, now time.Time, window time.Duration) {
	s.Clear()
	cutoff := cutoffMillis(now, window)
	// Stored lists are newest first; insert oldest first.
	ordered := make([]domain.ChatMessage, 0, len(msgs))
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if m.IsSystem || m.ID == "" || m.Timestamp < cutoff {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		ordered = append(ordered, m)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})
	for _, m := range ordered {
		s.AppendOrReplace(m)
	}
}

// Clear removes every message.
func (s *Store) Clear() {
	s.msgs = nil
	s.index = make(map[string]int)
}

// DeleteByAuthor removes every message whose author id matches and returns
// the count removed.
func (s *Store) DeleteByAuthor(authorID string) int {
	return s.filter(func(m domain.ChatMessage) bool {
		return m.UserID != authorID
	})
}

// Len returns the number of stored messages, including expired ones not
// yet evicted.
func (s *Store) Len() int {
	return len(s.msgs)
}

func (s *Store) filter(keep func(domain.ChatMessage) bool) int {
	kept := s.msgs[:0]
	for _, m := range s.msgs {
		if keep(m) {
			kept = append(kept, m)
		}
	}
	removed := len(s.msgs) - len(kept)
	if removed == 0 {
		return 0
	}
	// Zero the tail so dropped content can be collected.
	for i := len(kept); i < len(s.msgs); i++ {
		s.msgs[i] = domain.ChatMessage{}
	}
	s.msgs = kept
	s.reindex()
	return removed
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.msgs))
	for i, m := range s.msgs {
		s.index[m.ID] = i
	}
}

func sortNewestFirst(msgs []domain.ChatMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp > msgs[j].Timestamp
	})
}

func cutoffMillis(now time.Time, window time.Duration) int64 {
	return now.Add(-window).UnixMilli()
}
