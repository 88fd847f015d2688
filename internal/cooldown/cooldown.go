// Package cooldown tracks when each user last invoked each command.
package cooldown

import (
	"sync"
	"time"
)

// Tracker holds per-(command, user) timestamps of accepted invocations. The state is
// process-wide and in-memory only.
type Tracker struct {
	mu   sync.Mutex
	last map[string]map[int64]time.Time
}

func New() *Tracker {
	return &Tracker{last: make(map[string]map[int64]time.Time)}
}

// CheckAndRecord rejects the invocation when the previous accepted one for the same
// pair happened less than interval before now. Otherwise it records now and accepts.
func (t *Tracker) CheckAndRecord(command string, userID int64, now time.Time, interval time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.last[command]
	if !ok {
		users = make(map[int64]time.Time)
		t.last[command] = users
	}

	if prev, ok := users[userID]; ok && now.Sub(prev) < interval {
		return false
	}

	users[userID] = now
	return true
}

// Remaining returns how long userID still has to wait before command is accepted again.
func (t *Tracker) Remaining(command string, userID int64, now time.Time, interval time.Duration) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.last[command][userID]
	if !ok {
		return 0
	}
	if left := interval - now.Sub(prev); left > 0 {
		return left
	}
	return 0
}

// Prune drops entries recorded at least maxAge before now. Such entries can no longer
// reject anything, so pruning never changes CheckAndRecord results for maxAge >= interval.
func (t *Tracker) Prune(now time.Time, maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for cmd, users := range t.last {
		for id, ts := range users {
			if now.Sub(ts) >= maxAge {
				delete(users, id)
				removed++
			}
		}
		if len(users) == 0 {
			delete(t.last, cmd)
		}
	}
	return removed
}

// Len returns the number of tracked (command, user) pairs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, users := range t.last {
		n += len(users)
	}
	return n
}
