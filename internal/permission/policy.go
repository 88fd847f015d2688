// Package permission holds the admin set and the mutable blacklist.
package permission

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"stash-bot/datastore"
	st "stash-bot/internal/storagetypes"
)

var (
	ErrAlreadyBlacklisted = errors.New("user is already blacklisted")
	ErrIsAdmin            = errors.New("admins cannot be blacklisted")
	ErrNotBlacklisted     = errors.New("user is not blacklisted")
)

type blacklistDoc struct {
	Users []st.UserID `json:"users"`
}

// Policy answers admin/blacklist questions. Admins are fixed at construction; the
// blacklist changes only through AddToBlacklist and RemoveFromBlacklist and never
// contains an admin.
type Policy struct {
	admins map[st.UserID]struct{}

	mu        sync.RWMutex
	blacklist map[st.UserID]struct{}
	ds        *datastore.DataStore
}

// New builds a Policy. seed and the persisted blacklist in ds (when not nil) are merged;
// admin ids are dropped from both.
func New(admins, seed []st.UserID, ds *datastore.DataStore) (*Policy, error) {
	p := &Policy{
		admins:    make(map[st.UserID]struct{}, len(admins)),
		blacklist: make(map[st.UserID]struct{}),
		ds:        ds,
	}
	for _, id := range admins {
		p.admins[id] = struct{}{}
	}

	ids := slices.Clone(seed)
	if ds != nil {
		var doc blacklistDoc
		if _, err := ds.Load(&doc); err != nil {
			return nil, fmt.Errorf("load blacklist: %w", err)
		}
		ids = append(ids, doc.Users...)
	}

	for _, id := range ids {
		if p.IsAdmin(id) {
			log.Warn().Stringer("user", id).Msg("Ignoring blacklist entry for admin")
			continue
		}
		p.blacklist[id] = struct{}{}
	}
	return p, nil
}

func (p *Policy) IsAdmin(id st.UserID) bool {
	_, ok := p.admins[id]
	return ok
}

func (p *Policy) IsBlacklisted(id st.UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.blacklist[id]
	return ok
}

// AddToBlacklist bars id from the bot. Admins are rejected without touching the set.
func (p *Policy) AddToBlacklist(id st.UserID) error {
	if p.IsAdmin(id) {
		return ErrIsAdmin
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.blacklist[id]; ok {
		return ErrAlreadyBlacklisted
	}

	p.blacklist[id] = struct{}{}
	if err := p.persistLocked(); err != nil {
		delete(p.blacklist, id)
		return err
	}
	return nil
}

func (p *Policy) RemoveFromBlacklist(id st.UserID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.blacklist[id]; !ok {
		return ErrNotBlacklisted
	}

	delete(p.blacklist, id)
	if err := p.persistLocked(); err != nil {
		p.blacklist[id] = struct{}{}
		return err
	}
	return nil
}

// Blacklisted returns the blacklisted ids in ascending order.
func (p *Policy) Blacklisted() []st.UserID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sortedLocked()
}

func (p *Policy) sortedLocked() []st.UserID {
	out := make([]st.UserID, 0, len(p.blacklist))
	for id := range p.blacklist {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (p *Policy) persistLocked() error {
	if p.ds == nil {
		return nil
	}
	if err := p.ds.Save(blacklistDoc{Users: p.sortedLocked()}); err != nil {
		return fmt.Errorf("save blacklist: %w", err)
	}
	return nil
}
