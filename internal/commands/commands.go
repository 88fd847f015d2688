// Package commands builds the bot's command set on top of the command registry.
package commands

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"

	"stash-bot/internal/command"
	st "stash-bot/internal/storagetypes"
)

const (
	catStore     = "Saved text"
	catTransform = "Fun"
	catAdmin     = "Admin"
	catInfo      = "Information"
)

// Store is the user data store the handlers work on.
type Store interface {
	Add(ctx context.Context, userID st.UserID, key, value string, overwrite bool) error
	Get(ctx context.Context, userID st.UserID, key string) (string, bool, error)
	ListKeys(ctx context.Context, userID st.UserID) ([]string, error)
	Delete(ctx context.Context, userID st.UserID, key string) (bool, error)
	DeleteUser(ctx context.Context, userID st.UserID) (bool, error)
	Rename(ctx context.Context, userID st.UserID, oldKey, newKey string, overwrite bool) error
	Steal(ctx context.Context, actorID, sourceID st.UserID, sourceKey, targetKey string) (bool, error)
}

// Permissions is the admin/blacklist policy.
type Permissions interface {
	IsAdmin(id st.UserID) bool
	AddToBlacklist(id st.UserID) error
	RemoveFromBlacklist(id st.UserID) error
}

// Backuper takes a snapshot on demand.
type Backuper interface {
	ForceBackup(ctx context.Context) (string, error)
}

// Fetcher downloads attachment bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Deps struct {
	Store       Store
	Permissions Permissions
	Backup      Backuper
	Fetcher     Fetcher
	Prefix      string
	Roasts      []string
	// NewRand returns the random source for one handler call. Defaults to a fresh
	// randomly seeded PCG.
	NewRand func() *rand.Rand
}

type handlers struct {
	Deps
	registry *command.Registry
}

// Register adds every bot command to reg, each wrapped in mws.
func Register(reg *command.Registry, deps Deps, mws ...command.Middleware) {
	if deps.NewRand == nil {
		deps.NewRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
	}
	h := &handlers{Deps: deps, registry: reg}

	for _, d := range h.descriptors() {
		reg.Register(command.Apply(d, mws...))
	}
}

func (h *handlers) descriptors() []command.Descriptor {
	list := []command.Descriptor{
		{Name: "help", Usage: "help", Description: "Show this list.", Category: catInfo, Sort: 0, Handler: h.help},
	}
	list = append(list, h.storeCommands()...)
	list = append(list, h.adminCommands()...)
	list = append(list, h.transformCommands()...)
	return list
}

// parseMention reads a user id from <@123> or <@!123>.
func parseMention(s string) (st.UserID, bool) {
	inner, ok := strings.CutPrefix(s, "<@")
	if !ok {
		return 0, false
	}
	inner, ok = strings.CutSuffix(inner, ">")
	if !ok {
		return 0, false
	}
	inner = strings.TrimPrefix(inner, "!")
	id, err := strconv.ParseInt(inner, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return st.UserID(id), true
}

func (h *handlers) usage(u string) string {
	return "Usage: `" + h.Prefix + u + "`"
}
