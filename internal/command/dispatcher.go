package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"stash-bot/internal/storage"
	st "stash-bot/internal/storagetypes"
	"stash-bot/pkg/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// UnknownCommand is reported to the Observer in place of unregistered names.
	UnknownCommand = "unknown"

	BlacklistedMessage  = "You are blacklisted from using this bot."
	NoPermissionMessage = "You don't have permission to use this command."
)

// Gate answers permission questions for the dispatcher.
type Gate interface {
	IsAdmin(id st.UserID) bool
	IsBlacklisted(id st.UserID) bool
}

// Cooldowns records per-command, per-user invocation attempts.
type Cooldowns interface {
	CheckAndRecord(command string, userID int64, now time.Time, interval time.Duration) bool
	Remaining(command string, userID int64, now time.Time, interval time.Duration) time.Duration
}

// Observer receives one call per dispatched command. Unregistered names are reported
// as UnknownCommand.
type Observer interface {
	ObserveCommand(name string, status Status, took time.Duration)
}

type Options struct {
	Prefix   string
	Cooldown time.Duration
	// Pool runs Blocking handlers. Without one they run on the caller's goroutine.
	Pool     *util.Pool
	Observer Observer
	Now      func() time.Time
}

// Request is one command text addressed to the bot.
type Request struct {
	Actor  st.UserID
	SelfID st.UserID
	Text   string
	Reply  *Message
}

type Dispatcher struct {
	registry  *Registry
	gate      Gate
	cooldowns Cooldowns
	opts      Options
}

func NewDispatcher(reg *Registry, gate Gate, cooldowns Cooldowns, opts Options) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{registry: reg, gate: gate, cooldowns: cooldowns, opts: opts}
}

func (d *Dispatcher) Prefix() string { return d.opts.Prefix }

func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch strips the prefix, looks the command up and runs it through the blacklist,
// cooldown and admin gates in that order. It returns false when the text holds no
// command at all and nothing should be sent.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, bool) {
	body, ok := strings.CutPrefix(req.Text, d.opts.Prefix)
	if !ok {
		return Result{}, false
	}
	body = strings.TrimLeftFunc(body, unicode.IsSpace)
	args := strings.Fields(body)
	if len(args) == 0 {
		return Result{}, false
	}

	start := d.opts.Now()
	name := args[0]
	inv := &Invocation{
		ID:     uuid.NewString(),
		Actor:  req.Actor,
		SelfID: req.SelfID,
		Name:   name,
		Args:   args[1:],
		Raw:    body,
		Reply:  req.Reply,
	}

	res := d.dispatch(ctx, inv)

	took := time.Since(start)
	if d.opts.Observer != nil {
		observed := name
		if _, known := d.registry.Get(name); !known {
			observed = UnknownCommand
		}
		d.opts.Observer.ObserveCommand(observed, res.Status, took)
	}
	log.Info().
		Str("invocation", inv.ID).
		Str("command", name).
		Stringer("actor", req.Actor).
		Stringer("status", res.Status).
		Dur("took", took).
		Msg("Command dispatched")

	return res, true
}

func (d *Dispatcher) dispatch(ctx context.Context, inv *Invocation) Result {
	desc, ok := d.registry.Get(inv.Name)
	if !ok {
		return Failure(fmt.Sprintf("Unknown command `%s`. Use `%shelp` to see what I can do.", inv.Name, d.opts.Prefix))
	}

	// The router normally stops blacklisted actors before this point.
	if d.gate.IsBlacklisted(inv.Actor) {
		return NoPermission(BlacklistedMessage)
	}

	if d.opts.Cooldown > 0 {
		now := d.opts.Now()
		if !d.cooldowns.CheckAndRecord(desc.Name, int64(inv.Actor), now, d.opts.Cooldown) {
			wait := d.cooldowns.Remaining(desc.Name, int64(inv.Actor), now, d.opts.Cooldown)
			return Cooldown(fmt.Sprintf("Slow down! You can use `%s` again in %s.", desc.Name, formatWait(wait)))
		}
	}

	if desc.RequireAdmin && !d.gate.IsAdmin(inv.Actor) {
		return NoPermission(NoPermissionMessage)
	}

	res, err := d.invoke(ctx, desc, inv)
	return normalize(desc.Name, inv, res, err)
}

func (d *Dispatcher) invoke(ctx context.Context, desc Descriptor, inv *Invocation) (res Result, err error) {
	if !desc.Blocking || d.opts.Pool == nil {
		return safeCall(ctx, desc.Handler, inv)
	}

	poolErr := d.opts.Pool.Do(ctx, func(ctx context.Context) error {
		res, err = safeCall(ctx, desc.Handler, inv)
		return nil
	})
	if poolErr != nil {
		return Result{}, fmt.Errorf("worker pool: %w", poolErr)
	}
	return res, err
}

func safeCall(ctx context.Context, h Handler, inv *Invocation) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
		}
	}()
	return h(ctx, inv)
}

func normalize(name string, inv *Invocation, res Result, err error) Result {
	if err != nil {
		ev := log.Error().Err(err)
		if errors.As(err, new(*storage.StorageError)) {
			ev = ev.Bool("storage", true)
		}
		ev.Str("invocation", inv.ID).Str("command", name).Msg("Command failed")
		return Failure(fmt.Sprintf("Something went wrong while running `%s`.", name))
	}

	switch res.Status {
	case StatusSuccess, StatusFailure, StatusNoPermission, StatusInvalidArgs, StatusCooldown:
		return res
	default:
		log.Error().Str("invocation", inv.ID).Str("command", name).Int("status", int(res.Status)).Msg("Handler returned an unknown status")
		return Failure(fmt.Sprintf("Something went wrong while running `%s`.", name))
	}
}

func formatWait(d time.Duration) string {
	if d < time.Second {
		return "a moment"
	}
	return d.Round(time.Second).String()
}
