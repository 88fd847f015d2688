// Package command holds the command registry and the dispatcher that gates and runs
// prefix text commands.
package command

import (
	"context"
	"strings"
	"unicode"

	st "stash-bot/internal/storagetypes"
)

// Status tags the outcome of a command.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusNoPermission
	StatusInvalidArgs
	StatusCooldown
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusNoPermission:
		return "no_permission"
	case StatusInvalidArgs:
		return "invalid_args"
	case StatusCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Attachment is a binary reply payload.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result is what a handler hands back to the transport. Success carries Text or an
// Attachment; every other status carries a user-facing message in Text.
type Result struct {
	Status     Status
	Text       string
	Attachment *Attachment
}

func Success(text string) Result { return Result{Status: StatusSuccess, Text: text} }

func File(a *Attachment) Result { return Result{Status: StatusSuccess, Attachment: a} }

func Failure(msg string) Result { return Result{Status: StatusFailure, Text: msg} }

func NoPermission(msg string) Result { return Result{Status: StatusNoPermission, Text: msg} }

func InvalidArgs(msg string) Result { return Result{Status: StatusInvalidArgs, Text: msg} }

func Cooldown(msg string) Result { return Result{Status: StatusCooldown, Text: msg} }

// Empty reports whether a result has nothing to send.
func (r Result) Empty() bool {
	return strings.TrimSpace(r.Text) == "" && r.Attachment == nil
}

// Link is a named URL on a chat message, such as an attachment or a sticker.
type Link struct {
	Name        string
	URL         string
	ContentType string
}

// Message is the replied-to message a command may operate on.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    st.UserID
	Content     string
	Attachments []Link
	Stickers    []Link
}

// Invocation is one parsed command call.
type Invocation struct {
	ID     string
	Actor  st.UserID
	SelfID st.UserID
	Name   string
	Args   []string
	// Raw is the text after the prefix, command name included, exactly as sent.
	Raw   string
	Reply *Message
}

// Rest returns the raw text following the command name and the first n arguments,
// with the separating whitespace removed. Spacing inside the remainder is kept.
func (inv *Invocation) Rest(n int) string {
	s := inv.Raw
	for i := 0; i <= n; i++ {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		end := strings.IndexFunc(s, unicode.IsSpace)
		if end < 0 {
			return ""
		}
		s = s[end:]
	}
	return strings.TrimLeftFunc(s, unicode.IsSpace)
}

// Handler runs a command. A returned error is reported to the user as a generic failure.
type Handler func(ctx context.Context, inv *Invocation) (Result, error)

// Descriptor is a registered command.
type Descriptor struct {
	Name        string
	Usage       string
	Description string
	Category    string
	// Sort orders commands and categories in help output.
	Sort int
	// RequireAdmin rejects non-admin actors before the handler runs.
	RequireAdmin bool
	// Blocking handlers do storage or network I/O and run on the worker pool.
	Blocking bool
	Handler  Handler
}
