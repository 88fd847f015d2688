// Package router classifies inbound chat messages and turns them into replies.
package router

import (
	"context"
	"strings"
	"unicode"

	"stash-bot/internal/command"
	st "stash-bot/internal/storagetypes"
	"stash-bot/pkg/util"

	"github.com/rs/zerolog/log"
)

// MessageRef points at a chat message.
type MessageRef struct {
	ID        string
	ChannelID string
}

// InboundMessage is one message delivered by the transport.
type InboundMessage struct {
	Ref       MessageRef
	AuthorID  st.UserID
	SelfID    st.UserID
	IsFromBot bool
	Text      string
	// Reply is the message this one replies to, if any.
	Reply *command.Message
}

// OutboundReply is sent by the transport as a reply to Target.
type OutboundReply struct {
	Target     MessageRef
	Body       string
	Attachment *command.Attachment
}

type Kind int

const (
	KindIgnore Kind = iota
	KindReplacement
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindReplacement:
		return "replacement"
	case KindCommand:
		return "command"
	default:
		return "ignore"
	}
}

// Getter resolves stored text for the replacement path.
type Getter interface {
	Get(ctx context.Context, userID st.UserID, key string) (string, bool, error)
}

// Observer counts replacement lookups by result: hit, miss or error.
type Observer interface {
	ObserveReplacement(result string)
}

type Options struct {
	Pool     *util.Pool
	Observer Observer
}

type Router struct {
	disp  *command.Dispatcher
	store Getter
	gate  command.Gate
	opts  Options
}

func New(disp *command.Dispatcher, store Getter, gate command.Gate, opts Options) *Router {
	return &Router{disp: disp, store: store, gate: gate, opts: opts}
}

// Classify decides what to do with text. A prefix followed by one bare token is a
// replacement unless the token names a registered command. A prefix followed by
// anything else is a command.
func (r *Router) Classify(text string) Kind {
	body, ok := strings.CutPrefix(strings.TrimSpace(text), r.disp.Prefix())
	if !ok || body == "" {
		return KindIgnore
	}

	if !strings.ContainsFunc(body, unicode.IsSpace) {
		if _, isCommand := r.disp.Registry().Get(body); !isCommand {
			return KindReplacement
		}
		return KindCommand
	}

	if strings.TrimSpace(body) == "" {
		return KindIgnore
	}
	return KindCommand
}

// Handle processes one inbound message and returns the reply to send, or nil.
func (r *Router) Handle(ctx context.Context, msg InboundMessage) *OutboundReply {
	if msg.IsFromBot || (msg.SelfID != 0 && msg.AuthorID == msg.SelfID) {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	if r.gate.IsBlacklisted(msg.AuthorID) {
		if strings.HasPrefix(text, r.disp.Prefix()) {
			return &OutboundReply{Target: msg.Ref, Body: command.BlacklistedMessage}
		}
		return nil
	}

	switch r.Classify(text) {
	case KindReplacement:
		return r.replace(ctx, msg, strings.TrimPrefix(text, r.disp.Prefix()))
	case KindCommand:
		res, ok := r.disp.Dispatch(ctx, command.Request{
			Actor:  msg.AuthorID,
			SelfID: msg.SelfID,
			Text:   text,
			Reply:  msg.Reply,
		})
		if !ok {
			return nil
		}
		return replyFor(msg, res)
	default:
		return nil
	}
}

func (r *Router) replace(ctx context.Context, msg InboundMessage, key string) *OutboundReply {
	var (
		value string
		found bool
	)
	lookup := func(ctx context.Context) error {
		var err error
		value, found, err = r.store.Get(ctx, msg.AuthorID, key)
		return err
	}

	var err error
	if r.opts.Pool != nil {
		err = r.opts.Pool.Do(ctx, lookup)
	} else {
		err = lookup(ctx)
	}

	switch {
	case err != nil:
		r.observe("error")
		log.Error().Err(err).Stringer("user", msg.AuthorID).Str("key", key).Msg("Replacement lookup failed")
		return &OutboundReply{Target: msg.Ref, Body: "Something went wrong while looking that up."}
	case !found || strings.TrimSpace(value) == "":
		r.observe("miss")
		return nil
	}

	r.observe("hit")
	return &OutboundReply{Target: successTarget(msg), Body: value}
}

func (r *Router) observe(result string) {
	if r.opts.Observer != nil {
		r.opts.Observer.ObserveReplacement(result)
	}
}

// replyFor picks the reply target: successes go to the quoted message when there is
// one, every other outcome answers the inbound message.
func replyFor(msg InboundMessage, res command.Result) *OutboundReply {
	if res.Status == command.StatusSuccess {
		if res.Empty() {
			return nil
		}
		return &OutboundReply{Target: successTarget(msg), Body: res.Text, Attachment: res.Attachment}
	}

	body := res.Text
	if strings.TrimSpace(body) == "" {
		body = "An error occurred."
	}
	return &OutboundReply{Target: msg.Ref, Body: body}
}

func successTarget(msg InboundMessage) MessageRef {
	if msg.Reply != nil && msg.Reply.ID != "" {
		channel := msg.Reply.ChannelID
		if channel == "" {
			channel = msg.Ref.ChannelID
		}
		return MessageRef{ID: msg.Reply.ID, ChannelID: channel}
	}
	return msg.Ref
}
