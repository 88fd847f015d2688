package commands

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"stash-bot/internal/command"
	"stash-bot/internal/transform"
)

const msgNeedReply = "You need to reply to a message to use this command."

type textTransform struct {
	name        string
	description string
	fn          func(text string, rng *rand.Rand) string
}

func (h *handlers) transformCommands() []command.Descriptor {
	texts := []textTransform{
		{"clap", "Put 👏 claps 👏 between 👏 words.", func(s string, _ *rand.Rand) string { return transform.Clap(s) }},
		{"zalgo", "Summon Zalgo on a message.", transform.Zalgo},
		{"forbesify", "Turn a message into a business headline.", func(s string, _ *rand.Rand) string { return transform.Forbesify(s) }},
		{"copypasta", "Sprinkle emoji all over a message.", transform.Copypasta},
		{"owo", "OwO-ify a message.", transform.Owo},
		{"stretch", "Stretch the vowels of a message.", transform.Stretch},
		{"mock", "aLtErNaTe ThE cAsE of a message.", func(s string, _ *rand.Rand) string { return transform.Mock(s) }},
	}

	var list []command.Descriptor
	for i, t := range texts {
		list = append(list, command.Descriptor{
			Name:        t.name,
			Usage:       t.name + " (as a reply)",
			Description: t.description,
			Category:    catTransform,
			Sort:        60 + i,
			Handler:     h.textTransform(t),
		})
	}

	list = append(list,
		command.Descriptor{
			Name: "deepfry", Usage: "deepfry (as a reply to an image)", Category: catTransform, Sort: 70, Blocking: true,
			Description: "Deep fry an image.",
			Handler:     h.deepfry,
		},
		command.Descriptor{
			Name: "roast", Usage: "roast [@user...]", Category: catTransform, Sort: 71,
			Description: "Roast someone.",
			Handler:     h.roast,
		},
	)
	return list
}

func (h *handlers) textTransform(t textTransform) command.Handler {
	return func(_ context.Context, inv *command.Invocation) (command.Result, error) {
		if inv.Reply == nil {
			return command.InvalidArgs(msgNeedReply), nil
		}
		text := strings.TrimSpace(inv.Reply.Content)
		if text == "" {
			return command.Failure("There is no text in that message."), nil
		}
		out := t.fn(text, h.NewRand())
		if strings.TrimSpace(out) == "" {
			return command.Failure(fmt.Sprintf("Failed to transform text using %s.", t.name)), nil
		}
		return command.Success(out), nil
	}
}

func (h *handlers) deepfry(ctx context.Context, inv *command.Invocation) (command.Result, error) {
	if inv.Reply == nil {
		return command.InvalidArgs("You need to reply to a message with an image to use this command."), nil
	}

	var image *command.Link
	for i, a := range inv.Reply.Attachments {
		if strings.HasPrefix(a.ContentType, "image/") {
			image = &inv.Reply.Attachments[i]
			break
		}
	}
	if image == nil {
		return command.InvalidArgs("That message has no image to deepfry."), nil
	}
	if h.Fetcher == nil {
		return command.Result{}, errors.New("no attachment fetcher configured")
	}

	data, err := h.Fetcher.Fetch(ctx, image.URL)
	if err != nil {
		return command.Result{}, fmt.Errorf("fetch %s: %w", image.URL, err)
	}
	fried, err := transform.DeepFry(data)
	switch {
	case errors.Is(err, transform.ErrNotImage):
		return command.Failure("Failed to deepfry the image."), nil
	case errors.Is(err, transform.ErrImageTooLarge):
		return command.Failure("That image is too big to deepfry."), nil
	}
	if err != nil {
		return command.Result{}, err
	}

	return command.File(&command.Attachment{Name: "deepfried.jpg", ContentType: "image/jpeg", Data: fried}), nil
}
