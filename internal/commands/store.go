package commands

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"

	"stash-bot/internal/command"
	"stash-bot/internal/storage"
)

const (
	msgDone         = "Done!"
	msgEmptyList    = "You don't have anything saved yet."
	msgEmptyMessage = "There is nothing to save in that message."
	msgKeyNotFound  = "I couldn't find that key."
	msgKeyTaken     = "That key already exists. Use `%s` to overwrite it."
	msgKeyIsCommand = "`%s` is the name of a command. Pick another key."
)

func (h *handlers) storeCommands() []command.Descriptor {
	return []command.Descriptor{
		{
			Name: "add", Usage: "add <key> [text...]", Category: catStore, Sort: 10, Blocking: true,
			Description: "Save text under a key. Reply to a message to save that message instead.",
			Handler:     h.add(false),
		},
		{
			Name: "add_o", Usage: "add_o <key> [text...]", Category: catStore, Sort: 11, Blocking: true,
			Description: "Like add, but replaces an existing key.",
			Handler:     h.add(true),
		},
		{
			Name: "saved", Usage: "saved [@user]", Category: catStore, Sort: 12, Blocking: true,
			Description: "List your keys. Admins can list someone else's.",
			Handler:     h.saved,
		},
		{
			Name: "delete", Usage: "delete <key>", Category: catStore, Sort: 13, Blocking: true,
			Description: "Delete one of your keys.",
			Handler:     h.delete,
		},
		{
			Name: "delete_me", Usage: "delete_me", Category: catStore, Sort: 14, Blocking: true,
			Description: "Delete everything you have saved.",
			Handler:     h.deleteMe,
		},
		{
			Name: "rename", Usage: "rename <old> <new>", Category: catStore, Sort: 15, Blocking: true,
			Description: "Rename one of your keys.",
			Handler:     h.rename(false),
		},
		{
			Name: "rename_o", Usage: "rename_o <old> <new>", Category: catStore, Sort: 16, Blocking: true,
			Description: "Rename a key, replacing the target if it exists.",
			Handler:     h.rename(true),
		},
		{
			Name: "steal", Usage: "steal <@user> <key> [new key]", Category: catStore, Sort: 17, Blocking: true,
			Description: "Copy someone else's key into your own list.",
			Handler:     h.steal,
		},
	}
}

func (h *handlers) add(overwrite bool) command.Handler {
	name, usage := "add", "add <key> [text...]"
	if overwrite {
		name, usage = "add_o", "add_o <key> [text...]"
	}

	return func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
		if len(inv.Args) == 0 {
			return command.InvalidArgs(h.usage(usage)), nil
		}
		key := inv.Args[0]
		if h.isCommand(key) {
			return command.Failure(fmt.Sprintf(msgKeyIsCommand, key)), nil
		}
		value := inv.Rest(1)

		if value == "" {
			if inv.Reply == nil {
				return command.InvalidArgs(h.usage(usage) + " or reply to a message with `" + h.Prefix + name + " <key>`"), nil
			}
			value = strings.TrimSpace(inv.Reply.Content) + attachmentsText(inv.Reply)
		}
		if strings.TrimSpace(value) == "" {
			return command.Failure(msgEmptyMessage), nil
		}

		err := h.Store.Add(ctx, inv.Actor, key, value, overwrite)
		switch {
		case errors.Is(err, storage.ErrKeyExists):
			return command.Failure(fmt.Sprintf(msgKeyTaken, h.Prefix+"add_o")), nil
		case errors.Is(err, storage.ErrEmptyValue):
			return command.Failure(msgEmptyMessage), nil
		case err != nil:
			return command.Result{}, err
		}
		return command.Success(msgDone), nil
	}
}

// isCommand reports whether key would be dispatched as a command instead of being
// looked up as saved text.
func (h *handlers) isCommand(key string) bool {
	_, ok := h.registry.Get(key)
	return ok
}

// attachmentsText renders attachments and stickers of m as markdown links.
func attachmentsText(m *command.Message) string {
	var b strings.Builder
	for i, a := range m.Attachments {
		fmt.Fprintf(&b, "[Attachment %d](%s) ", i, a.URL)
	}
	for _, s := range m.Stickers {
		fmt.Fprintf(&b, "[%s](%s) ", s.Name, s.URL)
	}
	return b.String()
}

func (h *handlers) saved(ctx context.Context, inv *command.Invocation) (command.Result, error) {
	if len(inv.Args) > 0 {
		target, ok := parseMention(inv.Args[0])
		if ok && target != inv.Actor {
			if !h.Permissions.IsAdmin(inv.Actor) {
				return command.NoPermission("You don't have permission to view another user's keys."), nil
			}
			keys, err := h.Store.ListKeys(ctx, target)
			if err != nil {
				return command.Result{}, err
			}
			if len(keys) == 0 {
				return command.Success(fmt.Sprintf("%s doesn't have anything saved.", target.Mention())), nil
			}
			return command.Success(fmt.Sprintf("Keys for %s:\n%s", target.Mention(), bulletList(keys))), nil
		}
	}

	keys, err := h.Store.ListKeys(ctx, inv.Actor)
	if err != nil {
		return command.Result{}, err
	}
	if len(keys) == 0 {
		return command.Success(msgEmptyList), nil
	}
	return command.Success(bulletList(keys)), nil
}

func bulletList(items []string) string {
	return "- " + strings.Join(items, "\n- ")
}

func (h *handlers) delete(ctx context.Context, inv *command.Invocation) (command.Result, error) {
	if len(inv.Args) != 1 {
		return command.InvalidArgs(h.usage("delete <key>")), nil
	}
	ok, err := h.Store.Delete(ctx, inv.Actor, inv.Args[0])
	if err != nil {
		return command.Result{}, err
	}
	if !ok {
		return command.Failure(msgKeyNotFound), nil
	}
	return command.Success(msgDone), nil
}

func (h *handlers) deleteMe(ctx context.Context, inv *command.Invocation) (command.Result, error) {
	ok, err := h.Store.DeleteUser(ctx, inv.Actor)
	if err != nil {
		return command.Result{}, err
	}
	if !ok {
		return command.Failure(msgEmptyList), nil
	}
	return command.Success(msgDone), nil
}

func (h *handlers) rename(overwrite bool) command.Handler {
	usage := "rename <old> <new>"
	if overwrite {
		usage = "rename_o <old> <new>"
	}

	return func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
		if len(inv.Args) != 2 {
			return command.InvalidArgs(h.usage(usage)), nil
		}
		if h.isCommand(inv.Args[1]) {
			return command.Failure(fmt.Sprintf(msgKeyIsCommand, inv.Args[1])), nil
		}

		err := h.Store.Rename(ctx, inv.Actor, inv.Args[0], inv.Args[1], overwrite)
		switch {
		case errors.Is(err, storage.ErrNoSuchUser):
			return command.Failure(msgEmptyList), nil
		case errors.Is(err, storage.ErrNoSuchKey):
			return command.Failure(msgKeyNotFound), nil
		case errors.Is(err, storage.ErrTargetExists):
			return command.Failure(fmt.Sprintf(msgKeyTaken, h.Prefix+"rename_o")), nil
		case err != nil:
			return command.Result{}, err
		}
		return command.Success(msgDone), nil
	}
}

func (h *handlers) steal(ctx context.Context, inv *command.Invocation) (command.Result, error) {
	usage := "steal <@user> <key> [new key]"
	if len(inv.Args) < 2 || len(inv.Args) > 3 {
		return command.InvalidArgs(h.usage(usage)), nil
	}
	source, ok := parseMention(inv.Args[0])
	if !ok {
		return command.InvalidArgs("That doesn't look like a user mention. " + h.usage(usage)), nil
	}
	sourceKey := inv.Args[1]
	targetKey := ""
	if len(inv.Args) == 3 {
		targetKey = inv.Args[2]
	}
	if name := cmp.Or(targetKey, sourceKey); h.isCommand(name) {
		return command.Failure(fmt.Sprintf(msgKeyIsCommand, name)), nil
	}

	found, err := h.Store.Steal(ctx, inv.Actor, source, sourceKey, targetKey)
	switch {
	case errors.Is(err, storage.ErrKeyExists):
		return command.Failure("You already have a key with that name. Pick a new name with `" + h.Prefix + usage + "`."), nil
	case err != nil:
		return command.Result{}, err
	case !found:
		return command.Failure(msgKeyNotFound), nil
	}
	return command.Success(msgDone), nil
}
