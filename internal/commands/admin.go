package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"stash-bot/internal/command"
	"stash-bot/internal/permission"

	"github.com/rs/zerolog/log"
)

func (h *handlers) adminCommands() []command.Descriptor {
	return []command.Descriptor{
		{
			Name: "blacklist_add", Usage: "blacklist_add <@user>", Category: catAdmin, Sort: 40, RequireAdmin: true,
			Description: "Stop a user from using the bot.",
			Handler:     h.blacklistAdd,
		},
		{
			Name: "blacklist_remove", Usage: "blacklist_remove <@user>", Category: catAdmin, Sort: 41, RequireAdmin: true,
			Description: "Let a blacklisted user back in.",
			Handler:     h.blacklistRemove,
		},
		{
			Name: "backup", Usage: "backup", Category: catAdmin, Sort: 42, RequireAdmin: true, Blocking: true,
			Description: "Write a snapshot of the database now.",
			Handler:     h.backup,
		},
	}
}

func (h *handlers) blacklistAdd(_ context.Context, inv *command.Invocation) (command.Result, error) {
	if len(inv.Args) != 1 {
		return command.InvalidArgs("Invalid user mention."), nil
	}
	id, ok := parseMention(inv.Args[0])
	if !ok {
		return command.InvalidArgs("Invalid user mention."), nil
	}

	err := h.Permissions.AddToBlacklist(id)
	switch {
	case errors.Is(err, permission.ErrIsAdmin):
		return command.Failure("You cannot blacklist another admin."), nil
	case errors.Is(err, permission.ErrAlreadyBlacklisted):
		return command.Failure("User is already blacklisted."), nil
	case err != nil:
		return command.Result{}, err
	}
	log.Info().Stringer("admin", inv.Actor).Stringer("user", id).Msg("User blacklisted")
	return command.Success(fmt.Sprintf("User %s has been blacklisted.", id.Mention())), nil
}

func (h *handlers) blacklistRemove(_ context.Context, inv *command.Invocation) (command.Result, error) {
	if len(inv.Args) != 1 {
		return command.InvalidArgs("Invalid user mention."), nil
	}
	id, ok := parseMention(inv.Args[0])
	if !ok {
		return command.InvalidArgs("Invalid user mention."), nil
	}

	err := h.Permissions.RemoveFromBlacklist(id)
	switch {
	case errors.Is(err, permission.ErrNotBlacklisted):
		return command.Failure("User is not blacklisted."), nil
	case err != nil:
		return command.Result{}, err
	}
	log.Info().Stringer("admin", inv.Actor).Stringer("user", id).Msg("User removed from blacklist")
	return command.Success(fmt.Sprintf("User %s has been removed from the blacklist.", id.Mention())), nil
}

func (h *handlers) backup(ctx context.Context, inv *command.Invocation) (command.Result, error) {
	path, err := h.Backup.ForceBackup(ctx)
	if err != nil {
		log.Error().Err(err).Stringer("admin", inv.Actor).Msg("Manual backup failed")
		return command.Failure("Database backup failed."), nil
	}
	return command.Success(fmt.Sprintf("Database backup created successfully: `%s`", filepath.Base(path))), nil
}
