package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"stash-bot/internal/command"
)

func (h *handlers) help(_ context.Context, _ *command.Invocation) (command.Result, error) {
	return command.Success(h.buildHelpMessage()), nil
}

// buildHelpMessage groups registered commands by category, both ordered by Sort.
func (h *handlers) buildHelpMessage() string {
	cmds := h.registry.All()

	categoryMap := make(map[string][]command.Descriptor)
	categorySort := make(map[string]int)
	for _, cmd := range cmds {
		cat := cmd.Category
		categoryMap[cat] = append(categoryMap[cat], cmd)
		if val, ok := categorySort[cat]; !ok || cmd.Sort < val {
			categorySort[cat] = cmd.Sort
		}
	}

	cats := make([]string, 0, len(categoryMap))
	for cat := range categoryMap {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		return categorySort[cats[i]] < categorySort[cats[j]]
	})

	var sb strings.Builder
	for _, cat := range cats {
		sb.WriteString(fmt.Sprintf("**%s**\n", cat))
		list := categoryMap[cat]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Sort < list[j].Sort
		})
		for _, cmd := range list {
			usage := cmd.Usage
			if usage == "" {
				usage = cmd.Name
			}
			line := fmt.Sprintf("`%s%s` - %s", h.Prefix, usage, cmd.Description)
			if cmd.RequireAdmin {
				line += " (admin)"
			}
			sb.WriteString(line + "\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("Send `%s<key>` to post something you saved.", h.Prefix))

	return sb.String()
}
