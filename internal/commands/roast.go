package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"stash-bot/internal/command"
	st "stash-bot/internal/storagetypes"
)

// LoadRoasts reads one roast per non-empty line.
func LoadRoasts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roasts: %w", err)
	}
	defer f.Close()

	var roasts []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			roasts = append(roasts, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read roasts: %w", err)
	}
	return roasts, nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "~", `\~`, "`", "\\`", "|", `\|`, ">", `\>`,
)

func (h *handlers) roast(_ context.Context, inv *command.Invocation) (command.Result, error) {
	if len(h.Roasts) == 0 {
		return command.Failure("Couldn't load roasts. Contact the bot owner."), nil
	}

	var targets []st.UserID
	selfMentioned := false
	for _, arg := range inv.Args {
		id, ok := parseMention(arg)
		if !ok {
			continue
		}
		if inv.SelfID != 0 && id == inv.SelfID {
			selfMentioned = true
			continue
		}
		targets = append(targets, id)
	}

	var footer string
	switch {
	case selfMentioned:
		targets = []st.UserID{inv.Actor}
		footer = "Why would I roast myself?"
	case len(targets) == 0:
		targets = []st.UserID{inv.Actor}
		footer = fmt.Sprintf("Try reading `%shelp` twice next time", h.Prefix)
	}

	rng := h.NewRand()
	order := rng.Perm(len(h.Roasts))

	var b strings.Builder
	for i, id := range targets {
		line := h.Roasts[order[i%len(order)]]
		fmt.Fprintf(&b, "%s %s\n", id.Mention(), markdownEscaper.Replace(line))
	}
	if footer != "" {
		b.WriteString("\n" + footer)
	}
	return command.Success(strings.TrimSpace(b.String())), nil
}
