// cmd/build-readme/main.go
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/template"

	"stash-bot/internal/command"
	"stash-bot/internal/commands"
)

type CmdInfo struct {
	Usage       string
	Description string
	Admin       bool
	sort        int
}

type Section struct {
	Category string
	Commands []CmdInfo
	sort     int
}

const defaultTemplate = `# stash-bot

Save text under a short key and post it back with ` + "`{{.Prefix}}<key>`" + `.

## Commands
{{range .Sections}}
### {{.Category}}
{{range .Commands}}
* **` + "`{{$.Prefix}}{{.Usage}}`" + `**{{if .Admin}} (admin){{end}}
  {{.Description}}
{{end}}{{end}}`

func main() {
	tmplPath := flag.String("template", "README.md.tmpl", "template file; the built-in layout is used when it does not exist")
	outPath := flag.String("out", "README.md", "output file")
	prefix := flag.String("prefix", ";;", "command prefix shown in examples")
	flag.Parse()

	tmplText := defaultTemplate
	if data, err := os.ReadFile(*tmplPath); err == nil {
		tmplText = string(data)
	}

	var out bytes.Buffer
	if err := render(&out, tmplText, *prefix); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := os.WriteFile(*outPath, out.Bytes(), 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func render(w io.Writer, tmplText, prefix string) error {
	tmpl, err := template.New("readme").Parse(tmplText)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	reg := command.NewRegistry()
	commands.Register(reg, commands.Deps{Prefix: prefix})

	return tmpl.Execute(w, map[string]any{
		"Prefix":   prefix,
		"Sections": sections(reg.All()),
	})
}

// sections groups descriptors by category, ordering both by their Sort value.
func sections(cmds []command.Descriptor) []Section {
	byCat := make(map[string]*Section)
	for _, cmd := range cmds {
		sec, ok := byCat[cmd.Category]
		if !ok {
			sec = &Section{Category: cmd.Category, sort: cmd.Sort}
			byCat[cmd.Category] = sec
		}
		sec.sort = min(sec.sort, cmd.Sort)

		usage := cmd.Usage
		if usage == "" {
			usage = cmd.Name
		}
		sec.Commands = append(sec.Commands, CmdInfo{
			Usage:       usage,
			Description: cmd.Description,
			Admin:       cmd.RequireAdmin,
			sort:        cmd.Sort,
		})
	}

	out := make([]Section, 0, len(byCat))
	for _, sec := range byCat {
		sort.SliceStable(sec.Commands, func(i, j int) bool { return sec.Commands[i].sort < sec.Commands[j].sort })
		out = append(out, *sec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sort < out[j].sort })
	return out
}
