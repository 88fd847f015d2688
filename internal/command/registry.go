package command

import (
	"fmt"
	"sort"
)

// Registry maps command names to descriptors. It is filled at startup and only read
// afterwards.
type Registry struct {
	commands map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Descriptor)}
}

// Register adds a command. Empty or duplicate names panic since the set is fixed at
// build time.
func (r *Registry) Register(d Descriptor) {
	if d.Name == "" || d.Handler == nil {
		panic("command: descriptor needs a name and a handler")
	}
	if _, dup := r.commands[d.Name]; dup {
		panic(fmt.Sprintf("command: %q registered twice", d.Name))
	}
	r.commands[d.Name] = d
}

func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.commands[name]
	return d, ok
}

// All returns every command sorted by name.
func (r *Registry) All() []Descriptor {
	list := make([]Descriptor, 0, len(r.commands))
	for _, d := range r.commands {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}
