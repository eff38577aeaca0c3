package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/runnerr0/runtimelog/internal/logstore"
)

// Execute implements the go-flags Commander interface for ShowCommand.
func (c *ShowCommand) Execute(args []string) error {
	env, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	return c.executeWithEnv(env)
}

func (c *ShowCommand) executeWithEnv(env *environment) error {
	target, err := targetFlags("show", c.URL, c.All)
	if err != nil {
		return err
	}

	pages := []string{target}
	if target == logstore.AllPages {
		pages = env.store.ListPageKeys()
	}

	if c.globals != nil && c.globals.JSON {
		out := make(map[string][]logstore.Entry, len(pages))
		for _, p := range pages {
			out[p] = env.store.Read(p)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	m := env.mirror(os.Stdout)
	shown := 0
	for _, p := range pages {
		entries := env.store.Read(p)
		if target == logstore.AllPages {
			if err := m.Header(p); err != nil {
				return err
			}
		}
		for _, e := range entries {
			if err := m.Saved(e); err != nil {
				return err
			}
			shown++
		}
	}
	if shown == 0 && target != logstore.AllPages {
		fmt.Printf("No entries for %s.\n", target)
	}
	return nil
}
