package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

type pageJSON struct {
	PageKey   string `json:"page"`
	FirstSeen string `json:"first_seen"`
	LastSeen  string `json:"last_seen"`
	Entries   int    `json:"entries"`
}

// Execute implements the go-flags Commander interface for PagesCommand.
func (c *PagesCommand) Execute(args []string) error {
	env, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	return c.executeWithEnv(env)
}

func (c *PagesCommand) executeWithEnv(env *environment) error {
	pages := env.store.Pages()

	if c.globals != nil && c.globals.JSON {
		out := make([]pageJSON, len(pages))
		for i, p := range pages {
			out[i] = pageJSON{
				PageKey:   p.PageKey,
				FirstSeen: time.UnixMilli(p.FirstSeen).UTC().Format(time.RFC3339),
				LastSeen:  time.UnixMilli(p.LastSeen).UTC().Format(time.RFC3339),
				Entries:   len(env.store.Read(p.PageKey)),
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(pages) == 0 {
		fmt.Println("No pages recorded.")
		return nil
	}

	now := env.clock.Now()
	fmt.Printf("%-48s %8s  %-16s %s\n", "PAGE", "ENTRIES", "LAST SEEN", "FIRST SEEN")
	for _, p := range pages {
		n := int64(len(env.store.Read(p.PageKey)))
		fmt.Printf("%-48s %8s  %-16s %s\n",
			p.PageKey,
			humanize.Comma(n),
			humanize.RelTime(time.UnixMilli(p.LastSeen), now, "ago", "from now"),
			formatMillis(p.FirstSeen),
		)
	}
	return nil
}
