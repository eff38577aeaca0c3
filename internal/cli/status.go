package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version         string `json:"version"`
	Backend         string `json:"backend"`
	Driver          string `json:"driver,omitempty"`
	StoragePath     string `json:"storage_path"`
	StorageBytes    int64  `json:"storage_bytes"`
	Namespace       string `json:"namespace,omitempty"`
	Pages           int    `json:"pages"`
	Entries         int64  `json:"entries"`
	NewestEntry     string `json:"newest_entry,omitempty"`
	RetentionMaxAge string `json:"retention_max_age"`
	RetentionMax    int    `json:"retention_max_entries"`
	DedupWindowMs   int64  `json:"dedup_window_ms"`
	TickInterval    string `json:"tick_interval"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	env, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	return c.executeWithEnv(env)
}

// executeWithEnv runs status against a provided environment (for testing).
func (c *StatusCommand) executeWithEnv(env *environment) error {
	cfg := env.cfg
	pages := env.store.Pages()

	var entries int64
	var newest int64
	for _, p := range pages {
		list := env.store.Read(p.PageKey)
		entries += int64(len(list))
		if n := len(list); n > 0 && list[n-1].TS > newest {
			newest = list[n-1].TS
		}
	}

	out := statusJSON{
		Version:         c.version,
		Backend:         cfg.Storage.Backend,
		StoragePath:     cfg.Storage.Path,
		StorageBytes:    env.kv.SizeBytes(),
		Namespace:       cfg.Storage.Namespace,
		Pages:           len(pages),
		Entries:         entries,
		RetentionMaxAge: cfg.Retention.MaxAge.Std().String(),
		RetentionMax:    cfg.Retention.MaxEntries,
		DedupWindowMs:   cfg.DedupWindow().Milliseconds(),
		TickInterval:    cfg.TickInterval().String(),
	}
	if cfg.Storage.Backend == "sqlite" {
		out.Driver = cfg.Storage.Driver
	}
	if newest > 0 {
		out.NewestEntry = time.UnixMilli(newest).UTC().Format(time.RFC3339)
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return c.printStatusHuman(out, newest, env.clock.Now())
}

func (c *StatusCommand) printStatusHuman(s statusJSON, newest int64, now time.Time) error {
	fmt.Println("Runtimelog Status")
	fmt.Println("=================")
	fmt.Printf("Version:       %s\n", s.Version)
	backend := s.Backend
	if s.Driver != "" {
		backend += " (" + s.Driver + ")"
	}
	fmt.Printf("Backend:       %s\n", backend)
	if s.StorageBytes >= 0 {
		fmt.Printf("Storage:       %s (%s)\n", s.StoragePath, humanize.Bytes(uint64(s.StorageBytes)))
	} else {
		fmt.Printf("Storage:       %s\n", s.StoragePath)
	}
	if s.Namespace != "" {
		fmt.Printf("Namespace:     %s\n", s.Namespace)
	}
	fmt.Printf("Pages:         %s\n", humanize.Comma(int64(s.Pages)))
	fmt.Printf("Entries:       %s\n", humanize.Comma(s.Entries))
	if newest > 0 {
		fmt.Printf("Newest:        %s\n", humanize.RelTime(time.UnixMilli(newest), now, "ago", "from now"))
	}
	fmt.Printf("Retention:     %s, %s entries per page\n", s.RetentionMaxAge, humanize.Comma(int64(s.RetentionMax)))
	fmt.Printf("Dedup window:  %dms\n", s.DedupWindowMs)
	fmt.Printf("Tick interval: %s\n", s.TickInterval)
	return nil
}
