package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/runnerr0/runtimelog/internal/events"
	"github.com/runnerr0/runtimelog/internal/timer"
)

// Execute implements the go-flags Commander interface for LogCommand.
func (c *LogCommand) Execute(args []string) error {
	env, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	return c.executeWithEnv(env)
}

// executeWithEnv logs against a provided environment (used by tests).
func (c *LogCommand) executeWithEnv(env *environment) error {
	pageKey, err := pageKeyFlag("log", c.URL)
	if err != nil {
		return err
	}
	text := strings.Join(c.Args.Text, " ")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is required for log command")
	}

	jsonOut := c.globals != nil && c.globals.JSON
	var mirror events.Mirror
	if !jsonOut {
		mirror = env.mirror(os.Stdout)
	}
	env.attachDispatcher(nil, mirror)

	logger := env.newLogger(pageKey, nil)
	defer logger.Close()

	entry := logger.LogWith(text, timer.LogOptions{Tag: c.Tag})

	if jsonOut {
		out := map[string]interface{}{
			"page":  pageKey,
			"entry": entry,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return nil
}
