package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/runnerr0/runtimelog/internal/hostqueue"
)

// Execute implements the go-flags Commander interface for IngestCommand.
func (c *IngestCommand) Execute(args []string) error {
	env, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	return c.executeWithEnv(context.Background(), env)
}

// executeWithEnv queues the input messages and flushes them into a logger
// for the page.
func (c *IngestCommand) executeWithEnv(ctx context.Context, env *environment) error {
	pageKey, err := pageKeyFlag("ingest", c.URL)
	if err != nil {
		return err
	}

	data, err := c.readInput()
	if err != nil {
		return err
	}
	messages, err := parseMessages(data)
	if err != nil {
		return err
	}

	q := hostqueue.New()
	q.Fallback = os.Stderr
	q.Log = env.log.Named("hostqueue")
	for _, m := range messages {
		q.Add(m)
	}

	env.attachDispatcher(nil, nil)
	logger := env.newLogger(pageKey, nil)
	defer logger.Close()

	res := q.Flush(ctx, func() hostqueue.Sink { return logger })

	if c.globals != nil && c.globals.JSON {
		out := map[string]interface{}{
			"page":      pageKey,
			"delivered": res.Delivered,
			"fallback":  res.Fallback,
			"failed":    res.Failed,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Ingested %d message(s) into %s\n", res.Delivered, pageKey)
	if res.Failed > 0 {
		fmt.Printf("  Failed: %d\n", res.Failed)
	}
	return nil
}

func (c *IngestCommand) readInput() ([]byte, error) {
	if c.File == "" || c.File == "-" {
		data, err := io.ReadAll(stdinOr(c.stdin))
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(c.File)
	if err != nil {
		return nil, fmt.Errorf("reading input file: %w", err)
	}
	return data, nil
}

// parseMessages accepts a JSON array (each element becomes one message) or
// plain text with one message per non-blank line.
func parseMessages(data []byte) ([]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("parsing JSON input: %w", err)
		}
		return items, nil
	}

	var out []any
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}
