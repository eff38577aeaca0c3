package cli

import (
	"fmt"
	"os"

	"github.com/runnerr0/runtimelog/internal/logstore"
)

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	env, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	return c.executeWithEnv(env)
}

func (c *ExportCommand) executeWithEnv(env *environment) error {
	target, err := targetFlags("export", c.URL, c.All)
	if err != nil {
		return err
	}

	var content string
	switch c.Format {
	case "", "text":
		content = env.store.ExportText(target)
	case "csv":
		if target == logstore.AllPages {
			return fmt.Errorf("csv export needs a single page (--url)")
		}
		content = logstore.ExportCSV(env.store.Read(target))
	default:
		return fmt.Errorf("invalid format %q: use text or csv", c.Format)
	}

	if c.Output == "" {
		fmt.Println(content)
		return nil
	}

	if err := os.WriteFile(c.Output, []byte(content+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	if c.globals == nil || !c.globals.JSON {
		fmt.Printf("Exported %s to %s\n", exportLabel(target), c.Output)
	}
	return nil
}

func exportLabel(target string) string {
	if target == logstore.AllPages {
		return "all pages"
	}
	return target
}
