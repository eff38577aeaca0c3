package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/runnerr0/runtimelog/internal/logstore"
)

// Execute implements the go-flags Commander interface for ClearCommand.
func (c *ClearCommand) Execute(args []string) error {
	target, err := targetFlags("clear", c.URL, c.All)
	if err != nil {
		return err
	}

	// Confirmation prompt unless --force
	if target == logstore.AllPages && !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete ALL runtime logs.")
		fmt.Println("  - Every page's entries")
		fmt.Println("  - The page index")
		fmt.Println()
		fmt.Println("This action cannot be undone.")
		fmt.Println()
		fmt.Print(`Type "CLEAR" to confirm: `)

		scanner := bufio.NewScanner(stdinOr(c.stdin))
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		input := strings.TrimSpace(scanner.Text())
		if input != "CLEAR" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	env, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	return c.executeWithEnv(env, target)
}

func (c *ClearCommand) executeWithEnv(env *environment, target string) error {
	if target == logstore.AllPages {
		env.store.ClearAll()
	} else {
		env.store.ClearPage(target)
	}
	remaining := len(env.store.ListPageKeys())

	if c.globals != nil && c.globals.JSON {
		out := map[string]interface{}{
			"cleared":         exportLabel(target),
			"pages_remaining": remaining,
		}
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(out)
	}

	if target == logstore.AllPages {
		fmt.Println("Cleared all runtime logs.")
	} else {
		fmt.Printf("Cleared %s (%d page(s) remain).\n", target, remaining)
	}
	return nil
}
