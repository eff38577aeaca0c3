package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Log    *LogCommand
	Watch  *WatchCommand
	Ingest *IngestCommand
	Pages  *PagesCommand
	Show   *ShowCommand
	Export *ExportCommand
	Clear  *ClearCommand
	Status *StatusCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "runtimelog"
	parser.LongDescription = "Per-page runtime timers and timestamped logs, kept in a local store."

	cmds := &commands{
		Log:    &LogCommand{globals: &globals, version: version},
		Watch:  &WatchCommand{globals: &globals, version: version},
		Ingest: &IngestCommand{globals: &globals, version: version},
		Pages:  &PagesCommand{globals: &globals, version: version},
		Show:   &ShowCommand{globals: &globals, version: version},
		Export: &ExportCommand{globals: &globals, version: version},
		Clear:  &ClearCommand{globals: &globals, version: version},
		Status: &StatusCommand{globals: &globals, version: version},
	}

	parser.AddCommand("log", "Log one entry for a page", "Record a single manual log entry for the page given by --url.", cmds.Log)
	parser.AddCommand("watch", "Run a page timer", "Start the page timer, log each stdin line, and stop on EOF or interrupt. Control lines: /start, /stop, /reset.", cmds.Watch)
	parser.AddCommand("ingest", "Flush queued messages into a page", "Queue messages from a file or stdin (one per line, or a JSON array) and flush them into the page log.", cmds.Ingest)
	parser.AddCommand("pages", "List known pages", "List registered pages, most recently seen first.", cmds.Pages)
	parser.AddCommand("show", "Print stored entries", "Print stored entries for one page (--url) or every page (--all).", cmds.Show)
	parser.AddCommand("export", "Export entries as text or CSV", "Export entries for one page or every page as text, or one page as CSV.", cmds.Export)
	parser.AddCommand("clear", "Delete logs", "Delete one page's logs, or ALL logs with a safety prompt.", cmds.Clear)
	parser.AddCommand("status", "Show storage and retention summary", "Show backend, page and entry counts, storage size, and retention settings.", cmds.Status)

	return parser, &globals, cmds
}

// Run is the main entry point for the runtimelog CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("runtimelog %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
