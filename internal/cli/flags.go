package cli

import "io"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// LogCommand records one manual entry for a page.
type LogCommand struct {
	URL  string `long:"url" description:"Page URL or path the entry belongs to (required)"`
	Tag  string `long:"tag" description:"Optional tag stored with the entry"`
	Args struct {
		Text []string `positional-arg-name:"TEXT" description:"Text to log"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
	env     *environment // injectable for testing; nil means open from config
}

// WatchCommand runs the page timer, logging stdin lines until EOF or a signal.
type WatchCommand struct {
	URL         string `long:"url" description:"Page URL or path to time (required)"`
	MetricsAddr string `long:"metrics-addr" description:"Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)"`
	Console     bool   `long:"console" description:"Also mirror dispatched lines to stderr"`

	globals *GlobalFlags
	version string
	env     *environment
	stdin   io.Reader
}

// IngestCommand queues messages from a file and flushes them into a page logger.
type IngestCommand struct {
	URL  string `long:"url" description:"Page URL or path to log into (required)"`
	File string `long:"file" description:"Input file: one message per line or a JSON array (default stdin)"`

	globals *GlobalFlags
	version string
	env     *environment
	stdin   io.Reader
}

// PagesCommand lists known pages, most recently seen first.
type PagesCommand struct {
	globals *GlobalFlags
	version string
	env     *environment
}

// ShowCommand prints stored entries for one page or all pages.
type ShowCommand struct {
	URL string `long:"url" description:"Page URL or path"`
	All bool   `long:"all" description:"Show every page"`

	globals *GlobalFlags
	version string
	env     *environment
}

// ExportCommand exports entries as text or CSV.
type ExportCommand struct {
	URL    string `long:"url" description:"Page URL or path"`
	All    bool   `long:"all" description:"Export every page (text only)"`
	Format string `long:"format" description:"Output format: text | csv" default:"text"`
	Output string `long:"output" description:"Write to file instead of stdout"`

	globals *GlobalFlags
	version string
	env     *environment
}

// ClearCommand deletes one page's logs, or all logs with a safety prompt.
type ClearCommand struct {
	URL   string `long:"url" description:"Page URL or path to clear"`
	All   bool   `long:"all" description:"Clear every page"`
	Force bool   `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	env     *environment
	stdin   io.Reader
}

// StatusCommand shows backend, counts and retention.
type StatusCommand struct {
	globals *GlobalFlags
	version string
	env     *environment
}
