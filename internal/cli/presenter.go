package cli

import (
	"sync"

	"github.com/runnerr0/runtimelog/internal/console"
	"github.com/runnerr0/runtimelog/internal/logstore"
)

// terminalPresenter is the CLI's display surface: lines for the selected
// page are printed through a console mirror.
type terminalPresenter struct {
	mu        sync.Mutex
	selection string
	out       *console.Mirror
	store     *logstore.Store
	pages     []string
}

func newTerminalPresenter(selection string, out *console.Mirror, store *logstore.Store) *terminalPresenter {
	return &terminalPresenter{selection: selection, out: out, store: store}
}

func (p *terminalPresenter) Selection() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selection
}

// RefreshSelector re-reads the known pages.
func (p *terminalPresenter) RefreshSelector() error {
	pages := p.store.ListPageKeys()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages = pages
	return nil
}

// Pages returns the page list from the last refresh.
func (p *terminalPresenter) Pages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.pages...)
}

func (p *terminalPresenter) AppendLine(e logstore.Entry, pageKey string) error {
	return p.out.Live(e, pageKey)
}
