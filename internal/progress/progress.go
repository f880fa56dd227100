// Package progress reports long-running API calls in CLI mode: a spinner on
// a terminal, plain lines otherwise.
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Reporter is the interface for reporting an operation of unknown length.
type Reporter interface {
	Start(description string)
	Done(message string)
	Error(err error)
}

// CLIProgress renders a spinner on stderr while an operation runs. When
// stderr is not a terminal it prints one line per state change instead.
type CLIProgress struct {
	out        io.Writer
	isTerminal bool
	bar        *progressbar.ProgressBar
}

// NewCLIProgress creates a reporter writing to stderr.
func NewCLIProgress() *CLIProgress {
	return &CLIProgress{
		out:        os.Stderr,
		isTerminal: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// NewCLIProgressTo creates a reporter writing plain lines to w.
func NewCLIProgressTo(w io.Writer) *CLIProgress {
	return &CLIProgress{out: w}
}

// Start begins the spinner with a description.
func (p *CLIProgress) Start(description string) {
	if !p.isTerminal {
		fmt.Fprintf(p.out, "%s...\n", description)
		return
	}
	p.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
	go p.spin(p.bar)
}

func (p *CLIProgress) spin(bar *progressbar.ProgressBar) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if bar.IsFinished() {
			return
		}
		_ = bar.Add(1)
	}
}

func (p *CLIProgress) stop() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

// Done stops the spinner and prints message.
func (p *CLIProgress) Done(message string) {
	p.stop()
	if message != "" {
		fmt.Fprintf(p.out, "✓ %s\n", message)
	}
}

// Error stops the spinner and prints err.
func (p *CLIProgress) Error(err error) {
	p.stop()
	if err != nil {
		fmt.Fprintf(p.out, "✗ %v\n", err)
	}
}

// Run reports fn as one operation on r.
func Run(r Reporter, description, doneMessage string, fn func() error) error {
	r.Start(description)
	if err := fn(); err != nil {
		r.Error(err)
		return err
	}
	r.Done(doneMessage)
	return nil
}
