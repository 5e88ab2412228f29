package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Console writes one line when an operation starts and one when it ends.
type Console struct {
	out     io.Writer
	verbose bool
	now     func() time.Time

	mu sync.Mutex
}

// NewConsole creates a console reporter writing to out. When verbose is
// false only failures and completions are shown.
func NewConsole(out io.Writer, verbose bool) *Console {
	return &Console{out: out, verbose: verbose, now: time.Now}
}

// Start announces an operation.
func (c *Console) Start(category, shortLabel, longLabel string) Operation {
	op := &consoleOperation{
		console:  c,
		id:       uuid.New().String(),
		category: category,
		label:    shortLabel,
		started:  c.now(),
	}

	log.WithFields(log.Fields{"op": op.id, "category": category}).Debugf("start %s", longLabel)

	if c.verbose {
		c.printf("%s %s\n", color.CyanString("> %s", category), longLabel)
	}

	return op
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, format, args...)
}

type consoleOperation struct {
	console  *Console
	id       string
	category string
	label    string
	started  time.Time

	once sync.Once
	err  error
}

// ID correlates the start and completion lines in the debug log.
func (o *consoleOperation) ID() string { return o.id }

func (o *consoleOperation) Failed(err error) {
	o.err = err
}

func (o *consoleOperation) Complete() {
	o.once.Do(func() {
		elapsed := o.console.now().Sub(o.started).Round(time.Millisecond)
		log.WithFields(log.Fields{"op": o.id, "elapsed": elapsed}).Debugf("complete %s", o.label)

		if o.err != nil {
			o.console.printf("%s %s (%s)\n", color.RedString("x %s", o.category), o.label, elapsed)
			return
		}

		o.console.printf("%s %s (%s)\n", color.GreenString("✓ %s", o.category), o.label, elapsed)
	})
}
