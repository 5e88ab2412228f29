// Package log configures apex/log for scc.
package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// EnvLevel overrides the configured log level
const EnvLevel = "SCC_LOG"

// InitLogger installs the scc handler on stderr. The SCC_LOG environment
// variable wins over level; unknown names fall back to error.
func InitLogger(level string) {
	if env := os.Getenv(EnvLevel); env != "" {
		level = env
	}

	log.SetHandler(NewHandler(os.Stderr))
	log.SetLevel(ParseLevel(level))
}

// ParseLevel parses an apex/log level name, defaulting to error
func ParseLevel(name string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return log.ErrorLevel
	}

	return lvl
}

// Handler formats log entries as "timestamp L message key=value..."
type Handler struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewHandler creates a handler writing to out
func NewHandler(out io.Writer) *Handler {
	return &Handler{out: out, now: time.Now}
}

// HandleLog implements the log.Handler interface
func (h *Handler) HandleLog(e *log.Entry) error {
	timestamp := h.now().Format("2006-01-02 15:04:05")
	level := strings.ToUpper(e.Level.String())

	var b strings.Builder
	fmt.Fprintf(&b, "%s %.1s %s", timestamp, level, e.Message)

	names := e.Fields.Names()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields.Get(name))
	}

	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := io.WriteString(h.out, b.String())
	return err
}
