package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress events from batch runs.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
	OnError(index int, err error)
}

// NoOpProgressCallback ignores every event.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()         {}
func (NoOpProgressCallback) OnError(int, error)  {}

// ConsoleProgressCallback renders a single-line bar, redrawn in place.
type ConsoleProgressCallback struct {
	mu       sync.Mutex
	w        io.Writer
	prefix   string
	width    int
	interval time.Duration
	now      func() time.Time
	start    time.Time
	last     time.Time
	errors   int
}

// NewConsoleProgressCallback writes to w (stderr when nil).
func NewConsoleProgressCallback(w io.Writer, prefix string) *ConsoleProgressCallback {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgressCallback{w: w, prefix: prefix, width: 30, interval: 100 * time.Millisecond, now: time.Now}
}

// WithWidth sets the bar width in cells.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	if width > 0 {
		c.width = width
	}
	return c
}

// WithUpdateInterval limits how often the bar is redrawn. The final update is always drawn.
func (c *ConsoleProgressCallback) WithUpdateInterval(d time.Duration) *ConsoleProgressCallback {
	c.interval = d
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = c.now()
	c.last = time.Time{}
	c.errors = 0
	_, _ = fmt.Fprintf(c.w, "%s0/%d frames (0.0%%)\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if total <= 0 {
		return
	}
	now := c.now()
	if current < total && now.Sub(c.last) < c.interval {
		return
	}
	c.last = now

	filled := c.width * current / total
	bar := strings.Repeat("#", filled) + strings.Repeat(".", c.width-filled)
	line := fmt.Sprintf("\r%s[%s] %d/%d frames (%.1f%%)", c.prefix, bar, current, total,
		100*float64(current)/float64(total))
	if elapsed := now.Sub(c.start); elapsed > 0 && current > 0 {
		line += fmt.Sprintf(" %.1f fps", float64(current)/elapsed.Seconds())
	}
	_, _ = fmt.Fprint(c.w, line)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := c.now().Sub(c.start).Round(time.Millisecond)
	if c.errors > 0 {
		_, _ = fmt.Fprintf(c.w, "\n%sdone in %v, %d failed\n", c.prefix, elapsed, c.errors)
		return
	}
	_, _ = fmt.Fprintf(c.w, "\n%sdone in %v\n", c.prefix, elapsed)
}

func (c *ConsoleProgressCallback) OnError(index int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors++
	_, _ = fmt.Fprintf(c.w, "\n%sframe %d failed: %v\n", c.prefix, index, err)
}

// LogProgressCallback reports progress through slog every N frames.
type LogProgressCallback struct {
	mu     sync.Mutex
	logger *slog.Logger
	every  int
	last   int
	start  time.Time
}

// NewLogProgressCallback logs through logger (slog.Default when nil).
func NewLogProgressCallback(logger *slog.Logger) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, every: 10}
}

// WithInterval logs every n frames.
func (l *LogProgressCallback) WithInterval(n int) *LogProgressCallback {
	if n > 0 {
		l.every = n
	}
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.start = time.Now()
	l.last = 0
	l.logger.Info("lane detection started", "frames", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current-l.last < l.every && current != total {
		return
	}
	l.last = current
	l.logger.Info("lane detection progress", "done", current, "total", total,
		"elapsed", time.Since(l.start).Round(time.Millisecond).String())
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Info("lane detection finished", "elapsed", time.Since(l.start).Round(time.Millisecond).String())
}

func (l *LogProgressCallback) OnError(index int, err error) {
	l.logger.Warn("frame failed", "index", index, "error", err)
}

// MultiProgressCallback fans events out to several callbacks.
type MultiProgressCallback []ProgressCallback

func (m MultiProgressCallback) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgressCallback) OnProgress(current, total int) {
	for _, cb := range m {
		cb.OnProgress(current, total)
	}
}

func (m MultiProgressCallback) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}

func (m MultiProgressCallback) OnError(index int, err error) {
	for _, cb := range m {
		cb.OnError(index, err)
	}
}
