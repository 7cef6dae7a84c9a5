// Package logger provides leveled console logging for the overseer loops.
//
// Output is timestamped and mutex-guarded so the worker and dispatcher
// loops can log from their poll cycles without interleaving. Color is
// enabled only when writing to a real terminal and is suppressed by the
// NO_COLOR convention.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Log levels, lowest to highest severity.
const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

var levelNames = map[string]int{
	"debug": levelDebug,
	"info":  levelInfo,
	"warn":  levelWarn,
	"error": levelError,
}

// Console writes timestamped, level-filtered log lines to a writer.
// The zero value is not usable; construct with NewConsole.
type Console struct {
	mu       sync.Mutex
	writer   io.Writer
	minLevel int
	colored  bool
}

// NewConsole creates a Console writing to w. level is one of debug, info,
// warn, error (case-insensitive); empty or unknown values default to info.
// A nil writer discards all output.
func NewConsole(w io.Writer, level string) *Console {
	if w == nil {
		w = io.Discard
	}
	min, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		min = levelInfo
	}
	return &Console{
		writer:   w,
		minLevel: min,
		colored:  isTerminal(w),
	}
}

// isTerminal reports whether w is a TTY that should receive color.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var (
	warnPaint  = color.New(color.FgYellow)
	errorPaint = color.New(color.FgRed)
	debugPaint = color.New(color.FgHiBlack)
)

func (c *Console) log(level int, tag string, paint *color.Color, format string, args ...interface{}) {
	if level < c.minLevel {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	timestamp := time.Now().Format("15:04:05")
	message := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] %s%s", timestamp, tag, message)
	if c.colored && paint != nil {
		line = paint.Sprint(line)
	}
	fmt.Fprintln(c.writer, line)
}

// Debugf logs at debug level.
func (c *Console) Debugf(format string, args ...interface{}) {
	c.log(levelDebug, "DEBUG ", debugPaint, format, args...)
}

// Infof logs at info level.
func (c *Console) Infof(format string, args ...interface{}) {
	c.log(levelInfo, "", nil, format, args...)
}

// Warnf logs at warn level.
func (c *Console) Warnf(format string, args ...interface{}) {
	c.log(levelWarn, "WARN ", warnPaint, format, args...)
}

// Errorf logs at error level.
func (c *Console) Errorf(format string, args ...interface{}) {
	c.log(levelError, "ERROR ", errorPaint, format, args...)
}
