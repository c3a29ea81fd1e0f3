// Package logx contains logging extensions: an apex/log handler for
// command line tools and loggers wrapping a model.Logger.
package logx

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/apex/log"
	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
)

// Colors maps a log level to its color.
var Colors = [...]*color.Color{
	log.DebugLevel: color.New(color.FgWhite),
	log.InfoLevel:  color.New(color.FgBlue),
	log.WarnLevel:  color.New(color.FgYellow),
	log.ErrorLevel: color.New(color.FgRed),
	log.FatalLevel: color.New(color.FgRed),
}

// Strings maps a log level to its symbol.
var Strings = [...]string{
	log.DebugLevel: "•",
	log.InfoLevel:  "•",
	log.WarnLevel:  "•",
	log.ErrorLevel: "⨯",
	log.FatalLevel: "⨯",
}

// Emojis maps a log level to its emoji, used when Handler.Emoji is true.
var Emojis = [...]string{
	log.DebugLevel: "🧐",
	log.InfoLevel:  "🗒️",
	log.WarnLevel:  "🔥",
	log.ErrorLevel: "💥",
	log.FatalLevel: "💥",
}

var bold = color.New(color.Bold)

// Handler is an apex/log handler for command line tools.
type Handler struct {
	// Emoji OPTIONALLY uses emojis rather than symbols for levels.
	Emoji bool

	// Padding is the MANDATORY number of spaces before the level symbol.
	Padding int

	// Writer is the MANDATORY writer.
	Writer io.Writer

	mu sync.Mutex
}

var _ log.Handler = &Handler{}

// NewHandlerWithDefaultSettings creates a Handler writing on stderr.
func NewHandlerWithDefaultSettings() *Handler {
	return NewHandler(os.Stderr)
}

// NewHandler creates a new Handler writing on w. When w is an
// *os.File we make sure colors also work on Windows consoles.
func NewHandler(w io.Writer) *Handler {
	if f, ok := w.(*os.File); ok {
		w = colorable.NewColorable(f)
	}
	return &Handler{
		Padding: 3,
		Writer:  w,
	}
}

// HandleLog implements log.Handler.
func (h *Handler) HandleLog(e *log.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := e.Fields["type"].(string); ok && t == "table" {
		return h.logTable(e)
	}
	return h.logDefault(e)
}

func (h *Handler) levelSymbol(level log.Level) string {
	if h.Emoji {
		return Emojis[level]
	}
	return Strings[level]
}

func (h *Handler) logDefault(e *log.Entry) error {
	color := Colors[e.Level]
	symbol := h.levelSymbol(e.Level)
	s := color.Sprintf("%s %-25s", bold.Sprintf("%*s", h.Padding+1, symbol), e.Message)
	for _, name := range e.Fields.Names() {
		if name == "source" {
			continue
		}
		s += fmt.Sprintf(" %s=%v", color.Sprint(name), e.Fields.Get(name))
	}
	_, err := fmt.Fprintln(h.Writer, s)
	return err
}

// logTable prints the fields of the entry, except "type", inside a box
// whose title is the log message.
func (h *Handler) logTable(e *log.Entry) error {
	names := e.Fields.Names()
	sort.Strings(names)
	var lines []string
	width := utf8.RuneCountInString(e.Message)
	for _, name := range names {
		if name == "type" {
			continue
		}
		line := fmt.Sprintf("%s: %v", name, e.Fields.Get(name))
		lines = append(lines, line)
		if n := utf8.RuneCountInString(line); n > width {
			width = n
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "┏%s┓\n", strings.Repeat("━", width+2))
	fmt.Fprintf(&b, "┃ %s ┃\n", bold.Sprint(rightPad(e.Message, width)))
	fmt.Fprintf(&b, "┣%s┫\n", strings.Repeat("━", width+2))
	for _, line := range lines {
		fmt.Fprintf(&b, "┃ %s ┃\n", rightPad(line, width))
	}
	fmt.Fprintf(&b, "┗%s┛\n", strings.Repeat("━", width+2))
	_, err := io.WriteString(h.Writer, b.String())
	return err
}

func rightPad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
