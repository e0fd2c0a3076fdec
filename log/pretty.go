package log

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"
)

// prettyStyles holds the styles of one output; lipgloss picks the color
// profile from the writer, so non-terminal outputs get plain text.
type prettyStyles struct {
	time, key, caller, message lipgloss.Style
	levels                     map[Level]lipgloss.Style
}

func newPrettyStyles(r *lipgloss.Renderer) *prettyStyles {
	return &prettyStyles{
		time:    r.NewStyle().Foreground(lipgloss.Color("8")),
		key:     r.NewStyle().Foreground(lipgloss.Color("6")),
		caller:  r.NewStyle().Foreground(lipgloss.Color("8")).Italic(true),
		message: r.NewStyle().Bold(true),
		levels: map[Level]lipgloss.Style{
			LevelTrace: r.NewStyle().Foreground(lipgloss.Color("5")),
			LevelDebug: r.NewStyle().Foreground(lipgloss.Color("4")),
			LevelInfo:  r.NewStyle().Foreground(lipgloss.Color("2")),
			LevelWarn:  r.NewStyle().Foreground(lipgloss.Color("3")),
			LevelError: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
	}
}

func (s *prettyStyles) level(l Level) lipgloss.Style {
	switch {
	case l >= LevelError:
		return s.levels[LevelError]
	case l >= LevelWarn:
		return s.levels[LevelWarn]
	case l >= LevelInfo:
		return s.levels[LevelInfo]
	case l >= LevelDebug:
		return s.levels[LevelDebug]
	default:
		return s.levels[LevelTrace]
	}
}

// prettyHandler writes one styled line per record:
//
//	TIME LEVEL [file:line] message key=value ...
type prettyHandler struct {
	cfg    config
	styles *prettyStyles
	mu     *sync.Mutex
	prefix string // group prefix of attrs added after WithGroup
	attrs  []byte // preformatted attrs from WithAttrs
}

func newPrettyHandler(c config) *prettyHandler {
	return &prettyHandler{
		cfg:    c,
		styles: newPrettyStyles(lipgloss.NewRenderer(c.output)),
		mu:     &sync.Mutex{},
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return Level(level) >= h.cfg.level
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	if h.cfg.timeLayout != "" && !r.Time.IsZero() {
		buf.WriteString(h.styles.time.Render(r.Time.Format(h.cfg.timeLayout)))
		buf.WriteByte(' ')
	}

	level := Level(r.Level)
	name := strings.ToUpper(level.String())
	buf.WriteString(h.styles.level(level).Render(name))

	if n := len("ERROR") - len(name); n > 0 {
		buf.WriteString(strings.Repeat(" ", n))
	}

	if h.cfg.caller && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			buf.WriteByte(' ')
			buf.WriteString(h.styles.caller.Render(
				filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)))
		}
	}

	buf.WriteByte(' ')
	buf.WriteString(h.styles.message.Render(r.Message))
	buf.Write(h.attrs)

	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&buf, h.prefix, a)

		return true
	})

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.cfg.output.Write(buf.Bytes())

	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	c := *h

	var buf bytes.Buffer

	buf.Write(h.attrs)

	for _, a := range attrs {
		h.appendAttr(&buf, h.prefix, a)
	}

	c.attrs = buf.Bytes()

	return &c
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	c := *h
	c.prefix = h.prefix + name + "."

	return &c
}

func (h *prettyHandler) appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}

		for _, ga := range a.Value.Group() {
			h.appendAttr(buf, prefix, ga)
		}

		return
	}

	buf.WriteByte(' ')
	buf.WriteString(h.styles.key.Render(prefix + a.Key))
	buf.WriteByte('=')
	buf.WriteString(h.formatValue(a.Value))
}

func (h *prettyHandler) formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return quoteIfNeeded(v.String())
	case slog.KindTime:
		layout := h.cfg.timeLayout
		if layout == "" {
			layout = time.RFC3339
		}

		return v.Time().Format(layout)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return quoteIfNeeded(err.Error())
		}

		return quoteIfNeeded(v.String())
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}

	for _, r := range s {
		if unicode.IsSpace(r) || r == '"' || r == '=' || !unicode.IsPrint(r) {
			return strconv.Quote(s)
		}
	}

	return s
}
