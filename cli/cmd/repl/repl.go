package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/sahilm/fuzzy"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ardnew/catapillar/lang"
	"github.com/ardnew/catapillar/lang/builtin"
	"github.com/ardnew/catapillar/log"
)

// Mode selects how submitted input is interpreted.
type Mode int

// Input modes.
const (
	ModeEval Mode = iota
	ModeCommand
)

const (
	evalPrompt     = "➜ "
	continuePrompt = "… "
	commandPrompt  = " :"
)

const helpText = `
: Commands (press Esc to toggle mode):

  help     Print this help
  vars     List global bindings
  edit     Edit pending input in $VISUAL or $EDITOR and run it
  reset    Discard every global binding
  clear    Clear screen
  quit     Exit REPL

Usage:
  Type a statement to run it; its value is printed
  Unfinished statements continue on the next line, a blank line gives up
  Completions appear as you type; Tab / Shift-Tab cycle through them
  Calls show the signature of the callee with the current argument marked
  Up/Down browse history, Shift-Up/Shift-Down only within the current mode
  Press Ctrl+C on an empty line or Ctrl+D to exit`

// Styles.
var (
	promptStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	commandPromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	inputStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	resultStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	suggestionStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	matchStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	selectedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("4"))
	selectedMatchStyle = selectedStyle.Bold(true)
	signatureStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	signatureNameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	currentParamStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// Config configures [Run].
type Config struct {
	Interpreter *lang.Interpreter
	Env         *lang.Environment // nil starts a fresh global scope
	Sink        *Sink             // print output of the interpreter, if captured
	Bundles     []builtin.Bundle  // source of native signatures
	HistoryFile string            // empty disables persistent history
	Logger      log.Logger
	Input       io.Reader
	Output      io.Writer
}

// Run starts the REPL and blocks until the user quits or ctx is done. When
// Input is not a terminal, lines are read and evaluated without the
// interactive UI.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Interpreter == nil {
		return ErrNoSession
	}

	if cfg.Input == nil {
		cfg.Input = os.Stdin
	}

	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	session := NewSession(cfg.Interpreter, cfg.Env, cfg.Sink, cfg.Logger)

	if !interactive(cfg.Input) {
		cfg.Logger.TraceContext(ctx, "repl batch")

		return batch(ctx, session, cfg.Input, cfg.Output)
	}

	history := NewHistory(cfg.HistoryFile)
	if err := history.Load(); err != nil {
		cfg.Logger.WarnContext(ctx, "could not load history",
			slog.String("file", cfg.HistoryFile), slog.Any("error", err))
	}

	cfg.Logger.TraceContext(ctx, "repl start",
		slog.String("history", cfg.HistoryFile),
		slog.Int("entries", history.Len()),
	)

	if cfg.Sink != nil {
		cfg.Sink.Capture()
	}

	m := newModel(ctx, session, cfg.Bundles, history, cfg.Logger)

	_, err := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(cfg.Input),
		tea.WithOutput(cfg.Output),
	).Run()

	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}

	return err
}

func interactive(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// batch evaluates the lines of r in s, writing each non-null result to w.
// Errors are written and do not stop the session.
func batch(ctx context.Context, s *Session, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)

	flush := func(res Result) {
		fmt.Fprint(w, res.Printed)

		if res.Err != nil {
			fmt.Fprint(w, describeError(res.Err))

			return
		}

		if shown(res.Value) {
			fmt.Fprintln(w, lang.Repr(res.Value))
		}
	}

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if res := s.Eval(ctx, sc.Text()); !res.Pending {
			flush(res)
		}
	}

	if s.Pending() {
		flush(s.Eval(ctx, ""))
	}

	return sc.Err()
}

// shown reports whether a result value is printed.
func shown(v lang.Value) bool {
	if v == nil {
		return false
	}

	_, null := v.(lang.Null)

	return !null
}

// describeError renders err with source excerpts, ending in a newline.
func describeError(err error) string {
	var diags lang.Diagnostics
	if errors.As(err, &diags) && len(diags) > 0 {
		var b strings.Builder
		for _, d := range diags {
			b.WriteString(d.Detail())
		}

		return b.String()
	}

	var diag *lang.Diagnostic
	if errors.As(err, &diag) {
		return diag.Detail()
	}

	return "error: " + err.Error() + "\n"
}

// editedMsg carries the source saved by the editor.
type editedMsg struct{ src *lang.Source }

// editCancelledMsg is sent when the editor left the file empty.
type editCancelledMsg struct{}

// editFailedMsg is sent when editing failed or was declined.
type editFailedMsg struct{ err error }

// model is the bubbletea model of the REPL.
type model struct {
	ctx     context.Context
	session *Session
	bundles []builtin.Bundle
	history *History
	logger  log.Logger
	input   textinput.Model
	mode    Mode
	width   int

	historyIdx int

	matches   fuzzy.Matches
	wordStart int // byte range of the word being completed
	wordEnd   int
	suggIdx   int
	tabActive bool
	preTab    string // input before tab cycling began
	preCursor int

	saved    [2]string // input of the inactive mode
	quitting bool
}

const defaultWidth = 80

func newModel(
	ctx context.Context,
	s *Session,
	bundles []builtin.Bundle,
	h *History,
	logger log.Logger,
) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(evalPrompt)
	ti.CharLimit = 4096
	ti.Width = defaultWidth
	ti.Focus()

	return model{
		ctx:        ctx,
		session:    s,
		bundles:    bundles,
		history:    h,
		logger:     logger,
		input:      ti,
		width:      defaultWidth,
		historyIdx: h.Len(),
		suggIdx:    -1,
	}
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-lipgloss.Width(evalPrompt)-2, 1)

		return m, nil

	case editedMsg:
		return m, m.output(m.session.Source(m.ctx, msg.src))

	case editCancelledMsg:
		return m, tea.Println(hintStyle.Render("edit cancelled"))

	case editFailedMsg:
		if errors.Is(msg.err, ErrEditDeclined) {
			return m, tea.Println(hintStyle.Render("edit discarded"))
		}

		return m, tea.Println(errorStyle.Render("error: " + msg.err.Error()))
	}

	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.input.View())
	b.WriteByte('\n')
	b.WriteString(m.hint())
	b.WriteByte('\n')

	return b.String()
}

// hint returns the line shown below the input.
func (m model) hint() string {
	value := m.input.Value()
	cursor := m.cursor()

	if m.historyIdx < m.history.Len() {
		pos := lipgloss.NewStyle().Bold(true).Render(strconv.Itoa(m.historyIdx + 1))

		return hintStyle.Render(pos + "/" + strconv.Itoa(m.history.Len()))
	}

	if strings.TrimSpace(value) == "" {
		switch {
		case m.mode == ModeCommand:
			return hintStyle.Render("Type: " + strings.Join(commands, ", ") + " (press Esc to return)")
		case m.session.Pending():
			return hintStyle.Render("Continue the statement, or submit a blank line to give up")
		default:
			return hintStyle.Render("Type a statement or press Esc for commands")
		}
	}

	if m.mode == ModeEval && !m.tabActive {
		if c, ok := enclosingCall(value, cursor); ok {
			if sig, ok := lookupSignature(m.session, m.bundles, c.name); ok {
				return sig.render(c.arg)
			}
		}
	}

	return renderCandidates(m.session, m.matches, m.selected(), m.width)
}

func (m model) selected() int {
	if m.tabActive {
		return m.suggIdx
	}

	return -1
}

// cursor returns the byte offset of the cursor in the input.
func (m model) cursor() int { return runeOffset(m.input.Value(), m.input.Position()) }

// setInput replaces the input and places the cursor at byte offset pos.
func (m *model) setInput(value string, pos int) {
	m.input.SetValue(value)
	m.input.SetCursor(utf8.RuneCountInString(value[:min(pos, len(value))]))
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	m.logger.TraceContext(m.ctx, "repl key", slog.String("key", msg.String()))

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.input.Value() == "" && !m.session.Pending() {
			m.quitting = true

			return m, tea.Quit
		}

		m.session.Discard()
		m.input.SetValue("")
		m.tabActive = false
		m.historyIdx = m.history.Len()
		m.refresh(false)
		m.input.Prompt = m.prompt()

		return m, nil

	case tea.KeyCtrlD:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		return m, nil

	case tea.KeyEnter:
		if m.tabActive && len(m.matches) > 0 {
			m.tabActive = false
			m.refresh(true)

			return m, nil
		}

		return m.submit()

	case tea.KeyTab:
		return m.cycle(1), nil

	case tea.KeyShiftTab:
		return m.cycle(-1), nil

	case tea.KeyUp:
		return m.browse(-1, false), nil

	case tea.KeyDown:
		return m.browse(1, false), nil

	case tea.KeyShiftUp:
		return m.browse(-1, true), nil

	case tea.KeyShiftDown:
		return m.browse(1, true), nil

	case tea.KeyEsc:
		if m.tabActive {
			m.tabActive = false
			m.setInput(m.preTab, m.preCursor)
			m.refresh(false)

			return m, nil
		}

		if m.mode == ModeEval {
			return m.switchMode(ModeCommand), nil
		}

		return m.switchMode(ModeEval), nil

	case tea.KeyRunes, tea.KeySpace:
		if m.tabActive && msg.String() == " " {
			m.tabActive = false
		}

		var cmd tea.Cmd

		m.historyIdx = m.history.Len()
		m.input, cmd = m.input.Update(msg)
		m.refresh(true)

		return m, cmd
	}

	var cmd tea.Cmd

	m.tabActive = false
	m.historyIdx = m.history.Len()
	m.input, cmd = m.input.Update(msg)
	m.refresh(false)

	return m, cmd
}

// cycle moves the tab selection by step, completing the selected word.
func (m model) cycle(step int) model {
	if len(m.matches) == 0 {
		return m
	}

	if len(m.matches) == 1 {
		m.replaceWord(m.matches[0].Str)
		m.tabActive = false
		m.matches = nil

		return m
	}

	if !m.tabActive {
		m.tabActive = true
		m.preTab = m.input.Value()
		m.preCursor = m.cursor()

		if step > 0 {
			m.suggIdx = 0
		} else {
			m.suggIdx = len(m.matches) - 1
		}
	} else {
		m.suggIdx = (m.suggIdx + step + len(m.matches)) % len(m.matches)
	}

	m.replaceWord(m.matches[m.suggIdx].Str)

	return m
}

func (m *model) replaceWord(word string) {
	value := m.input.Value()
	value = value[:m.wordStart] + word + value[m.wordEnd:]
	m.wordEnd = m.wordStart + len(word)
	m.setInput(value, m.wordEnd)
}

// refresh recomputes completions for the word at the cursor. With confirm
// set, a word that already equals its only candidate is accepted.
func (m *model) refresh(confirm bool) {
	value := m.input.Value()
	cursor := m.cursor()

	word, start, end := wordBounds(value, cursor)
	m.wordStart, m.wordEnd = start, end

	if m.mode == ModeEval && insideString(value, start) {
		word = ""
	}

	m.matches = match(word, candidates(m.session, m.mode))

	if !m.tabActive {
		m.suggIdx = -1
	}

	if confirm && len(m.matches) == 1 && m.matches[0].Str == word {
		m.matches = nil
	}
}

// browse moves through history. Within a mode it skips entries of the
// other mode; otherwise the mode follows the entry.
func (m model) browse(step int, sameMode bool) model {
	i := m.historyIdx + step

	for ; i >= 0 && i < m.history.Len(); i += step {
		e, err := m.history.At(i)
		if err != nil {
			return m
		}

		if sameMode && e.Mode != m.mode {
			continue
		}

		if e.Mode != m.mode {
			m = m.switchMode(e.Mode)
		}

		m.historyIdx = i
		m.setInput(e.Line, len(e.Line))
		m.refresh(false)

		return m
	}

	if step > 0 {
		m.historyIdx = m.history.Len()
		m.input.SetValue("")
		m.refresh(false)
	}

	return m
}

// switchMode changes mode, keeping the input of each mode.
func (m model) switchMode(mode Mode) model {
	if mode == m.mode {
		return m
	}

	m.saved[m.mode] = m.input.Value()
	m.mode = mode
	m.input.Prompt = m.prompt()
	m.setInput(m.saved[mode], len(m.saved[mode]))
	m.tabActive = false
	m.refresh(false)

	return m
}

func (m model) prompt() string {
	switch {
	case m.mode == ModeCommand:
		return commandPromptStyle.Render(commandPrompt)
	case m.session.Pending():
		return promptStyle.Render(continuePrompt)
	default:
		return promptStyle.Render(evalPrompt)
	}
}

func (m model) submit() (model, tea.Cmd) {
	line := m.input.Value()
	if strings.TrimSpace(line) == "" && !m.session.Pending() {
		return m, nil
	}

	echo := tea.Println(m.input.Prompt + inputStyle.Render(line))

	m.input.SetValue("")
	m.saved[m.mode] = ""
	m.matches = nil

	if err := m.history.Add(line, m.mode); err != nil {
		m.logger.DebugContext(m.ctx, "could not save history", slog.Any("error", err))
	}

	m.historyIdx = m.history.Len()

	if m.mode == ModeCommand {
		m.logger.TraceContext(m.ctx, "repl command", slog.String("input", line))

		return m.command(echo, strings.Fields(line))
	}

	m.logger.TraceContext(m.ctx, "repl eval", slog.String("input", line))

	res := m.session.Eval(m.ctx, line)
	m.input.Prompt = m.prompt()

	if res.Pending {
		return m, echo
	}

	return m, tea.Sequence(echo, m.output(res))
}

// output prints the captured output, error, or value of res.
func (m model) output(res Result) tea.Cmd {
	var cmds []tea.Cmd

	if p := strings.TrimSuffix(res.Printed, "\n"); res.Printed != "" {
		cmds = append(cmds, tea.Println(p))
	}

	switch {
	case res.Err != nil:
		m.logger.TraceContext(m.ctx, "repl eval failed", slog.Any("error", res.Err))
		cmds = append(cmds, tea.Println(errorStyle.Render(strings.TrimSuffix(describeError(res.Err), "\n"))))
	case shown(res.Value):
		cmds = append(cmds, tea.Println(resultStyle.Render(lang.Repr(res.Value))))
	}

	return tea.Sequence(cmds...)
}

func (m model) command(echo tea.Cmd, args []string) (model, tea.Cmd) {
	if len(args) == 0 {
		return m, nil
	}

	switch args[0] {
	case "q", "quit", "exit":
		m.quitting = true

		return m, tea.Sequence(echo, tea.Quit)

	case "h", "help":
		return m, tea.Sequence(echo, tea.Println(helpText))

	case "v", "vars":
		return m, tea.Sequence(echo, tea.Println(m.vars()))

	case "r", "reset":
		m.session.Reset()
		m.input.Prompt = m.prompt()

		return m, tea.Sequence(echo, tea.Println(hintStyle.Render("globals cleared")))

	case "c", "clear":
		return m, tea.ClearScreen

	case "e", "edit":
		return m, tea.Sequence(echo, m.edit())

	default:
		return m, tea.Sequence(echo,
			tea.Println(errorStyle.Render("unknown command: "+args[0]+" (try 'help')")))
	}
}

// vars lists the global bindings of the session.
func (m model) vars() string {
	env := m.session.Env()

	var b strings.Builder

	for _, name := range env.Names() {
		v, _ := env.Local(name)
		fmt.Fprintf(&b, "  %s %s\n", name, hintStyle.Render(preview(v)))
	}

	if b.Len() == 0 {
		return hintStyle.Render("  no globals")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// preview returns a one-line rendering of v no longer than 40 runes.
func preview(v lang.Value) string {
	if v == nil {
		return "null"
	}

	s := strings.ReplaceAll(lang.Repr(v), "\n", " ")
	if r := []rune(s); len(r) > 40 {
		return string(r[:37]) + "..."
	}

	return s
}

func (m model) edit() tea.Cmd {
	text := m.session.PendingText()
	if text == "" {
		text = m.saved[ModeEval]
	}

	c := &editCommand{
		ctx:    m.ctx,
		in:     m.session.in,
		text:   text,
		logger: m.logger,
	}

	return tea.Exec(c, func(err error) tea.Msg {
		switch {
		case err != nil:
			return editFailedMsg{err: err}
		case c.src == nil:
			return editCancelledMsg{}
		default:
			return editedMsg{src: c.src}
		}
	})
}
