package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/ardnew/catapillar/lang"
	"github.com/ardnew/catapillar/log"
	"github.com/ardnew/catapillar/pkg"
)

const defaultEditor = "vi"

// editor returns the command line of the user's editor.
func editor() []string {
	for _, key := range []string{"VISUAL", "EDITOR"} {
		if f := strings.Fields(os.Getenv(key)); len(f) > 0 {
			return f
		}
	}

	return []string{defaultEditor}
}

// editCommand implements [tea.ExecCommand]. It opens the user's editor on
// a temporary file holding text and parses the result, offering to edit
// again until it parses or the user declines.
type editCommand struct {
	ctx    context.Context
	in     *lang.Interpreter
	text   string
	logger log.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	src *lang.Source // parsed result; nil if the edit was cancelled
}

func (c *editCommand) SetStdin(r io.Reader)  { c.stdin = r }
func (c *editCommand) SetStdout(w io.Writer) { c.stdout = w }
func (c *editCommand) SetStderr(w io.Writer) { c.stderr = w }

// Run executes the edit loop. An empty file cancels the edit; declining to
// fix a parse error returns [ErrEditDeclined].
func (c *editCommand) Run() error {
	f, err := os.CreateTemp("", pkg.Name+"-*"+pkg.Extension)
	if err != nil {
		return err
	}

	path := f.Name()
	defer os.Remove(path)

	if err := f.Close(); err != nil {
		return err
	}

	text := c.text
	input := bufio.NewReader(c.stdin)

	for {
		if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
			return err
		}

		args := append(editor(), path)

		cmd := exec.CommandContext(c.ctx, args[0], args[1:]...)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = c.stdin, c.stdout, c.stderr

		if err := cmd.Run(); err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		if strings.TrimSpace(string(data)) == "" {
			return nil
		}

		src := lang.NewSource("<edit>", string(data))
		_, diags := c.in.Parse(src)

		c.logger.TraceContext(c.ctx, "repl edit parsed",
			slog.Int("bytes", len(data)),
			slog.Int("errors", len(diags)),
		)

		if len(diags) == 0 {
			c.src = src

			return nil
		}

		for _, d := range diags {
			fmt.Fprint(c.stderr, d.Detail())
		}

		fmt.Fprint(c.stdout, "Edit again? [Y/n] ")

		answer, err := input.ReadString('\n')
		if err != nil && answer == "" {
			return ErrEditDeclined
		}

		if a := strings.ToLower(strings.TrimSpace(answer)); a == "n" || a == "no" {
			return ErrEditDeclined
		}

		text = string(data)
	}
}
