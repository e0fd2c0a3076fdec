// Package repl implements the interactive catapillar prompt on top of
// bubbletea.
//
// A [Session] owns the interpreter state: one global [lang.Environment]
// that persists across inputs, and a buffer collecting incomplete input
// until it parses. Output of the print builtin is captured by a [Sink] so
// it can be shown above the prompt instead of corrupting the terminal UI.
//
// The prompt has two modes, toggled with Esc: eval mode evaluates
// catapillar source, command mode runs session commands (help, vars,
// edit, reset, clear, quit). Tab completion ranks identifiers in scope,
// natives and keywords with fuzzy matching; inside a call's argument list
// the callee's signature is shown with the current parameter highlighted.
package repl
