package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/yotto3s/listscope/internal/config"
	"github.com/yotto3s/listscope/internal/token"
	"github.com/yotto3s/listscope/pkg/listscope"
)

const continuationPrompt = "...> "

// lineReader is the part of readline the REPL loop uses, so piped input can
// drive the same loop.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// basicReader reads lines from a non-terminal.
type basicReader struct {
	in     *bufio.Reader
	out    io.Writer
	prompt string
}

func (b *basicReader) Readline() (string, error) {
	_, _ = io.WriteString(b.out, b.prompt)
	line, err := b.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (b *basicReader) SetPrompt(prompt string) { b.prompt = prompt }

func (b *basicReader) Close() error { return nil }

func runREPL(cmd *cobra.Command, rt *listscope.Runtime, cfg *config.Config, tty bool) error {
	out := cmd.OutOrStdout()

	var rl lineReader
	if tty {
		r, err := readline.NewEx(&readline.Config{
			Prompt:          cfg.Prompt,
			HistoryFile:     cfg.HistoryFile,
			AutoComplete:    newCompleter(rt),
			InterruptPrompt: "^C",
			EOFPrompt:       ".quit",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize REPL: %w", err)
		}
		rl = r
		_, _ = fmt.Fprintln(out, "listscope REPL (Ctrl+D to exit)")
		_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
		_, _ = fmt.Fprintln(out)
	} else {
		rl = &basicReader{in: bufio.NewReader(cmd.InOrStdin()), out: out, prompt: cfg.Prompt}
	}
	defer func() { _ = rl.Close() }()

	var entry strings.Builder
	depth := 0
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			entry.Reset()
			depth = 0
			rl.SetPrompt(cfg.Prompt)
			continue
		}
		if err != nil {
			break
		}

		if entry.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ".") {
			if quit := handleDotCommand(cmd, rt, strings.TrimSpace(line)); quit {
				break
			}
			continue
		}

		entry.WriteString(line)
		entry.WriteString("\n")
		depth += parenDepth(line)
		if depth > 0 {
			rl.SetPrompt(continuationPrompt)
			continue
		}
		rl.SetPrompt(cfg.Prompt)

		src := entry.String()
		entry.Reset()
		depth = 0
		if strings.TrimSpace(src) == "" {
			continue
		}
		// Recovered errors are already reported; an error here ends the
		// session.
		if _, err := rt.Eval(cmd.Context(), src); err != nil {
			return err
		}
	}

	if entry.Len() > 0 {
		if _, err := rt.Eval(cmd.Context(), entry.String()); err != nil {
			return err
		}
	}
	return nil
}

// parenDepth returns the change in nesting a line contributes. Like the
// scanner, it only treats ';' as a comment at the start of a token.
func parenDepth(line string) int {
	d := 0
	tokenStart := true
	for _, r := range line {
		switch {
		case r == token.RuneComment && tokenStart:
			return d
		case unicode.IsSpace(r):
			tokenStart = true
			continue
		}
		tokenStart = token.IsDelimiter(r)
		switch r {
		case token.RuneLParen:
			d++
		case token.RuneRParen:
			d--
		}
	}
	return d
}

func handleDotCommand(cmd *cobra.Command, rt *listscope.Runtime, line string) bool {
	parts := strings.Fields(line)
	out := cmd.OutOrStdout()

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(out)

	case ".symbols":
		renderSymbols(out, rt.Symbols())

	case ".registry":
		bps, err := rt.Blueprints()
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			break
		}
		renderBlueprints(out, bps)

	case ".unit":
		_, _ = fmt.Fprint(out, rt.CurrentUnit().String())

	case ".trackers":
		_, _ = fmt.Fprintf(out, "%d live trackers\n", rt.LiveTrackers())

	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .symbols        List linked symbols
  .registry       List registry blueprints
  .unit           Print the unit being filled
  .trackers       Count live resource trackers
  .quit / .exit   Exit the REPL

Entries:
  (define (name params...) body)
  (extern (name params...))
  expression
An entry continues over lines until its parentheses balance.
`
	_, _ = fmt.Fprintln(w, help)
}

func newCompleter(rt *listscope.Runtime) *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".symbols"),
		readline.PcItem(".registry"),
		readline.PcItem(".unit"),
		readline.PcItem(".trackers"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
		readline.PcItem("(" + token.KeywordDefine),
		readline.PcItem("(" + token.KeywordExtern),
		readline.PcItemDynamic(func(string) []string {
			syms := rt.Symbols()
			names := make([]string, 0, len(syms))
			for _, s := range syms {
				names = append(names, "("+s.Name)
			}
			return names
		}),
	}
	return readline.NewPrefixCompleter(items...)
}
