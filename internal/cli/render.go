package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/yotto3s/listscope/internal/jit"
	"github.com/yotto3s/listscope/internal/store"
)

func renderSymbols(w io.Writer, syms []*jit.Symbol) {
	if len(syms) == 0 {
		_, _ = fmt.Fprintln(w, "(0 symbols)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Symbol", "Arity", "Kind", "Tracker"})
	for _, s := range syms {
		kind := "compiled"
		if s.IsHost() {
			kind = "host"
		}
		t.AppendRow(table.Row{s.Name, s.Arity, kind, s.Tracker.ID()})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d symbols)\n", len(syms))
}

func renderBlueprints(w io.Writer, bps []*store.Blueprint) {
	if len(bps) == 0 {
		_, _ = fmt.Fprintln(w, "(0 blueprints)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Params", "Defined"})
	for _, bp := range bps {
		t.AppendRow(table.Row{bp.Name, strings.Join(bp.Params, " "), bp.Defined})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d blueprints)\n", len(bps))
}

// styledWriter renders every write with a lipgloss style. The renderer
// detects the color profile of the underlying writer, so plain writers get
// plain text.
type styledWriter struct {
	w     io.Writer
	style lipgloss.Style
}

func newErrorWriter(w io.Writer) *styledWriter {
	r := lipgloss.NewRenderer(w)
	return &styledWriter{w: w, style: r.NewStyle().Foreground(lipgloss.Color("9"))}
}

func (s *styledWriter) Write(p []byte) (int, error) {
	text := strings.TrimSuffix(string(p), "\n")
	out := s.style.Render(text)
	if len(text) != len(p) {
		out += "\n"
	}
	if _, err := io.WriteString(s.w, out); err != nil {
		return 0, err
	}
	return len(p), nil
}
