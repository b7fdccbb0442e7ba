// Package main provides tests for the listscope CLI.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yotto3s/listscope/internal/cli"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "", "version")
	if err != nil {
		t.Errorf("version command error = %v", err)
	}
	if !strings.Contains(out, "listscope "+cli.Version) {
		t.Errorf("version output should contain the version, got: %s", out)
	}
}

func TestHelpCommand(t *testing.T) {
	out, _, err := execute(t, "", "--help")
	if err != nil {
		t.Errorf("help command error = %v", err)
	}
	for _, expected := range []string{"registry", "--eval", "--fail-fast", "--registry-dsn"} {
		if !strings.Contains(out, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, out)
		}
	}
}

func TestEvalFlag(t *testing.T) {
	out, errOut, err := execute(t, "", "--echo-ast=false", "-e", "(+ 3 4)", "-e", "(< 4 3)")
	if err != nil {
		t.Fatalf("eval error = %v (%s)", err, errOut)
	}
	if out != "Evaluated to 7\nEvaluated to 0\n" {
		t.Errorf("unexpected output: %q", out)
	}
	if errOut != "" {
		t.Errorf("expected empty stderr, got: %q", errOut)
	}
}

func TestStdinStream(t *testing.T) {
	src := "(define (square x) (* x x))\n(square 3)\n(ghost 1)\n42\n"
	out, errOut, err := execute(t, src)
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if !strings.Contains(out, "Evaluated to 9\n") || !strings.Contains(out, "Evaluated to 42\n") {
		t.Errorf("expected both results, got: %s", out)
	}
	if !strings.Contains(out, "Prototype(name: square") {
		t.Errorf("expected echoed rendering, got: %s", out)
	}
	if !strings.Contains(errOut, "unknown function") {
		t.Errorf("expected recovered error, got: %s", errOut)
	}
}

func TestFailFast(t *testing.T) {
	out, _, err := execute(t, "", "--fail-fast", "--echo-ast=false", "-e", "(ghost 1)\n42")
	if err == nil {
		t.Fatal("expected error with --fail-fast")
	}
	if out != "" {
		t.Errorf("expected no output after the failure, got: %q", out)
	}
}

func TestFileArguments(t *testing.T) {
	dir := t.TempDir()
	defs := filepath.Join(dir, "defs.ls")
	prog := filepath.Join(dir, "prog.ls")
	if err := os.WriteFile(defs, []byte("(define (cube x) (* x (* x x)))\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(prog, []byte("(cube 2)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, errOut, err := execute(t, "", "--echo-ast=false", defs, prog)
	if err != nil {
		t.Fatalf("file error = %v", err)
	}
	if out != "Evaluated to 8\n" {
		t.Errorf("unexpected output: %q", out)
	}
	if errOut != "" {
		t.Errorf("expected empty stderr, got: %q", errOut)
	}

	if _, _, err := execute(t, "", filepath.Join(dir, "missing.ls")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestInteractiveSession(t *testing.T) {
	src := "(define (sq x)\n  (* x x))\n(sq 5) ; five\n.symbols\n.trackers\n.quit\n(sq 6)\n"
	out, errOut, err := execute(t, src, "-i", "--no-stdlib", "--echo-ast=false")
	if err != nil {
		t.Fatalf("repl error = %v", err)
	}
	for _, expected := range []string{"ready> ", "...> ", "Evaluated to 25", "sq", "0 live trackers"} {
		if !strings.Contains(out, expected) {
			t.Errorf("repl output should contain %q, got: %s", expected, out)
		}
	}
	if strings.Contains(out, "Evaluated to 36") {
		t.Errorf("input after .quit should be ignored, got: %s", out)
	}
	if errOut != "" {
		t.Errorf("expected empty stderr, got: %q", errOut)
	}
}

func TestInteractiveUnknownCommand(t *testing.T) {
	_, errOut, err := execute(t, ".bogus\n1\n", "-i", "--no-stdlib", "--echo-ast=false")
	if err != nil {
		t.Fatalf("repl error = %v", err)
	}
	if errOut != "Unknown command: .bogus (type .help for commands)\n" {
		t.Errorf("unexpected stderr: %q", errOut)
	}
}

func TestInteractiveFailFast(t *testing.T) {
	out, _, err := execute(t, "(ghost 1)\n42\n", "-i", "--fail-fast", "--no-stdlib", "--echo-ast=false")
	if err == nil {
		t.Fatal("expected error with --fail-fast")
	}
	if !strings.Contains(err.Error(), "unknown function") {
		t.Errorf("unexpected error: %v", err)
	}
	if strings.Contains(out, "Evaluated to 42") {
		t.Errorf("input after the failure should be ignored, got: %s", out)
	}
}

func TestInteractiveDumpUnitOnce(t *testing.T) {
	src := "(define (sq x) (* x x))\n(sq 2)\n(sq 3)\n"
	out, errOut, err := execute(t, src, "-i", "--dump-unit", "--no-stdlib", "--echo-ast=false")
	if err != nil {
		t.Fatalf("repl error = %v (%s)", err, errOut)
	}
	if n := strings.Count(out, "; ModuleID"); n != 1 {
		t.Errorf("expected one unit dump, got %d: %s", n, out)
	}
	if !strings.Contains(out, "Evaluated to 9") {
		t.Errorf("expected results before the dump, got: %s", out)
	}
}

func TestSQLiteRegistryCommands(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "registry.db")
	reg := []string{"--registry", "sqlite", "--registry-dsn", dsn}

	if _, errOut, err := execute(t, "", append(reg, "-e", "(define (sq x) (* x x))", "-e", "(extern (later x))")...); err != nil {
		t.Fatalf("define error = %v (%s)", err, errOut)
	}

	out, _, err := execute(t, "", append([]string{"registry", "list"}, reg...)...)
	if err != nil {
		t.Fatalf("registry list error = %v", err)
	}
	if !strings.Contains(out, "sq") || !strings.Contains(out, "blueprints)") {
		t.Errorf("expected sq in registry, got: %s", out)
	}

	if _, _, err := execute(t, "", append([]string{"registry", "forget", "later", "sq"}, reg...)...); err == nil {
		t.Error("expected error forgetting a defined blueprint")
	}
	if _, _, err := execute(t, "", append([]string{"registry", "forget", "nothing"}, reg...)...); err == nil {
		t.Error("expected error forgetting an unknown blueprint")
	}

	out, _, err = execute(t, "", append([]string{"registry", "forget", "later"}, reg...)...)
	if err != nil {
		t.Fatalf("registry forget error = %v", err)
	}
	if !strings.Contains(out, "Forgot 1 blueprints") {
		t.Errorf("unexpected forget output: %s", out)
	}

	out, _, err = execute(t, "", append([]string{"registry", "list"}, reg...)...)
	if err != nil {
		t.Fatalf("registry list error = %v", err)
	}
	if strings.Contains(out, "later") || !strings.Contains(out, "sq") {
		t.Errorf("expected only the declaration to be gone, got: %s", out)
	}

	if _, _, err := execute(t, "", "registry", "list"); err == nil {
		t.Error("expected error listing the memory registry")
	}
}

func TestEnvironmentConfig(t *testing.T) {
	t.Setenv("LISTSCOPE_ECHO_AST", "false")
	out, _, err := execute(t, "42\n")
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if out != "Evaluated to 42\n" {
		t.Errorf("expected env to disable echo, got: %q", out)
	}
}

func TestInvalidConfig(t *testing.T) {
	if _, _, err := execute(t, "", "--registry", "postgres", "-e", "1"); err == nil {
		t.Error("expected error for unknown registry")
	}
}
