package listscope

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/yotto3s/listscope/internal/eval"
	"github.com/yotto3s/listscope/internal/store"
)

// Option configures a Runtime.
type Option func(*Runtime)

// Store is the durable blueprint registry.
type Store = store.Store

// Blueprint is a registry entry.
type Blueprint = store.Blueprint

// Outcome is the result of one evaluated entry.
type Outcome = eval.Outcome

// WithStore uses s as the blueprint registry. The runtime closes it.
func WithStore(s Store) Option {
	return func(r *Runtime) {
		r.store = s
	}
}

// WithSQLiteStore keeps the registry in a SQLite database at dsn.
func WithSQLiteStore(dsn string) Option {
	return func(r *Runtime) {
		s, err := store.NewSQLite(dsn)
		if err != nil {
			r.err = fmt.Errorf("open registry %s: %w", dsn, err)
			return
		}
		r.store = s
	}
}

// WithMemoryStore keeps the registry in memory.
func WithMemoryStore() Option {
	return func(r *Runtime) {
		r.store = store.NewMemory()
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithOutputWriter sets where renderings and results are written.
func WithOutputWriter(writer func(text string) error) Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts, eval.WithOutputWriter(writer))
	}
}

// WithOutput writes renderings, results and host output to w.
func WithOutput(w io.Writer) Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts,
			eval.WithOutputWriter(func(text string) error {
				_, err := io.WriteString(w, text)
				return err
			}),
			eval.WithHostOutput(w),
		)
	}
}

// WithErrorOutput writes recovered errors to w.
func WithErrorOutput(w io.Writer) Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts, eval.WithErrorWriter(func(text string) error {
			_, err := io.WriteString(w, text)
			return err
		}))
	}
}

// WithFailFast stops evaluation at the first error.
func WithFailFast(on bool) Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts, eval.WithFailFast(on))
	}
}

// WithEchoAST controls whether each parsed entry is echoed.
func WithEchoAST(on bool) Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts, eval.WithEchoAST(on))
	}
}

// WithDumpUnit prints the open unit once, when the runtime is closed.
func WithDumpUnit(on bool) Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts, eval.WithDumpUnit(on))
	}
}

// WithCompileWorkers bounds parallel compilation within a unit.
func WithCompileWorkers(n int) Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts, eval.WithCompileWorkers(n))
	}
}

// WithMaxCallDepth bounds nested calls. Zero disables the guard.
func WithMaxCallDepth(n int) Option {
	return func(r *Runtime) {
		r.evalOpts = append(r.evalOpts, eval.WithMaxCallDepth(n))
	}
}

// WithPrelude replaces DefaultPrelude.
func WithPrelude(source string) Option {
	return func(r *Runtime) {
		r.prelude = source
	}
}

// WithNoStdlib skips the prelude entirely.
func WithNoStdlib() Option {
	return func(r *Runtime) {
		r.noStdlib = true
	}
}
