package probe

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"
	log "github.com/sirupsen/logrus"
	"gvisor.dev/gvisor/pkg/cleanup"

	"github.com/abshkbh/webapp-tools/pkg/config"
)

// Runner executes the command list against one target, strictly in order.
type Runner struct {
	target   Target
	commands []string
	strict   bool
	dial     Dialer
	out      io.Writer
}

func NewRunner(cfg config.ProbeConfig) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	target, err := ResolveTarget(cfg)
	if err != nil {
		return nil, err
	}
	return &Runner{
		target:   target,
		commands: append([]string(nil), cfg.Commands...),
		strict:   cfg.Strict,
		dial:     dialExecutor,
		out:      os.Stdout,
	}, nil
}

// WithDialer replaces the SSH dialer, e.g. with a fake backend.
func (r *Runner) WithDialer(d Dialer) *Runner {
	r.dial = d
	return r
}

// WithOutput sends the transcript to `w` instead of stdout.
func (r *Runner) WithOutput(w io.Writer) *Runner {
	r.out = w
	return r
}

// Target returns the resolved connection target.
func (r *Runner) Target() Target {
	return r.target
}

// Run connects and executes every command. The returned error is non-nil
// only when the connection could not be set up or torn down; per-command
// faults are recorded in the report and printed.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	logger := log.WithFields(log.Fields{
		"runID": report.RunID,
		"addr":  r.target.Address(),
	})

	fmt.Fprintf(r.out, "Connecting to %s...\n", r.target.Host)
	exec, err := r.dial(ctx, r.target)
	if err != nil {
		return report, err
	}
	cleanup := cleanup.Make(func() {
		if err := exec.Close(); err != nil {
			logger.WithError(err).Debug("failed to close connection")
		}
	})
	defer cleanup.Clean()
	logger.Info("connected")

	for _, cmd := range r.commands {
		fmt.Fprintf(r.out, "\n=== Running: %s ===\n", cmd)
		res := r.runOne(ctx, exec, cmd)
		report.Results = append(report.Results, res)
		r.print(res)

		fields := commandFields(cmd)
		fields["exitStatus"] = res.ExitStatus
		if res.Err != nil {
			logger.WithFields(fields).WithError(res.Err).Warn("command faulted")
		} else {
			logger.WithFields(fields).Debug("command finished")
		}
	}

	cleanup.Release()
	if err := exec.Close(); err != nil {
		return report, fmt.Errorf("failed to close connection: %w", err)
	}
	return report, nil
}

// runOne isolates a single command: a fault or panic becomes Result.Err.
func (r *Runner) runOne(ctx context.Context, exec Executor, cmd string) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{Command: cmd, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	var err error
	res, err = exec.Exec(ctx, cmd)
	res.Command = cmd
	if err != nil {
		res.Err = err
	}
	return res
}

func (r *Runner) print(res Result) {
	if res.Stdout != "" {
		fmt.Fprintln(r.out, res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprintf(r.out, "Error: %s\n", res.Stderr)
	}
	if res.Err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", res.Err)
	}
}

// Diagnose runs the survey and reports overall success. It never panics or
// returns an error: connection failures are printed as a single message.
// In strict mode a failed command also makes the run unsuccessful.
func (r *Runner) Diagnose(ctx context.Context) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			fmt.Fprintf(r.out, "SSH connection failed: %v\n", p)
			ok = false
		}
	}()

	report, err := r.Run(ctx)
	if err != nil {
		fmt.Fprintf(r.out, "SSH connection failed: %v\n", err)
		return false
	}
	if r.strict {
		if err := report.Failed(); err != nil {
			fmt.Fprintf(r.out, "\nCommands failed: %v\n", err)
			return false
		}
	}
	return true
}

// commandFields splits `cmd` for logging the way a shell would see its
// first program.
func commandFields(cmd string) log.Fields {
	fields := log.Fields{"cmd": cmd}
	parts, err := shellwords.Parse(cmd)
	if err != nil || len(parts) == 0 {
		return fields
	}
	fields["program"] = parts[0]
	fields["args"] = parts[1:]
	return fields
}
