// Package probe runs a fixed survey of shell commands on a remote host over
// a single SSH connection and prints what each one said.
//
// The survey is best effort. A command that exits non-zero, or whose
// session cannot be opened, is reported and the next command still runs.
// Only a failure to connect makes the whole run fail; Strict mode also
// counts command-level failures.
package probe

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Result is the captured outcome of one remote command. Stdout and Stderr
// are trimmed of surrounding whitespace.
type Result struct {
	Command    string
	Stdout     string
	Stderr     string
	ExitStatus int
	// Err is a fault running the command at all, as opposed to the
	// command itself exiting non-zero.
	Err error
}

// Failed reports whether the command faulted or exited non-zero.
func (r Result) Failed() bool {
	return r.Err != nil || r.ExitStatus != 0
}

// Report collects the results of one run, in command order.
type Report struct {
	RunID   string
	Results []Result
}

// Failed returns every failed command as one error, or nil.
func (r *Report) Failed() error {
	var result error
	for _, res := range r.Results {
		switch {
		case res.Err != nil:
			result = multierror.Append(result, fmt.Errorf("%s: %w", res.Command, res.Err))
		case res.ExitStatus != 0:
			result = multierror.Append(result, fmt.Errorf("%s: exit status %d", res.Command, res.ExitStatus))
		}
	}
	return result
}
