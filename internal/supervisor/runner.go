// Package supervisor manages service lifecycle including starting,
// stopping, restarting, and health-monitoring child processes.
//
// # Security Model
//
// Commands, arguments, and environments come straight from the workspace
// manifest, so manifests have the same trust level as Makefiles or
// Procfiles - they can execute arbitrary code. Only use manifests from
// trusted sources.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/devfleet/devfleet/internal/domain"
)

// ProcessRunner creates and starts child processes
type ProcessRunner interface {
	// Start launches the service's command. When output is non-nil the
	// child's stdout and stderr are redirected to it and the returned
	// process has no pipes; otherwise both streams are piped.
	Start(ctx context.Context, config domain.ServiceConfig, output io.Writer) (Process, error)
}

// Process represents a running child process
type Process interface {
	PID() int
	Wait() error
	Signal(sig os.Signal) error
	Stdout() io.Reader
	Stderr() io.Reader
}

// ExecRunner implements ProcessRunner using os/exec
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Start starts a new child process
func (r *ExecRunner) Start(ctx context.Context, config domain.ServiceConfig, output io.Writer) (Process, error) {
	cmd := exec.CommandContext(ctx, config.Command, config.Args...)
	cmd.Dir = config.Dir

	cmd.Env = os.Environ()
	for k, v := range config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr io.Reader
	if output != nil {
		cmd.Stdout = output
		cmd.Stderr = output
	} else {
		var err error
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("creating stdout pipe: %w", err)
		}
		stderr, err = cmd.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("creating stderr pipe: %w", err)
		}
	}

	// Set process group so signals reach all children
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting process: %w", err)
	}

	return &execProcess{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

// execProcess wraps exec.Cmd to implement the Process interface
type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}

	// Signal the entire process group
	pgid, err := syscall.Getpgid(p.cmd.Process.Pid)
	if err != nil {
		// Fall back to signaling just the process
		return p.cmd.Process.Signal(sig)
	}

	return syscall.Kill(-pgid, sig.(syscall.Signal))
}

func (p *execProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *execProcess) Stderr() io.Reader {
	return p.stderr
}
