package session

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

const maxDimension = 1<<16 - 1

// process is a child attached to the slave side of a pty. pty.Start makes
// the child a session leader, so its pid is also its process group id.
type process struct {
	cmd *exec.Cmd
	pty *os.File
}

func startProcess(cfg Config, cols, rows int) (*process, error) {
	cmd := exec.Command(cfg.Shell, cfg.Args...)
	if cfg.Dir != "" {
		cmd.Dir = cfg.Dir
	}

	cmd.Env = os.Environ()
	if cfg.TermType != "" {
		cmd.Env = append(cmd.Env, "TERM="+cfg.TermType)
	}
	cmd.Env = append(cmd.Env, cfg.Env...)

	ptmx, err := pty.StartWithSize(cmd, winsize(cols, rows))
	if err != nil {
		return nil, fmt.Errorf("failed to start %s on pty: %w", cfg.Shell, err)
	}
	return &process{cmd: cmd, pty: ptmx}, nil
}

func (p *process) pid() int {
	return p.cmd.Process.Pid
}

func (p *process) resize(cols, rows int) error {
	return pty.Setsize(p.pty, winsize(cols, rows))
}

// signal delivers sig to the whole process group. A group that is already
// gone is not an error.
func (p *process) signal(sig unix.Signal) error {
	err := unix.Kill(-p.pid(), sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// exitCode is nil until the process has been reaped, and -1 when a signal
// ended it.
func (p *process) exitCode() *int {
	if p.cmd.ProcessState == nil {
		return nil
	}
	code := p.cmd.ProcessState.ExitCode()
	return &code
}

func winsize(cols, rows int) *pty.Winsize {
	return &pty.Winsize{
		Cols: uint16(cols),
		Rows: uint16(rows),
	}
}

func validSize(cols, rows int) bool {
	return cols > 0 && rows > 0 && cols <= maxDimension && rows <= maxDimension
}
