package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

var ErrAlreadyRunning = errors.New("process already running")

type PidManager interface {
	// Write records the current process, failing while another live
	// process holds the pid file.
	Write() error
	Remove() error
}

type pid struct {
	PidPath string
}

func NewPidManager(pidPath string) PidManager {
	return &pid{
		PidPath: pidPath,
	}
}

func (p *pid) Write() error {
	if running, ok := p.running(); ok {
		return fmt.Errorf("%w with pid %d", ErrAlreadyRunning, running)
	}
	if err := os.MkdirAll(filepath.Dir(p.PidPath), 0755); err != nil {
		return err
	}
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(p.PidPath, []byte(pid), 0644); err != nil {
		return fmt.Errorf("failed to write pid, err:%v", err)
	}
	return nil
}

func (p *pid) Remove() error {
	if err := os.Remove(p.PidPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("pid file not found")
		}
		return fmt.Errorf("failed to delete pid file, err:%v", err)
	}
	return nil
}

// running returns the pid in the file if that process is alive. Stale files
// left by a crash are ignored.
func (p *pid) running() (int, bool) {
	data, err := os.ReadFile(p.PidPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}
	return pid, true
}
