// Package daemon tracks the background API server through a PID file.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrAlreadyRunning is returned by Acquire when a live process owns the PID file.
var ErrAlreadyRunning = errors.New("server already running")

// PIDFile manages a PID file for daemon process tracking.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// State describes what the PID file says about the server.
type State struct {
	PID     int
	Running bool
	Stale   bool // file exists but its process is gone
}

// Write writes the current process's PID to the file.
func (p *PIDFile) Write() error {
	return p.WritePID(os.Getpid())
}

// WritePID writes the given PID to the file. The file is replaced
// atomically so readers never see a partial write.
func (p *PIDFile) WritePID(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	tmp := p.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.Path)
}

// Read reads the PID from the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID file content: %q", strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Remove deletes the PID file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.Path)
}

// Inspect reports the PID file state.
func (p *PIDFile) Inspect() State {
	if _, err := os.Stat(p.Path); err != nil {
		return State{}
	}
	pid, running := p.IsRunning()
	return State{PID: pid, Running: running, Stale: !running}
}

// Acquire claims the PID file for the current process. A stale file left
// by a dead process is replaced.
func (p *PIDFile) Acquire() error {
	st := p.Inspect()
	if st.Running && st.PID != os.Getpid() {
		return fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, st.PID)
	}
	if st.Stale {
		if err := p.Remove(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale PID file: %w", err)
		}
	}
	return p.Write()
}

// Release removes the PID file if it still names the current process.
func (p *PIDFile) Release() error {
	pid, err := p.Read()
	if os.IsNotExist(err) {
		return nil
	}
	if err == nil && pid != os.Getpid() {
		return nil
	}
	if err := p.Remove(); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
