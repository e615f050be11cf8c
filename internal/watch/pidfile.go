package watch

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// PIDFile guards the watch loop against concurrent instances. Two loops
// polling the same store would race on the submitted-PR rewrite.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Acquire claims the PID file for the current process. Fails if another
// live process already holds it; a stale file from a dead process is
// silently replaced.
func (p *PIDFile) Acquire() error {
	if pid, running := p.IsRunning(); running {
		return fmt.Errorf("another watch loop is running (pid %d)", pid)
	}
	return os.WriteFile(p.Path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// Read reads the PID from the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	return pid, nil
}

// Release deletes the PID file.
func (p *PIDFile) Release() error {
	return os.Remove(p.Path)
}
