package ffmpeg

import (
	"bufio"
	"bytes"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Process is a handle to a live tool invocation
type Process interface {
	// Wait blocks until the process exits; nil means exit code zero
	Wait() error
	// Kill forcefully terminates the process. The tool has no cooperative
	// shutdown signal, so this is the only way to stop it.
	Kill() error
}

// Runner launches external tool binaries. The indirection keeps conversion
// logic testable without the binaries installed.
type Runner interface {
	// Capture runs a command to completion and returns its combined output.
	// The duration probe reports on stderr with a non-zero exit, so callers
	// decide whether the returned error matters.
	Capture(name string, args ...string) (string, error)
	// Start launches a command and feeds each diagnostic line to onLine as
	// it arrives. onLine is called from a single goroutine.
	Start(name string, args []string, onLine func(line string)) (Process, error)
}

// NewRunner creates a runner backed by os/exec
func NewRunner() Runner {
	return &cliRunner{}
}

type cliRunner struct{}

func (r *cliRunner) Capture(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).CombinedOutput()
	return string(out), err
}

func (r *cliRunner) Start(name string, args []string, onLine func(string)) (Process, error) {
	cmd := exec.Command(name, args...)

	// The tool writes both diagnostics and progress to stderr
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &cliProcess{cmd: cmd}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		scanOutput(stderr, onLine)
	}()

	return p, nil
}

type cliProcess struct {
	cmd *exec.Cmd
	wg  sync.WaitGroup
}

// Wait drains the output scanner before reaping the process so no progress
// line is lost to a closed pipe.
func (p *cliProcess) Wait() error {
	p.wg.Wait()
	return p.cmd.Wait()
}

func (p *cliProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// scanOutput feeds non-empty output lines to onLine
func scanOutput(r io.Reader, onLine func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanCarriageLines)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			onLine(line)
		}
	}
}

// scanCarriageLines splits on \r as well as \n because the tool rewrites its
// progress line in place rather than appending.
func scanCarriageLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[0:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
