package migrate

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Delegate hands a whole import to an external command-line tool when an
// archive is larger than Threshold bytes.
type Delegate struct {
	Bin       string
	Threshold int64
	// Args builds the tool arguments. Nil uses WPCLIArgs.
	Args func(root, archive string) []string
}

// WPCLIArgs returns the arguments of "wp jmigrate import".
func WPCLIArgs(root, archive string) []string {
	return []string{"jmigrate", "import", "--path=" + strings.TrimRight(root, `/\`), "--file=" + archive}
}

// LocateDelegate returns the first candidate that is an executable file.
// Bare names are looked up on PATH. It returns "" when none qualifies.
func LocateDelegate(candidates []string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !strings.ContainsRune(c, filepath.Separator) && !strings.ContainsRune(c, '/') {
			if p, err := exec.LookPath(c); err == nil {
				return p
			}
			continue
		}
		info, err := os.Stat(c)
		if err != nil || info.IsDir() || info.Mode().Perm()&0o111 == 0 {
			continue
		}
		return c
	}
	return ""
}

// ShouldRun reports whether an archive of size bytes goes to the tool. A nil
// Delegate, an empty Bin or a threshold of zero never delegate.
func (d *Delegate) ShouldRun(size int64) bool {
	return d != nil && d.Bin != "" && d.Threshold > 0 && size > d.Threshold
}

// Run executes the tool in root, logging each non-empty stdout line as
// info. A non-zero exit returns an *ExternalToolError carrying stderr, or
// stdout when stderr is empty.
func (d *Delegate) Run(ctx context.Context, root, archive string, log Logger) error {
	log = logOrDiscard(log)
	args := WPCLIArgs
	if d.Args != nil {
		args = d.Args
	}

	cmd := exec.CommandContext(ctx, d.Bin, args(root, archive)...)
	cmd.Dir = root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ExternalToolError{ExitCode: -1, Msg: "the external tool could not be started", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &ExternalToolError{ExitCode: -1, Msg: "the external tool could not be started", Err: err}
	}

	var out []string
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		log.Info(line)
		out = append(out, line)
	}
	// Keep the pipe drained so the tool never blocks on an overlong line.
	io.Copy(io.Discard, stdout)

	if err := cmd.Wait(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.Join(out, "\n")
		}
		if msg == "" {
			msg = fmt.Sprintf("external tool exited with code %d", code)
		}
		return &ExternalToolError{ExitCode: code, Msg: msg, Err: err}
	}
	return nil
}
