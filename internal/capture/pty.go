package capture

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// Size of the pseudo-terminal when the capturing process has no terminal to copy it from.
const (
	defaultRows = 24
	defaultCols = 80
)

// startPTY starts cmd on a new pseudo-terminal sized like our own terminal.
func startPTY(cmd *exec.Cmd) (*os.File, error) {
	ptmx, err := pty.StartWithSize(cmd, terminalSize(int(os.Stdin.Fd())))
	if err != nil {
		return nil, fmt.Errorf("failed to start command with pty: %w", err)
	}
	return ptmx, nil
}

func terminalSize(fd int) *pty.Winsize {
	size := &pty.Winsize{Rows: defaultRows, Cols: defaultCols}
	if !term.IsTerminal(fd) {
		return size
	}
	cols, rows, err := term.GetSize(fd)
	if err != nil || cols <= 0 || rows <= 0 {
		return size
	}
	size.Rows = uint16(rows)
	size.Cols = uint16(cols)
	return size
}
