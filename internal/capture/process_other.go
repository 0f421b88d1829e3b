//go:build !unix

package capture

import "os/exec"

func prepare(cmd *exec.Cmd, onPTY bool) {}
