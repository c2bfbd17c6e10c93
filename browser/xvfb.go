package browser

import (
	"fmt"
	"os/exec"
	"time"
)

// xvfbServer wraps a virtual display process for headful mode on machines
// without a real one.
type xvfbServer struct {
	cmd     *exec.Cmd
	display string
}

func startXvfb(display string) (*xvfbServer, error) {
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1920x1080x24", "-ac")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start xvfb on %s: %w", display, err)
	}

	// Xvfb needs a moment before Chrome can attach.
	time.Sleep(500 * time.Millisecond)

	return &xvfbServer{cmd: cmd, display: display}, nil
}

func (x *xvfbServer) stop() {
	if x == nil || x.cmd == nil || x.cmd.Process == nil {
		return
	}
	x.cmd.Process.Kill()
	x.cmd.Wait()
}
