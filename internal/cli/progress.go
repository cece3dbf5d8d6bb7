package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// stepProgressReporter draws a single-line spinner for pipeline steps on a
// terminal. It stays silent when stderr is not a TTY or JSON was requested.
type stepProgressReporter struct {
	enabled bool
	out     io.Writer
	start   time.Time
	spinner int
	lastLen int
}

func newStepProgressReporter(asJSON bool) *stepProgressReporter {
	stat, err := os.Stderr.Stat()
	enabled := err == nil && (stat.Mode()&os.ModeCharDevice) != 0 && !asJSON
	return &stepProgressReporter{
		enabled: enabled,
		out:     os.Stderr,
		start:   time.Now(),
	}
}

// Update matches events.ProgressFunc.
func (r *stepProgressReporter) Update(step string, current, total int) {
	if !r.enabled {
		return
	}
	frames := [4]string{"-", "\\", "|", "/"}
	frame := frames[r.spinner%len(frames)]
	r.spinner++
	step = strings.TrimSpace(step)
	if len(step) > 88 {
		step = "..." + step[len(step)-85:]
	}

	status := fmt.Sprintf("%s %s %d", frame, step, current)
	if total > 0 {
		status = fmt.Sprintf("%s %s %d/%d", frame, step, current, total)
	}
	r.printStatus(status)
}

func (r *stepProgressReporter) Done(label string) {
	if !r.enabled || r.lastLen == 0 {
		return
	}
	elapsed := time.Since(r.start).Round(time.Millisecond)
	r.printStatus(fmt.Sprintf("%s complete in %s", label, elapsed))
	fmt.Fprintln(r.out)
}

func (r *stepProgressReporter) printStatus(status string) {
	if r.lastLen > len(status) {
		status = status + strings.Repeat(" ", r.lastLen-len(status))
	}
	r.lastLen = len(status)
	fmt.Fprintf(r.out, "\r%s", status)
}
