package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/aleister1102/hotpatch/internal/orchestrator"
	"github.com/schollz/progressbar/v3"
)

// ConsoleObserver renders update progress as a byte-accurate terminal
// progress bar. It implements orchestrator.ProgressObserver and is safe
// to register once per orchestrator; snapshots arrive on the update flow.
type ConsoleObserver struct {
	out io.Writer

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// NewConsoleObserver creates an observer writing to stdout.
func NewConsoleObserver() *ConsoleObserver {
	return NewConsoleObserverWithWriter(os.Stdout)
}

// NewConsoleObserverWithWriter creates an observer writing to out.
func NewConsoleObserverWithWriter(out io.Writer) *ConsoleObserver {
	return &ConsoleObserver{out: out}
}

// OnProgress renders one progress snapshot.
func (co *ConsoleObserver) OnProgress(p orchestrator.UpdateProgress) {
	co.mu.Lock()
	defer co.mu.Unlock()

	switch p.Status {
	case orchestrator.StatusChecking:
		fmt.Fprintln(co.out, p.Message)
	case orchestrator.StatusDownloading, orchestrator.StatusInstalling:
		co.renderBar(p)
	case orchestrator.StatusCompleted, orchestrator.StatusRestartRequired:
		co.finishBar()
		fmt.Fprintln(co.out, p.Message)
	case orchestrator.StatusFailed:
		co.finishBar()
		fmt.Fprintln(co.out, p.Message)
		if p.Error != "" {
			fmt.Fprintln(co.out, "  "+p.Error)
		}
	case orchestrator.StatusIdle:
		if p.Message != "" {
			fmt.Fprintln(co.out, p.Message)
		}
	}
}

func (co *ConsoleObserver) renderBar(p orchestrator.UpdateProgress) {
	if co.bar == nil {
		co.bar = progressbar.NewOptions64(
			p.TotalBytes,
			progressbar.OptionSetWriter(co.out),
			progressbar.OptionShowBytes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(120*time.Millisecond),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(co.out) }),
		)
	}

	verb := "downloading"
	if p.Status == orchestrator.StatusInstalling {
		verb = "installing"
	}
	co.bar.Describe(fmt.Sprintf("%s [%d/%d] %s", verb, p.CurrentIndex, p.TotalFiles, p.CurrentFile))
	_ = co.bar.Set64(p.DownloadedBytes)
}

// finishBar closes out the active bar so terminal-state messages land on
// their own line. The next pass starts a fresh bar.
func (co *ConsoleObserver) finishBar() {
	if co.bar == nil {
		return
	}
	_ = co.bar.Finish()
	co.bar = nil
}
