package builder

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Progress tracks embedding progress during a build.
type Progress interface {
	// Add increments the progress by n completed items
	Add(n int) error
	// Close cleans up any resources used by the progress tracker
	Close()
}

// NoopProgress discards all progress updates. Used by tests and by
// builds running without a terminal.
type NoopProgress struct{}

func (p *NoopProgress) Add(int) error { return nil }
func (p *NoopProgress) Close()        {}

func NewNoopProgress() *NoopProgress {
	return &NoopProgress{}
}

// BarProgress renders a terminal progress bar on stderr, sized to the
// number of catalog items being embedded.
type BarProgress struct {
	bar *progressbar.ProgressBar
}

func (p *BarProgress) Add(n int) error {
	return p.bar.Add(n)
}

// Close clears the bar line so build log output is not left appended to
// a stale bar.
func (p *BarProgress) Close() {
	fmt.Fprint(os.Stderr, "\r\033[K")
}

func NewBarProgress(totalItems int) *BarProgress {
	return &BarProgress{
		bar: progressbar.NewOptions(totalItems,
			progressbar.OptionSetDescription(fmt.Sprintf("Embedding %d catalog items", totalItems)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("items"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			})),
	}
}
