// Package spin provides a terminal liveness indicator that runs beside a
// blocking wait.
package spin

import (
	"fmt"
	"io"
	"time"
)

var frames = []string{"-", "\\", "|", "/"}

const defaultInterval = 200 * time.Millisecond

// Indicator is a cooperative spinner. It owns no state shared with its
// starter beyond the stop signal; Stop blocks until the goroutine has
// acknowledged, so output never interleaves with whatever the caller
// prints next.
type Indicator struct {
	w        io.Writer
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// Start begins rendering the spinner on w until Stop is called.
func Start(w io.Writer) *Indicator {
	return StartInterval(w, defaultInterval)
}

// StartInterval begins rendering with a custom frame cadence.
func StartInterval(w io.Writer, interval time.Duration) *Indicator {
	if interval <= 0 {
		interval = defaultInterval
	}
	ind := &Indicator{
		w:        w,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go ind.run()
	return ind
}

func (ind *Indicator) run() {
	defer close(ind.done)

	ticker := time.NewTicker(ind.interval)
	defer ticker.Stop()

	frame := 0
	fmt.Fprint(ind.w, frames[frame])
	for {
		select {
		case <-ind.stop:
			// Erase the spinner character before handing the
			// terminal back.
			fmt.Fprint(ind.w, "\b \b")
			return
		case <-ticker.C:
			frame = (frame + 1) % len(frames)
			fmt.Fprintf(ind.w, "\b%s", frames[frame])
		}
	}
}

// Stop signals the spinner to finish and waits for it to exit. Safe to
// call only once.
func (ind *Indicator) Stop() {
	close(ind.stop)
	<-ind.done
}
