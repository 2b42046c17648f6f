package ui

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/mattn/go-isatty"
)

// StatusSpinner animates a single status line while a blocking call step
// runs: dialing the signaling server, waiting for a peer. It draws nothing
// when stdout is not a terminal, so piped output stays clean.
type StatusSpinner struct {
	message  string
	frames   []string
	interval time.Duration
	done     chan struct{}
	active   atomic.Bool
	stop     sync.Once
}

func newStatusSpinner(message string, style spinner.Spinner, interval time.Duration) *StatusSpinner {
	return &StatusSpinner{
		message:  message,
		frames:   style.Frames,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// NewConnectionSpinner animates network steps (Globe style)
func NewConnectionSpinner(message string) *StatusSpinner {
	return newStatusSpinner(message, spinner.Globe, 180*time.Millisecond)
}

// NewWaitingSpinner animates waits on the far side (Points style)
func NewWaitingSpinner(message string) *StatusSpinner {
	return newStatusSpinner(message, spinner.Points, 100*time.Millisecond)
}

// Start begins drawing. No-op without a terminal, and after Stop.
func (s *StatusSpinner) Start() {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return
	}
	s.active.Store(true)
	go s.draw()
}

func (s *StatusSpinner) draw() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-s.done:
			return
		default:
		}
		frame := SpinnerStyle.Render(s.frames[i%len(s.frames)])
		fmt.Printf("\r%s %s", frame, s.message)
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the animation and erases the status line. Safe to call from
// any goroutine, any number of times, before or after Start.
func (s *StatusSpinner) Stop() {
	s.stop.Do(func() {
		close(s.done)
		if s.active.Load() {
			fmt.Print("\r\033[K")
		}
	})
}

// RunConnectionSpinner starts a connection spinner and returns a stop function
func RunConnectionSpinner(message string) func() {
	sp := NewConnectionSpinner(message)
	sp.Start()
	return sp.Stop
}
