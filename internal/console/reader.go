// Package console reads operator input on a background goroutine and
// hands complete lines to the tick loop through a FIFO queue.
package console

import (
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"genircon/util"
)

const (
	// idleWait is how long the reader parks after an empty line that
	// followed the previous read closely.
	idleWait = 10 * time.Millisecond
	// burstWindow is the gap under which an empty line counts as idle.
	burstWindow = 100 * time.Millisecond
)

// cursor keys and other CSI sequences a raw terminal may leave in a line
var escapeRe = regexp.MustCompile(`\x1b\x5b([^\x1b]*\x7e|[\x40-\x50])`)

// Sanitize trims a raw console line and strips terminal escape sequences.
func Sanitize(line string) string {
	return strings.TrimSpace(escapeRe.ReplaceAllString(strings.TrimSpace(line), ""))
}

// Reader runs the input goroutine. Shutdown takes effect at the next
// line boundary when the source blocks.
type Reader struct {
	src    LineSource
	queue  *Queue
	logger *util.Logger

	shutdown  atomic.Bool
	exhausted atomic.Bool
	wake      chan struct{}
	done      chan struct{}
	once      sync.Once
}

// NewReader returns a Reader feeding queue from src.
func NewReader(src LineSource, queue *Queue, logger *util.Logger) *Reader {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Reader{
		src:    src,
		queue:  queue,
		logger: logger,
		wake:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the input goroutine.
func (r *Reader) Start() {
	go r.run()
}

func (r *Reader) run() {
	defer close(r.done)

	last := time.Now()
	for !r.shutdown.Load() {
		line, err := r.src.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) && !r.shutdown.Load() {
				r.logger.Debug("console: %v", err)
			}
			r.exhausted.Store(true)
			return
		}

		if line = Sanitize(line); line != "" {
			r.queue.Push(line)
		} else if !r.shutdown.Load() && time.Since(last) <= burstWindow {
			select {
			case <-r.wake:
			case <-time.After(idleWait):
			}
		}
		last = time.Now()
	}
}

// Line returns the next queued line, if any.
func (r *Reader) Line() (string, bool) { return r.queue.Pop() }

// Exhausted reports whether the source hit end of input. Lines already
// queued are still returned by Line.
func (r *Reader) Exhausted() bool { return r.exhausted.Load() }

// Done is closed when the input goroutine has exited.
func (r *Reader) Done() <-chan struct{} { return r.done }

// Shutdown asks the goroutine to stop and closes the source.
func (r *Reader) Shutdown() {
	r.once.Do(func() {
		r.shutdown.Store(true)
		close(r.wake)
		if err := r.src.Close(); err != nil {
			r.logger.Debug("console: close: %v", err)
		}
	})
}
