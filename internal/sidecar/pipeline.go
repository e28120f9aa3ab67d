package sidecar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/robit-man/overlay-elevation-gateway/internal/errs"
)

// commandWriter is the narrow surface the pipeline needs from its
// supervisor; a fake implementation lets the pacing/backpressure behavior
// be tested without a real child process.
type commandWriter interface {
	writeLine(Command) error
}

// Pipeline is the bounded, paced outbound command queue (spec C6): a
// single sender goroutine drains it at a configured rate so the overlay
// link is never flooded faster than the child process can keep up.
type Pipeline struct {
	writer commandWriter
	queue  chan Command
	delay  time.Duration
	log    *zerolog.Logger

	stopOnce sync.Once
	done     chan struct{}
	stopped  chan struct{}
}

func newPipeline(w commandWriter, queueMax int, delay time.Duration, log *zerolog.Logger) *Pipeline {
	if queueMax <= 0 {
		queueMax = 256
	}
	return &Pipeline{
		writer:  w,
		queue:   make(chan Command, queueMax),
		delay:   delay,
		log:     log,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (p *Pipeline) start() {
	go p.drain()
}

func (p *Pipeline) drain() {
	defer close(p.stopped)
	for {
		select {
		case cmd, ok := <-p.queue:
			if !ok {
				return
			}
			if err := p.writer.writeLine(cmd); err != nil && p.log != nil {
				p.log.Warn().Err(err).Str("op", cmd.Op).Msg("sidecar send failed")
			}
			if p.delay > 0 {
				select {
				case <-time.After(p.delay):
				case <-p.done:
					return
				}
			}
		case <-p.done:
			// drain whatever remains without further pacing, then exit.
			for {
				select {
				case cmd, ok := <-p.queue:
					if !ok {
						return
					}
					_ = p.writer.writeLine(cmd)
				default:
					return
				}
			}
		}
	}
}

func (p *Pipeline) stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

// Enqueue admits cmd onto the bounded queue, waiting up to 1s for room
// before reporting backpressure (spec C6).
func (p *Pipeline) Enqueue(ctx context.Context, cmd Command) error {
	timer := time.NewTimer(time.Second)
	defer timer.Stop()

	select {
	case p.queue <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: %s", errs.ErrBackpressure, "sidecar send queue is full")
	}
}
