// Package sidecar supervises the Node.js child process that speaks the
// overlay network's wire protocol, exchanging newline-delimited JSON over
// its stdin/stdout, and offers a paced, backpressure-aware send pipeline
// on top of it (spec C5/C6).
package sidecar

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/robit-man/overlay-elevation-gateway/internal/errs"
)

// Supervisor owns the child process lifetime, the NDJSON reader loop, and
// serialized writes to the child's stdin. Construct with New, then Start.
type Supervisor struct {
	scriptPath string
	env        []string
	log        *zerolog.Logger

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writeMu sync.Mutex

	events chan Event
	wg     sync.WaitGroup

	addrMu sync.RWMutex
	addr   string

	pipeline *Pipeline
}

// Options configures a Supervisor. SendQueueMax/SendDelay govern the
// paced send pipeline (C6); both have spec-mandated floors enforced by
// internal/core/config before reaching here.
type Options struct {
	ScriptPath   string
	Env          []string
	Logger       *zerolog.Logger
	SendQueueMax int
	SendDelay    time.Duration
}

func New(opts Options) *Supervisor {
	s := &Supervisor{
		scriptPath: opts.ScriptPath,
		env:        opts.Env,
		log:        opts.Logger,
		events:     make(chan Event, 64),
	}
	s.pipeline = newPipeline(s, opts.SendQueueMax, opts.SendDelay, opts.Logger)
	return s
}

// Events returns the channel of events read from the child's stdout.
// Malformed lines are dropped before reaching this channel.
func (s *Supervisor) Events() <-chan Event { return s.events }

// Pipeline returns the paced send pipeline backed by this supervisor.
func (s *Supervisor) Pipeline() *Pipeline { return s.pipeline }

// Addr returns the overlay address the child reported in its "ready"
// event, or "" if the child hasn't announced one yet.
func (s *Supervisor) Addr() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.addr
}

// Start launches the child process and begins the reader/sender
// goroutines. A missing node binary is reported as a Fatal error since
// neither the gateway nor the overlay link can function without it.
func (s *Supervisor) Start(ctx context.Context) error {
	nodeBin, err := exec.LookPath("node")
	if err != nil {
		return fmt.Errorf("%w: node binary not found on PATH: %v", errs.ErrFatal, err)
	}

	cmd := exec.Command(nodeBin, s.scriptPath)
	cmd.Env = append(os.Environ(), s.env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: sidecar stdin pipe: %v", errs.ErrFatal, err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("%w: sidecar output pipe: %v", errs.ErrFatal, err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		return fmt.Errorf("%w: starting sidecar process: %v", errs.ErrFatal, err)
	}
	_ = pw.Close() // parent's copy; child keeps the fd alive until it exits

	s.cmd = cmd
	s.stdin = stdin

	s.wg.Add(1)
	go s.readLoop(pr)

	s.pipeline.start()

	if s.log != nil {
		s.log.Info().Msg("sidecar process started")
	}
	return nil
}

// readLoop never runs dispatch logic inline: it only parses and forwards.
func (s *Supervisor) readLoop(r io.ReadCloser) {
	defer s.wg.Done()
	defer r.Close()
	defer close(s.events)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			if s.log != nil {
				s.log.Warn().Err(err).Msg("dropping malformed sidecar line")
			}
			continue
		}
		ev.Raw = append(json.RawMessage(nil), line...)

		if ev.Kind == "ready" && ev.Addr != "" {
			s.addrMu.Lock()
			s.addr = ev.Addr
			s.addrMu.Unlock()
		}

		s.events <- ev
	}
	if err := scanner.Err(); err != nil && s.log != nil {
		s.log.Warn().Err(err).Msg("sidecar reader loop ended with error")
	}
}

// writeLine serializes one command to the child's stdin; callers other
// than the pipeline's sender goroutine should not call this directly.
func (s *Supervisor) writeLine(cmd Command) error {
	b, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding sidecar command: %w", err)
	}
	b = append(b, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.stdin == nil {
		return fmt.Errorf("%w: sidecar stdin not open", errs.ErrFatal)
	}
	_, err = s.stdin.Write(b)
	return err
}

// Close asks the child to shut down cleanly and lets it exit on its own;
// it does not force-kill the process.
func (s *Supervisor) Close() error {
	s.pipeline.stop()
	err := s.writeLine(Command{Op: "close"})
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	return err
}
