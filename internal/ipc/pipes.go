// Package ipc carries protocol messages between the supervisor and the
// recognizer worker over two unidirectional pipes inherited by the child.
package ipc

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/turtacn/Auris/pkg/consts"
	"github.com/turtacn/Auris/pkg/logger"
)

// Pipes is the supervisor side of the worker channels.
type Pipes struct {
	mu sync.Mutex

	// Child ends, passed through ExtraFiles in this order.
	inboundRead   *os.File
	outboundWrite *os.File

	inbound  *Writer
	outbound *Reader

	released bool
}

// NewPipes creates the inbound (supervisor to worker) and outbound (worker
// to supervisor) pipes.
func NewPipes() (*Pipes, error) {
	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create inbound pipe: %w", err)
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		inR.Close()
		inW.Close()
		return nil, fmt.Errorf("create outbound pipe: %w", err)
	}
	return &Pipes{
		inboundRead:   inR,
		outboundWrite: outW,
		inbound:       NewWriter(inW),
		outbound:      NewReader(outR),
	}, nil
}

// ChildFiles returns the descriptors the worker inherits. They land on
// consts.InboundFD and consts.OutboundFD.
func (p *Pipes) ChildFiles() []*os.File {
	return []*os.File{p.inboundRead, p.outboundWrite}
}

// Env returns the variable that tells the worker how many descriptors it
// inherited.
func (p *Pipes) Env() string {
	return fmt.Sprintf("%s=%d", consts.EnvChannelFDs, len(p.ChildFiles()))
}

// ReleaseChildEnds closes the supervisor's copies of the child ends once
// the worker has started, so the outbound reader sees EOF when the worker
// exits.
func (p *Pipes) ReleaseChildEnds() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.released = true
	p.inboundRead.Close()
	p.outboundWrite.Close()
}

// Inbound is the writer for messages to the worker.
func (p *Pipes) Inbound() *Writer { return p.inbound }

// Outbound is the reader for messages from the worker.
func (p *Pipes) Outbound() *Reader { return p.outbound }

func (p *Pipes) Close() error {
	p.ReleaseChildEnds()
	return errors.Join(p.inbound.Close(), p.outbound.Close())
}

// Inherited returns the worker side of the channels: a reader for inbound
// messages and a writer for outbound ones.
func Inherited() (*Reader, *Writer, error) {
	fds := os.Getenv(consts.EnvChannelFDs)
	if fds == "" {
		return nil, nil, fmt.Errorf("%s is not set; the worker must be started by the supervisor", consts.EnvChannelFDs)
	}
	count, err := strconv.Atoi(fds)
	if err != nil || count < 2 {
		return nil, nil, fmt.Errorf("invalid %s=%q", consts.EnvChannelFDs, fds)
	}

	// Clear it so children of the worker don't see it
	os.Unsetenv(consts.EnvChannelFDs)

	for _, fd := range []int{consts.InboundFD, consts.OutboundFD} {
		if !isPipe(uintptr(fd)) {
			return nil, nil, fmt.Errorf("inherited fd %d is not a pipe", fd)
		}
	}
	logger.Log.Debug("Worker: Discovered inherited channels", "count", count)

	in := os.NewFile(uintptr(consts.InboundFD), "inbound")
	out := os.NewFile(uintptr(consts.OutboundFD), "outbound")
	return NewReader(in), NewWriter(out), nil
}

// Personal.AI order the ending
