package ipc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/turtacn/Auris/pkg/protocol"
)

// Writer sends newline-delimited JSON messages. It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.WriteCloser
}

func NewWriter(w io.WriteCloser) *Writer {
	return &Writer{w: w}
}

// Send writes msg as a single line.
func (w *Writer) Send(msg protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msg.Type, err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	for len(data) > 0 {
		n, err := w.w.Write(data)
		data = data[n:]
		if err != nil {
			if IsTransient(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Close()
}

// Reader receives newline-delimited JSON messages. Receive is not safe for
// concurrent use; Pump owns the reader once started.
type Reader struct {
	br      *bufio.Reader
	c       io.Closer
	partial []byte
}

func NewReader(r io.ReadCloser) *Reader {
	return &Reader{br: bufio.NewReader(r), c: r}
}

// Receive returns the next message. A transient error leaves any partially
// read line buffered so the call can simply be retried. io.EOF is returned
// once the peer has closed its end.
func (r *Reader) Receive() (protocol.Message, error) {
	for {
		chunk, err := r.br.ReadBytes('\n')
		r.partial = append(r.partial, chunk...)
		if err != nil {
			if IsTransient(err) {
				return protocol.Message{}, err
			}
			if errors.Is(err, io.EOF) && len(bytes.TrimSpace(r.partial)) > 0 {
				r.partial = nil
				return protocol.Message{}, io.ErrUnexpectedEOF
			}
			return protocol.Message{}, err
		}

		line := bytes.TrimSpace(r.partial)
		r.partial = nil
		if len(line) == 0 {
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return protocol.Message{}, fmt.Errorf("decode message %q: %w", line, err)
		}
		return msg, nil
	}
}

// Pump reads messages in a goroutine until EOF, a non-transient error, or
// stop is closed. The message channel is closed when reading ends. Every
// error is forwarded, transient ones included, so the consumer decides how
// to treat them; reading continues after a transient error.
func (r *Reader) Pump(stop <-chan struct{}) (<-chan protocol.Message, <-chan error) {
	msgs := make(chan protocol.Message, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(msgs)
		for {
			msg, err := r.Receive()
			if err != nil {
				if isClosed(err) {
					return
				}
				select {
				case errs <- err:
				case <-stop:
					return
				}
				if IsTransient(err) {
					continue
				}
				return
			}
			select {
			case msgs <- msg:
			case <-stop:
				return
			}
		}
	}()
	return msgs, errs
}

func (r *Reader) Close() error {
	return r.c.Close()
}

// IsTruncated reports whether the peer closed its end partway through a
// message.
func IsTruncated(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF)
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

// Personal.AI order the ending
