package sh

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

var (
	// ErrTimeout indicates no response came in time.
	ErrTimeout = errors.New("response timeout")
	// ErrClosed indicates the connection is gone.
	ErrClosed = errors.New("connection closed")
)

// Conn is a host connection to a device. Lines answered by "ok" or
// "error:N" are responses to Send; everything else (banner, status reports,
// messages) goes to Output.
type Conn struct {
	Name string

	stream    io.ReadWriteCloser
	output    func(string)
	respCh    chan string
	doneCh    chan struct{}
	writeLock sync.Mutex
}

// NewConn starts reading from stream.
func NewConn(name string, stream io.ReadWriteCloser, output func(string)) *Conn {
	c := &Conn{
		Name:   name,
		stream: stream,
		output: output,
		respCh: make(chan string, 16),
		doneCh: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Send writes a line and waits for its response.
func (c *Conn) Send(line string, timeout time.Duration) (string, error) {
	// forget responses that came after an earlier timeout.
	for drained := false; !drained; {
		select {
		case <-c.respCh:
		default:
			drained = true
		}
	}
	if err := c.write([]byte(strings.TrimRight(line, "\r\n") + "\n")); err != nil {
		return "", err
	}
	select {
	case resp := <-c.respCh:
		return resp, nil
	case <-c.doneCh:
		return "", ErrClosed
	case <-time.After(timeout):
		return "", ErrTimeout
	}
}

// Realtime writes real-time command bytes. They are not answered.
func (c *Conn) Realtime(cmds ...byte) error {
	return c.write(cmds)
}

// Done is closed when the connection is gone.
func (c *Conn) Done() <-chan struct{} {
	return c.doneCh
}

// Close implements io.Closer.
func (c *Conn) Close() error {
	return c.stream.Close()
}

func (c *Conn) write(p []byte) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	select {
	case <-c.doneCh:
		return ErrClosed
	default:
	}
	_, err := c.stream.Write(p)
	return err
}

func (c *Conn) readLoop() {
	defer close(c.doneCh)
	scanner := bufio.NewScanner(c.stream)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case line == "":
		case line == "ok" || strings.HasPrefix(line, "error:"):
			select {
			case c.respCh <- line:
			default:
				c.output(line)
			}
		default:
			c.output(line)
		}
	}
}
