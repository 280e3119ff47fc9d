// Package ctl implements the control-channel client: a short
// request/response protocol carrying ASCII verbs (Pause, Resume, Drop,
// Drain) over a message-framed socket, each message one
// newline-terminated ASCII line.
package ctl

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Verb is one of the four control-channel commands.
type Verb string

const (
	Pause  Verb = "Pause"
	Resume Verb = "Resume"
	Drop   Verb = "Drop"
	Drain  Verb = "Drain"
)

// OKReply is the success response; anything else is an error string.
const OKReply = "OK"

// PauseResumeTimeout bounds Pause/Resume replies so a misbehaving
// server can never block the application thread forever. Drop/Drain
// use the framework default, DefaultTimeout.
const PauseResumeTimeout = 200 * time.Millisecond

// DefaultTimeout is the framework default used for Drop/Drain, which
// are allowed to take longer (e.g. Drain waits for the server's own
// buffer to empty).
const DefaultTimeout = 5 * time.Second

// ErrProtocolTimeout is returned when a reply does not arrive within
// a command's timeout.
var ErrProtocolTimeout = errors.New("ctl: protocol timeout")

// Client is a single control-channel connection. Requests/responses
// are one-shot and unordered across commands from the same client —
// meaning no pipelining is assumed, not that concurrent callers need
// their own connection.
type Client struct {
	mu   sync.Mutex // serializes Send on the shared connection
	conn net.Conn
	r    *bufio.Reader
}

// NewClient wraps an already-connected socket.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn, r: bufio.NewReader(conn)}
}

// Dial connects to addr over network (e.g. "unix", "/path/to/sock").
func Dial(network, addr string) (*Client, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("ctl: dial: %w", err)
	}
	return NewClient(conn), nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) timeoutFor(v Verb) time.Duration {
	switch v {
	case Pause, Resume:
		return PauseResumeTimeout
	default:
		return DefaultTimeout
	}
}

// Send issues one command and waits for its reply, using the timeout
// appropriate to the verb. Suppressing SIGPIPE on a broken write has
// no analogue in Go's net.Conn — Go never raises it — so the write
// side is a plain Write.
func (c *Client) Send(v Verb) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	timeout := c.timeoutFor(v)
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("ctl: set write deadline: %w", err)
	}
	if _, err := fmt.Fprintf(c.conn, "%s\n", v); err != nil {
		return fmt.Errorf("ctl: send %s: %w", v, err)
	}

	// The command has already been sent, so an interrupted wait for
	// the reply is retried silently — only the deadline itself should
	// ever stop the wait.
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("ctl: set read deadline: %w", err)
	}
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			if isTimeout(err) {
				return fmt.Errorf("%w: %s", ErrProtocolTimeout, v)
			}
			return fmt.Errorf("ctl: reply to %s: %w", v, err)
		}
		reply := strings.TrimRight(line, "\r\n")
		if reply == OKReply {
			return nil
		}
		return fmt.Errorf("ctl: %s rejected: %s", v, reply)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
