package wpactrl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/chenbd/go-wfd/pkg/wfderr"
)

const (
	maxRequestTimeout = 10 * time.Second
	pingInterval      = 10 * time.Second
	abstractPrefix    = "@abstract:"
)

var boundPathCounter int64

// EventCallback receives one raw asynchronous event datagram (already
// confirmed to start with '<') from the event socket. It has no return
// value; closing the Client from inside the callback is explicitly
// supported (Dispatch notices, stops its read loop, and reports
// wfderr.ErrPipeClosed).
type EventCallback func(raw []byte)

// Client speaks the wpa_supplicant ASCII control-socket protocol over
// a pair of connected Unix datagram sockets: one for synchronous
// request/reply, one for ATTACH'd asynchronous events. It is not safe
// for concurrent use — like the RTSP decoder, it is meant to be driven
// from a single logical thread via Dispatch.
type Client struct {
	logger  *slog.Logger
	onEvent EventCallback

	reqConn  *os.File
	reqPath  string
	evConn   *os.File
	evPath   string
	ctrlPath string

	open    bool
	epollFd int

	sigmask *unix.Sigset_t

	pingDeadline time.Time
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger attaches a structured logger for connection-lifecycle tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithEventCallback sets the handler invoked for every asynchronous event datagram.
func WithEventCallback(cb EventCallback) Option {
	return func(c *Client) { c.onEvent = cb }
}

// NewClient constructs a Client. Call Open to establish the connection.
func NewClient(opts ...Option) *Client {
	c := &Client{logger: slog.Default(), epollFd: -1}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetSigmask installs the signal mask Dispatch and the internal
// request/reply waits apply for the duration of every ppoll(2) call,
// atomically unblocking the named signals only while the kernel is
// blocked waiting for socket readiness. Pass nil to go back to using
// the thread's current signal mask (the default).
func (c *Client) SetSigmask(mask *unix.Sigset_t) {
	c.sigmask = mask
}

// IsOpen reports whether Open has succeeded and Close has not yet been called.
func (c *Client) IsOpen() bool {
	return c.open
}

// Fd returns the descriptor of the readiness multiplexer backing this
// client: an epoll instance watching both the request and event
// sockets for POLLIN. Callers may embed it in their own event loop and
// call Dispatch with a zero timeout once it reports readiness. Returns
// -1 if the client is not open.
func (c *Client) Fd() int {
	if !c.open {
		return -1
	}
	return c.epollFd
}

// Open binds two datagram sockets to unique local paths derived from
// the process id and a monotonic counter, connects both to ctrlPath
// (an abstract-namespace address if prefixed "@abstract:", otherwise a
// filesystem path), and ATTACHes the event socket.
func (c *Client) Open(ctrlPath string) error {
	if c.open {
		return fmt.Errorf("wpactrl: already open: %w", wfderr.ErrAlreadyOpen)
	}

	reqConn, reqPath, err := bindDatagram()
	if err != nil {
		return fmt.Errorf("wpactrl: bind request socket: %w", err)
	}
	evConn, evPath, err := bindDatagram()
	if err != nil {
		unix.Close(int(reqConn.Fd()))
		os.Remove(reqPath)
		return fmt.Errorf("wpactrl: bind event socket: %w", err)
	}

	if err := connectTo(reqConn, ctrlPath); err != nil {
		cleanupSocket(reqConn, reqPath)
		cleanupSocket(evConn, evPath)
		return fmt.Errorf("wpactrl: connect request socket: %w", err)
	}
	if err := connectTo(evConn, ctrlPath); err != nil {
		cleanupSocket(reqConn, reqPath)
		cleanupSocket(evConn, evPath)
		return fmt.Errorf("wpactrl: connect event socket: %w", err)
	}

	epollFd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		cleanupSocket(reqConn, reqPath)
		cleanupSocket(evConn, evPath)
		return fmt.Errorf("wpactrl: epoll_create1: %w", err)
	}
	for _, fd := range []int{int(reqConn.Fd()), int(evConn.Fd())} {
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epollFd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			unix.Close(epollFd)
			cleanupSocket(reqConn, reqPath)
			cleanupSocket(evConn, evPath)
			return fmt.Errorf("wpactrl: epoll_ctl: %w", err)
		}
	}

	c.reqConn, c.reqPath = reqConn, reqPath
	c.evConn, c.evPath = evConn, evPath
	c.ctrlPath = ctrlPath
	c.epollFd = epollFd
	c.open = true
	c.pingDeadline = time.Now().Add(pingInterval)

	reply, err := c.request(c.evConn, "ATTACH", maxRequestTimeout)
	if err != nil || string(reply) != "OK\n" {
		c.request(c.evConn, "DETACH", time.Second) //nolint:errcheck
		c.closeSockets()
		if err == nil {
			err = fmt.Errorf("wpactrl: ATTACH refused: %q: %w", reply, wfderr.ErrProtocolMalformed)
		}
		return err
	}

	c.logger.Debug("wpactrl: attached", "ctrl_path", ctrlPath, "req_path", reqPath, "ev_path", evPath)
	return nil
}

// Close DETACHes the event socket (best-effort) and releases both sockets and their bound paths.
func (c *Client) Close() error {
	if !c.open {
		return nil
	}
	c.request(c.evConn, "DETACH", time.Second) //nolint:errcheck
	c.closeSockets()
	return nil
}

func (c *Client) closeSockets() {
	if c.epollFd >= 0 {
		unix.Close(c.epollFd)
		c.epollFd = -1
	}
	cleanupSocket(c.reqConn, c.reqPath)
	cleanupSocket(c.evConn, c.evPath)
	c.open = false
}

func cleanupSocket(f *os.File, path string) {
	if f != nil {
		f.Close()
	}
	if path != "" {
		os.Remove(path)
	}
}

// Request sends cmd on the request socket and returns the first reply
// datagram, ignoring any stray event datagram (one beginning with
// '<') that might race onto the same socket. timeout is clamped to
// maxRequestTimeout.
func (c *Client) Request(ctx context.Context, cmd string, timeout time.Duration) ([]byte, error) {
	if !c.open {
		return nil, fmt.Errorf("wpactrl: not open: %w", wfderr.ErrNotOpen)
	}
	if timeout > maxRequestTimeout {
		timeout = maxRequestTimeout
	}
	return c.request(c.reqConn, cmd, timeout)
}

// RequestOK is Request expecting exactly "OK\n".
func (c *Client) RequestOK(ctx context.Context, cmd string, timeout time.Duration) error {
	reply, err := c.Request(ctx, cmd, timeout)
	if err != nil {
		return err
	}
	if string(reply) != "OK\n" {
		return fmt.Errorf("wpactrl: %s: unexpected reply %q: %w", cmd, reply, wfderr.ErrProtocolMalformed)
	}
	return nil
}

func (c *Client) request(conn *os.File, cmd string, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)

	if err := c.waitFor(conn, unix.POLLOUT, deadline); err != nil {
		return nil, err
	}
	if err := unix.Sendto(int(conn.Fd()), []byte(cmd), unix.MSG_NOSIGNAL, nil); err != nil {
		return nil, fmt.Errorf("wpactrl: send %q: %w", cmd, err)
	}

	for {
		if err := c.waitFor(conn, unix.POLLIN, deadline); err != nil {
			return nil, err
		}
		buf := make([]byte, 4096)
		n, _, err := unix.Recvfrom(int(conn.Fd()), buf, unix.MSG_DONTWAIT)
		if err != nil {
			if err == unix.EAGAIN {
				continue
			}
			return nil, fmt.Errorf("wpactrl: recv reply to %q: %w", cmd, err)
		}
		if n > 0 && buf[0] == '<' {
			continue // stray async event, not our reply
		}
		return buf[:n], nil
	}
}

// Dispatch first sends the PING/PONG liveness probe if its 10s
// deadline has passed, then waits at most timeout (and never past the
// next probe deadline) for either socket to become readable, and
// services the sockets that fired. A probe deadline that passes during
// the wait is serviced by the next Dispatch call. It stops on the
// first error (a HUP/ERR on the request or event socket, a failed
// event read, or a failed PING/PONG exchange).
func (c *Client) Dispatch(ctx context.Context, timeout time.Duration) error {
	if !c.open {
		return fmt.Errorf("wpactrl: not open: %w", wfderr.ErrNotOpen)
	}

	now := time.Now()
	if now.After(c.pingDeadline) {
		if err := c.ping(); err != nil {
			return err
		}
		c.pingDeadline = now.Add(pingInterval)
	}

	waitUntil := c.pingDeadline
	if d := now.Add(timeout); timeout >= 0 && d.Before(waitUntil) {
		waitUntil = d
	}

	pfds := []unix.PollFd{
		{Fd: int32(c.reqConn.Fd()), Events: unix.POLLIN},
		{Fd: int32(c.evConn.Fd()), Events: unix.POLLIN},
	}
	ts := durationToTimespec(time.Until(waitUntil))
	n, err := unix.Ppoll(pfds, &ts, c.sigmask)
	if err != nil && err != unix.EINTR {
		return fmt.Errorf("wpactrl: ppoll: %w", err)
	}
	if n <= 0 {
		return nil
	}

	if pfds[1].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
		if err := c.drainEvents(); err != nil {
			return err
		}
	}
	if pfds[0].Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
		return fmt.Errorf("wpactrl: request socket: %w", wfderr.ErrPipeClosed)
	}
	return nil
}

func (c *Client) drainEvents() error {
	for {
		buf := make([]byte, 4096)
		n, _, err := unix.Recvfrom(int(c.evConn.Fd()), buf, unix.MSG_DONTWAIT)
		if err != nil {
			if err == unix.EAGAIN {
				return nil
			}
			return fmt.Errorf("wpactrl: recv event: %w", err)
		}
		if n == 0 {
			return nil
		}
		if buf[0] != '<' {
			continue
		}
		if c.onEvent != nil {
			c.onEvent(buf[:n])
		}
		if !c.open {
			return fmt.Errorf("wpactrl: closed from event callback: %w", wfderr.ErrPipeClosed)
		}
	}
}

func (c *Client) ping() error {
	reply, err := c.request(c.reqConn, "PING", maxRequestTimeout)
	if err != nil {
		return fmt.Errorf("wpactrl: ping: %w", err)
	}
	if string(reply) != "PONG\n" {
		return fmt.Errorf("wpactrl: ping: unexpected reply %q: %w", reply, wfderr.ErrProtocolMalformed)
	}
	return nil
}

func (c *Client) waitFor(conn *os.File, events int16, deadline time.Time) error {
	pfds := []unix.PollFd{{Fd: int32(conn.Fd()), Events: events}}
	ts := durationToTimespec(time.Until(deadline))
	n, err := unix.Ppoll(pfds, &ts, c.sigmask)
	if err != nil {
		return fmt.Errorf("wpactrl: ppoll: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("wpactrl: %w", wfderr.ErrTimeout)
	}
	if pfds[0].Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
		return fmt.Errorf("wpactrl: %w", wfderr.ErrPipeClosed)
	}
	return nil
}

// durationToTimespec clamps a negative duration to zero and converts
// it to the Timespec ppoll(2) expects.
func durationToTimespec(d time.Duration) unix.Timespec {
	if d < 0 {
		d = 0
	}
	return unix.NsecToTimespec(d.Nanoseconds())
}

// bindDatagram creates a Unix datagram socket and binds it to a unique
// local path derived from the process id and a monotonic counter,
// retrying on address collision.
func bindDatagram() (*os.File, string, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, "", fmt.Errorf("socket: %w", err)
	}

	for attempt := 0; attempt < 64; attempt++ {
		seq := atomic.AddInt64(&boundPathCounter, 1)
		path := filepath.Join(os.TempDir(), fmt.Sprintf("libwfd-wpa-ctrl-%d-%d", os.Getpid(), seq))
		sa := &unix.SockaddrUnix{Name: path}
		if err := unix.Bind(fd, sa); err != nil {
			if err == unix.EADDRINUSE {
				continue
			}
			unix.Close(fd)
			return nil, "", fmt.Errorf("bind: %w", err)
		}
		return os.NewFile(uintptr(fd), path), path, nil
	}
	unix.Close(fd)
	return nil, "", fmt.Errorf("bind: exhausted retries: %w", wfderr.ErrInternal)
}

func connectTo(conn *os.File, ctrlPath string) error {
	var sa unix.SockaddrUnix
	if len(ctrlPath) > len(abstractPrefix) && ctrlPath[:len(abstractPrefix)] == abstractPrefix {
		sa.Name = "\x00" + ctrlPath[len(abstractPrefix):]
	} else {
		sa.Name = ctrlPath
	}
	return unix.Connect(int(conn.Fd()), &sa)
}
