package session

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chenbd/go-wfd/pkg/wpactrl"
)

// fakeSupplicant emulates just enough of wpa_supplicant's control
// socket to exercise a Dispatcher fronting a real Client: OK to every
// command, recording the order commands arrived in.
type fakeSupplicant struct {
	conn *net.UnixConn

	mu    sync.Mutex
	order []string
}

func newFakeSupplicant(t *testing.T, path string) *fakeSupplicant {
	t.Helper()
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	return &fakeSupplicant{conn: conn}
}

// serveForever replies OK to every datagram it receives and records
// the command, until the socket is closed.
func (f *fakeSupplicant) serveForever() {
	buf := make([]byte, 256)
	for {
		f.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, addr, err := f.conn.ReadFromUnix(buf)
		if err != nil {
			return
		}
		cmd := string(buf[:n])
		switch cmd {
		case "ATTACH", "DETACH":
			f.conn.WriteToUnix([]byte("OK\n"), addr)
			continue
		case "PING":
			f.conn.WriteToUnix([]byte("PONG\n"), addr)
			continue
		}
		f.mu.Lock()
		f.order = append(f.order, cmd)
		f.mu.Unlock()
		f.conn.WriteToUnix([]byte("OK\n"), addr)
	}
}

func (f *fakeSupplicant) commandOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func newOpenClient(t *testing.T) (*wpactrl.Client, *fakeSupplicant) {
	t.Helper()
	dir := t.TempDir()
	ctrlPath := filepath.Join(dir, "wpa-ctrl")
	fake := newFakeSupplicant(t, ctrlPath)
	t.Cleanup(func() { fake.conn.Close() })
	go fake.serveForever()

	c := wpactrl.NewClient()
	require.NoError(t, c.Open(ctrlPath))
	t.Cleanup(func() { c.Close() })
	return c, fake
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherSubmitRoundTrip(t *testing.T) {
	client, _ := newOpenClient(t)
	d := NewDispatcher(client, 0, discardLogger())
	d.Start()
	defer d.Stop()

	reply, err := d.Submit(context.Background(), "LIST_NETWORKS", PriorityPoll, time.Second)
	require.NoError(t, err)
	require.Equal(t, "OK\n", string(reply))
}

func TestDispatcherServicesControlBeforePoll(t *testing.T) {
	client, fake := newOpenClient(t)
	d := NewDispatcher(client, 0, discardLogger())

	var wg sync.WaitGroup
	submit := func(cmd string, priority Priority) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Submit(context.Background(), cmd, priority, time.Second)
			require.NoError(t, err)
		}()
	}

	submit("POLL1", PriorityPoll)
	submit("POLL2", PriorityPoll)
	submit("POLL3", PriorityPoll)
	submit("CTRL", PriorityControl)

	// Give every Submit call time to push its ticket onto the heap
	// before the worker starts draining it, so priority ordering (not
	// submission order) decides who goes first.
	time.Sleep(100 * time.Millisecond)

	d.Start()
	defer d.Stop()

	wg.Wait()

	order := fake.commandOrder()
	require.Len(t, order, 4)
	require.Equal(t, "CTRL", order[0], "the control-priority ticket must be serviced before any poll-priority ticket queued alongside it")
}

func TestDispatcherStopFailsQueuedTickets(t *testing.T) {
	client, _ := newOpenClient(t)
	d := NewDispatcher(client, 0, discardLogger())
	// Never started: nothing ever drains the queue.

	errCh := make(chan error, 1)
	go func() {
		_, err := d.Submit(context.Background(), "LIST_NETWORKS", PriorityPoll, time.Second)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	d.Stop() // workerLoop never ran; Stop must still fail the queued ticket

	err := <-errCh
	require.ErrorIs(t, err, context.Canceled)
}
