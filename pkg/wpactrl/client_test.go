package wpactrl

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeSupplicant emulates just enough of wpa_supplicant's control
// socket to exercise Client.Open/Close and Request: it replies OK to
// ATTACH/DETACH, PONG to PING, and UNKNOWN COMMAND to anything else.
type fakeSupplicant struct {
	conn *net.UnixConn
}

func newFakeSupplicant(t *testing.T, path string) *fakeSupplicant {
	t.Helper()
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	return &fakeSupplicant{conn: conn}
}

func (f *fakeSupplicant) serveOne(t *testing.T) net.Addr {
	t.Helper()
	buf := make([]byte, 256)
	f.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, addr, err := f.conn.ReadFromUnix(buf)
	require.NoError(t, err)

	cmd := string(buf[:n])
	var reply string
	switch cmd {
	case "ATTACH", "DETACH":
		reply = "OK\n"
	case "PING":
		reply = "PONG\n"
	default:
		reply = "UNKNOWN COMMAND\n"
	}
	_, err = f.conn.WriteToUnix([]byte(reply), addr)
	require.NoError(t, err)
	return addr
}

func TestClientOpenAttachAndClose(t *testing.T) {
	dir := t.TempDir()
	ctrlPath := filepath.Join(dir, "wpa-ctrl")
	fake := newFakeSupplicant(t, ctrlPath)
	defer fake.conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fake.serveOne(t) // ATTACH
	}()

	c := NewClient()
	require.NoError(t, c.Open(ctrlPath))
	<-done
	require.NoError(t, c.Close())
}

func TestClientRequestOK(t *testing.T) {
	dir := t.TempDir()
	ctrlPath := filepath.Join(dir, "wpa-ctrl")
	fake := newFakeSupplicant(t, ctrlPath)
	defer fake.conn.Close()

	go fake.serveOne(t) // ATTACH
	c := NewClient()
	require.NoError(t, c.Open(ctrlPath))
	defer c.Close()

	go func() {
		buf := make([]byte, 256)
		fake.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, addr, err := fake.conn.ReadFromUnix(buf)
		if err != nil {
			return
		}
		if string(buf[:n]) == "LIST_NETWORKS" {
			fake.conn.WriteToUnix([]byte("OK\n"), addr)
		}
	}()

	require.NoError(t, c.RequestOK(context.Background(), "LIST_NETWORKS", time.Second))
}
