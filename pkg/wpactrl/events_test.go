package wpactrl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventTableIsSortedAndUnique(t *testing.T) {
	for i := 1; i < len(eventTable); i++ {
		require.Less(t, eventTable[i-1].name, eventTable[i].name, "table not strictly sorted at %d", i)
	}
	seen := map[EventType]bool{}
	for _, e := range eventTable {
		require.False(t, seen[e.typ], "duplicate type %v", e.typ)
		seen[e.typ] = true
	}
}

func TestParseEventMalformedPriorityDefaultsToMsgDump(t *testing.T) {
	cases := []string{
		"AP-STA-CONNECTED 00:11:22:33:44:55",
		"<>AP-STA-CONNECTED 00:11:22:33:44:55",
		"<+4>AP-STA-CONNECTED 00:11:22:33:44:55",
		"<-4>AP-STA-CONNECTED 00:11:22:33:44:55",
		"<abc>AP-STA-CONNECTED 00:11:22:33:44:55",
		"<99>AP-STA-CONNECTED 00:11:22:33:44:55",
		"<4AP-STA-CONNECTED 00:11:22:33:44:55",
	}
	for _, c := range cases {
		ev, err := ParseEvent(c)
		require.NoError(t, err)
		if ev.Type != EventUnknown {
			require.Equal(t, PriorityMsgDump, ev.Priority, c)
		}
	}
}

func TestScenario6APSTAConnected(t *testing.T) {
	ev, err := ParseEvent("<4>AP-STA-CONNECTED 00:00:00:00:00:00")
	require.NoError(t, err)
	require.Equal(t, EventAPSTAConnected, ev.Type)
	require.Equal(t, PriorityError, ev.Priority)
	require.Equal(t, "00:00:00:00:00:00", ev.APSTAConnected.MAC)
}

func TestScenario7P2PGroupStarted(t *testing.T) {
	ev, err := ParseEvent("<4>P2P-GROUP-STARTED p2p-wlan0-0 client go_dev_addr=00:00:00:00:00:00")
	require.NoError(t, err)
	require.Equal(t, EventP2PGroupStarted, ev.Type)
	require.Equal(t, "p2p-wlan0-0", ev.P2PGroupStarted.Ifname)
	require.Equal(t, RoleClient, ev.P2PGroupStarted.Role)
	require.Equal(t, "00:00:00:00:00:00", ev.P2PGroupStarted.GoMAC)
}

func TestUnknownEventName(t *testing.T) {
	ev, err := ParseEvent("<2>SOME-UNRECOGNIZED-EVENT foo bar")
	require.NoError(t, err)
	require.Equal(t, EventUnknown, ev.Type)
}

func TestP2PDeviceLostToleratesMissingAddr(t *testing.T) {
	ev, err := ParseEvent("P2P-DEVICE-LOST whatever")
	require.NoError(t, err)
	require.Equal(t, EventP2PDeviceLost, ev.Type)
	require.Equal(t, "", ev.P2PDeviceLost.PeerMAC)
}

func TestP2PGoNegSuccessRequiresAllThreeFields(t *testing.T) {
	_, err := ParseEvent("P2P-GO-NEG-SUCCESS role=GO peer_dev=00:11:22:33:44:55")
	require.Error(t, err)

	ev, err := ParseEvent("P2P-GO-NEG-SUCCESS role=GO peer_dev=00:11:22:33:44:55 peer_iface=66:77:88:99:aa:bb")
	require.NoError(t, err)
	require.Equal(t, RoleGO, ev.P2PGoNegSuccess.Role)
	require.Equal(t, "00:11:22:33:44:55", ev.P2PGoNegSuccess.PeerMAC)
	require.Equal(t, "66:77:88:99:aa:bb", ev.P2PGoNegSuccess.PeerIface)
}

func TestTokenizeSingleQuoteEscapesDoNotForceBoundary(t *testing.T) {
	require.Equal(t, []string{"abcdef"}, tokenize("ab'cd'ef"))
	require.Equal(t, []string{"a b", "c"}, tokenize(`'a b' c`))
	require.Equal(t, []string{"a'b"}, tokenize(`'a\'b'`))
}
