package wpactrl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chenbd/go-wfd/pkg/wfderr"
)

// EventType identifies a recognized wpa_supplicant control-interface event.
type EventType int

const (
	EventUnknown EventType = iota
	EventAPSTAConnected
	EventAPSTADisconnected
	EventCtrlEventScanStarted
	EventCtrlEventTerminating
	EventP2PDeviceFound
	EventP2PDeviceLost
	EventP2PFindStopped
	EventP2PGoNegFailure
	EventP2PGoNegRequest
	EventP2PGoNegSuccess
	EventP2PGroupFormationFailure
	EventP2PGroupFormationSuccess
	EventP2PGroupRemoved
	EventP2PGroupStarted
	EventP2PInvitationReceived
	EventP2PInvitationResult
	EventP2PProvDiscEnterPin
	EventP2PProvDiscPBCReq
	EventP2PProvDiscPBCResp
	EventP2PProvDiscShowPin
	EventP2PServDiscReq
	EventP2PServDiscResp
)

// Priority is the wpa_supplicant control-interface debug priority,
// lowest (most verbose) to highest.
type Priority int

const (
	PriorityMsgDump Priority = iota
	PriorityDebug
	PriorityInfo
	PriorityWarning
	PriorityError
	priorityCount
)

// Role distinguishes the two ends of a P2P group.
type Role int

const (
	RoleUnknown Role = iota
	RoleGO
	RoleClient
)

type eventTableEntry struct {
	name string
	typ  EventType
}

// eventTable MUST stay sorted alphabetically by name: ParseEvent does
// a prefix binary search over it, mirroring wpa_parser.c's bsearch
// against its event_list[].
var eventTable = []eventTableEntry{
	{"AP-STA-CONNECTED", EventAPSTAConnected},
	{"AP-STA-DISCONNECTED", EventAPSTADisconnected},
	{"CTRL-EVENT-SCAN-STARTED", EventCtrlEventScanStarted},
	{"CTRL-EVENT-TERMINATING", EventCtrlEventTerminating},
	{"P2P-DEVICE-FOUND", EventP2PDeviceFound},
	{"P2P-DEVICE-LOST", EventP2PDeviceLost},
	{"P2P-FIND-STOPPED", EventP2PFindStopped},
	{"P2P-GO-NEG-FAILURE", EventP2PGoNegFailure},
	{"P2P-GO-NEG-REQUEST", EventP2PGoNegRequest},
	{"P2P-GO-NEG-SUCCESS", EventP2PGoNegSuccess},
	{"P2P-GROUP-FORMATION-FAILURE", EventP2PGroupFormationFailure},
	{"P2P-GROUP-FORMATION-SUCCESS", EventP2PGroupFormationSuccess},
	{"P2P-GROUP-REMOVED", EventP2PGroupRemoved},
	{"P2P-GROUP-STARTED", EventP2PGroupStarted},
	{"P2P-INVITATION-RECEIVED", EventP2PInvitationReceived},
	{"P2P-INVITATION-RESULT", EventP2PInvitationResult},
	{"P2P-PROV-DISC-ENTER-PIN", EventP2PProvDiscEnterPin},
	{"P2P-PROV-DISC-PBC-REQ", EventP2PProvDiscPBCReq},
	{"P2P-PROV-DISC-PBC-RESP", EventP2PProvDiscPBCResp},
	{"P2P-PROV-DISC-SHOW-PIN", EventP2PProvDiscShowPin},
	{"P2P-SERV-DISC-REQ", EventP2PServDiscReq},
	{"P2P-SERV-DISC-RESP", EventP2PServDiscResp},
}

// EventName returns the wire name for an event type, or "UNKNOWN".
func EventName(t EventType) string {
	for _, e := range eventTable {
		if e.typ == t {
			return e.name
		}
	}
	return "UNKNOWN"
}

// findEvent implements the prefix-match bsearch from wpa_parser.c's
// event_comp: a candidate matches a table entry if it begins with the
// entry's name AND the next byte (if any) is a space. Since the table
// is sorted, this is a binary search over a prefix predicate.
func findEvent(s string) (EventType, int, bool) {
	i := sort.Search(len(eventTable), func(i int) bool {
		return eventTable[i].name >= s
	})
	for _, idx := range []int{i - 1, i} {
		if idx < 0 || idx >= len(eventTable) {
			continue
		}
		e := eventTable[idx]
		if len(s) < len(e.name) || s[:len(e.name)] != e.name {
			continue
		}
		if len(s) > len(e.name) && s[len(e.name)] != ' ' {
			continue
		}
		return e.typ, len(e.name), true
	}
	return EventUnknown, 0, false
}

// Event is a parsed wpa_supplicant control-interface event.
type Event struct {
	Type     EventType
	Priority Priority
	Raw      string // the event text after the name and any separating space

	APSTAConnected        APSTAConnected
	APSTADisconnected     APSTADisconnected
	P2PDeviceFound        P2PDeviceFound
	P2PDeviceLost         P2PDeviceLost
	P2PGoNegSuccess       P2PGoNegSuccess
	P2PGroupStarted       P2PGroupStarted
	P2PGroupRemoved       P2PGroupRemoved
	P2PProvDiscShowPin    P2PProvDiscShowPin
	P2PProvDiscEnterPin   P2PProvDiscEnterPin
	P2PProvDiscPBCReq     P2PProvDiscPBCReq
	P2PProvDiscPBCResp    P2PProvDiscPBCResp
}

type APSTAConnected struct{ MAC string }
type APSTADisconnected struct{ MAC string }
type P2PDeviceFound struct {
	PeerMAC string
	Name    string // value of the required name= field (ParseEvent fails without one)
}
type P2PDeviceLost struct{ PeerMAC string } // empty if no p2p_dev_addr= field was present
type P2PGoNegSuccess struct {
	Role      Role
	PeerMAC   string
	PeerIface string
}
type P2PGroupStarted struct {
	Ifname string
	Role   Role
	GoMAC  string
}
type P2PGroupRemoved struct {
	Ifname string
	Role   Role
}
type P2PProvDiscShowPin struct {
	PeerMAC string
	PIN     string
}
type P2PProvDiscEnterPin struct{ PeerMAC string }
type P2PProvDiscPBCReq struct{ PeerMAC string }
type P2PProvDiscPBCResp struct{ PeerMAC string }

// ParseEvent parses a raw line received over the wpa_supplicant
// control-interface event socket (e.g. "<4>P2P-GROUP-STARTED
// p2p-wlan0-0 client go_dev_addr=...") into an Event.
//
// A malformed or absent "<N>" priority prefix defaults to
// PriorityMsgDump, never an error. An unrecognized event name yields
// Type == EventUnknown with no error. Only a recognized event whose
// payload cannot be parsed into the expected shape returns an error;
// per original_source/src/wpa_parser.c's wfd_wpa_event_parse, malformed
// payloads of an otherwise-unknown priority prefix and name still
// default gracefully — only structural failures inside a chosen
// per-type parser are fatal.
func ParseEvent(line string) (Event, error) {
	var ev Event

	rest := line
	ev.Priority = PriorityMsgDump
	if len(line) > 0 && line[0] == '<' {
		end := strings.IndexByte(line, '>')
		if end < 0 {
			return Event{Type: EventUnknown}, nil
		}
		numStr := line[1:end]
		n, err := strconv.Atoi(numStr)
		signed := len(numStr) > 0 && (numStr[0] == '+' || numStr[0] == '-')
		if err != nil || signed || n < 0 || n >= int(priorityCount) {
			ev.Priority = PriorityMsgDump
		} else {
			ev.Priority = Priority(n)
		}
		rest = line[end+1:]
	}

	typ, n, ok := findEvent(rest)
	if !ok {
		return Event{Type: EventUnknown}, nil
	}
	ev.Type = typ
	rest = rest[n:]
	rest = strings.TrimLeft(rest, " ")
	ev.Raw = rest

	tokens := tokenize(rest)

	var err error
	switch typ {
	case EventAPSTAConnected:
		err = parseAPSTAConnected(&ev, tokens)
	case EventAPSTADisconnected:
		err = parseAPSTADisconnected(&ev, tokens)
	case EventP2PDeviceFound:
		err = parseP2PDeviceFound(&ev, tokens)
	case EventP2PDeviceLost:
		err = parseP2PDeviceLost(&ev, tokens)
	case EventP2PGoNegSuccess:
		err = parseP2PGoNegSuccess(&ev, tokens)
	case EventP2PGroupStarted:
		err = parseP2PGroupStarted(&ev, tokens)
	case EventP2PGroupRemoved:
		err = parseP2PGroupRemoved(&ev, tokens)
	case EventP2PProvDiscShowPin:
		err = parseP2PProvDiscShowPin(&ev, tokens)
	case EventP2PProvDiscEnterPin:
		err = parseP2PProvDiscPeerOnly(&ev.P2PProvDiscEnterPin.PeerMAC, tokens)
	case EventP2PProvDiscPBCReq:
		err = parseP2PProvDiscPeerOnly(&ev.P2PProvDiscPBCReq.PeerMAC, tokens)
	case EventP2PProvDiscPBCResp:
		err = parseP2PProvDiscPeerOnly(&ev.P2PProvDiscPBCResp.PeerMAC, tokens)
	}

	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

func parseMAC(s string) (string, error) {
	if len(s) > 17 {
		return "", fmt.Errorf("wpactrl: mac %q too long: %w", s, wfderr.ErrProtocolMalformed)
	}
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return "", fmt.Errorf("wpactrl: mac %q: %w", s, wfderr.ErrProtocolMalformed)
	}
	for _, p := range parts {
		if len(p) != 2 {
			return "", fmt.Errorf("wpactrl: mac %q: %w", s, wfderr.ErrProtocolMalformed)
		}
		if _, err := strconv.ParseUint(p, 16, 8); err != nil {
			return "", fmt.Errorf("wpactrl: mac %q: %w", s, wfderr.ErrProtocolMalformed)
		}
	}
	return s, nil
}

func parseAPSTAConnected(ev *Event, tokens []string) error {
	if len(tokens) < 1 {
		return fmt.Errorf("wpactrl: AP-STA-CONNECTED: %w", wfderr.ErrProtocolMalformed)
	}
	mac, err := parseMAC(tokens[0])
	if err != nil {
		return err
	}
	ev.APSTAConnected.MAC = mac
	return nil
}

func parseAPSTADisconnected(ev *Event, tokens []string) error {
	if len(tokens) < 1 {
		return fmt.Errorf("wpactrl: AP-STA-DISCONNECTED: %w", wfderr.ErrProtocolMalformed)
	}
	mac, err := parseMAC(tokens[0])
	if err != nil {
		return err
	}
	ev.APSTADisconnected.MAC = mac
	return nil
}

func parseP2PDeviceFound(ev *Event, tokens []string) error {
	if len(tokens) < 2 {
		return fmt.Errorf("wpactrl: P2P-DEVICE-FOUND: %w", wfderr.ErrProtocolMalformed)
	}
	mac, err := parseMAC(tokens[0])
	if err != nil {
		return err
	}
	ev.P2PDeviceFound.PeerMAC = mac
	for _, tok := range tokens[1:] {
		if strings.HasPrefix(tok, "name=") {
			ev.P2PDeviceFound.Name = tok[len("name="):]
			return nil
		}
	}
	return fmt.Errorf("wpactrl: P2P-DEVICE-FOUND: no name= field: %w", wfderr.ErrProtocolMalformed)
}

// parseP2PDeviceLost is deliberately tolerant: a missing p2p_dev_addr=
// field is a successful parse with an empty PeerMAC, matching
// original_source's parse_p2p_device_lost returning 0 either way.
func parseP2PDeviceLost(ev *Event, tokens []string) error {
	if len(tokens) < 1 {
		return fmt.Errorf("wpactrl: P2P-DEVICE-LOST: %w", wfderr.ErrProtocolMalformed)
	}
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "p2p_dev_addr=") {
			mac, err := parseMAC(tok[len("p2p_dev_addr="):])
			if err != nil {
				return err
			}
			ev.P2PDeviceLost.PeerMAC = mac
			return nil
		}
	}
	return nil
}

func parseP2PGoNegSuccess(ev *Event, tokens []string) error {
	if len(tokens) < 3 {
		return fmt.Errorf("wpactrl: P2P-GO-NEG-SUCCESS: %w", wfderr.ErrProtocolMalformed)
	}
	var hasRole, hasPeer, hasIface bool
	for _, tok := range tokens {
		switch {
		case strings.HasPrefix(tok, "role="):
			switch tok[len("role="):] {
			case "GO":
				ev.P2PGoNegSuccess.Role = RoleGO
			case "client":
				ev.P2PGoNegSuccess.Role = RoleClient
			default:
				return fmt.Errorf("wpactrl: P2P-GO-NEG-SUCCESS: bad role: %w", wfderr.ErrProtocolMalformed)
			}
			hasRole = true
		case strings.HasPrefix(tok, "peer_dev="):
			mac, err := parseMAC(tok[len("peer_dev="):])
			if err != nil {
				return err
			}
			ev.P2PGoNegSuccess.PeerMAC = mac
			hasPeer = true
		case strings.HasPrefix(tok, "peer_iface="):
			mac, err := parseMAC(tok[len("peer_iface="):])
			if err != nil {
				return err
			}
			ev.P2PGoNegSuccess.PeerIface = mac
			hasIface = true
		}
	}
	if !hasRole || !hasPeer || !hasIface {
		return fmt.Errorf("wpactrl: P2P-GO-NEG-SUCCESS: missing field: %w", wfderr.ErrProtocolMalformed)
	}
	return nil
}

func parseRole(s string) (Role, bool) {
	switch s {
	case "GO":
		return RoleGO, true
	case "client":
		return RoleClient, true
	default:
		return RoleUnknown, false
	}
}

func parseP2PGroupStarted(ev *Event, tokens []string) error {
	if len(tokens) < 3 {
		return fmt.Errorf("wpactrl: P2P-GROUP-STARTED: %w", wfderr.ErrProtocolMalformed)
	}
	ev.P2PGroupStarted.Ifname = tokens[0]
	role, ok := parseRole(tokens[1])
	if !ok {
		return fmt.Errorf("wpactrl: P2P-GROUP-STARTED: bad role: %w", wfderr.ErrProtocolMalformed)
	}
	ev.P2PGroupStarted.Role = role
	for _, tok := range tokens[2:] {
		if strings.HasPrefix(tok, "go_dev_addr=") {
			mac, err := parseMAC(tok[len("go_dev_addr="):])
			if err != nil {
				return err
			}
			ev.P2PGroupStarted.GoMAC = mac
			return nil
		}
	}
	return fmt.Errorf("wpactrl: P2P-GROUP-STARTED: no go_dev_addr= field: %w", wfderr.ErrProtocolMalformed)
}

func parseP2PGroupRemoved(ev *Event, tokens []string) error {
	if len(tokens) < 2 {
		return fmt.Errorf("wpactrl: P2P-GROUP-REMOVED: %w", wfderr.ErrProtocolMalformed)
	}
	ev.P2PGroupRemoved.Ifname = tokens[0]
	role, ok := parseRole(tokens[1])
	if !ok {
		return fmt.Errorf("wpactrl: P2P-GROUP-REMOVED: bad role: %w", wfderr.ErrProtocolMalformed)
	}
	ev.P2PGroupRemoved.Role = role
	return nil
}

func parseP2PProvDiscShowPin(ev *Event, tokens []string) error {
	if len(tokens) < 2 {
		return fmt.Errorf("wpactrl: P2P-PROV-DISC-SHOW-PIN: %w", wfderr.ErrProtocolMalformed)
	}
	mac, err := parseMAC(tokens[0])
	if err != nil {
		return err
	}
	ev.P2PProvDiscShowPin.PeerMAC = mac
	ev.P2PProvDiscShowPin.PIN = tokens[1]
	return nil
}

func parseP2PProvDiscPeerOnly(dst *string, tokens []string) error {
	if len(tokens) < 1 {
		return fmt.Errorf("wpactrl: prov-disc: %w", wfderr.ErrProtocolMalformed)
	}
	mac, err := parseMAC(tokens[0])
	if err != nil {
		return err
	}
	*dst = mac
	return nil
}
