package ssdp

import (
	"errors"
	"fmt"
	"strings"
)

// Multicast endpoint constants.
const (
	// MulticastGroup is the well-known SSDP multicast group address.
	MulticastGroup = "239.255.255.250"

	// MulticastPort is the well-known SSDP port.
	MulticastPort = 1900

	// SearchMX is the maximum response delay hint sent in M-SEARCH requests.
	SearchMX = 3
)

// Codec errors.
var (
	ErrUnparseable = errors.New("unparseable ssdp message")
)

// MessageType classifies an inbound SSDP datagram.
type MessageType uint8

const (
	// SearchResponse is a unicast reply to an M-SEARCH request.
	SearchResponse MessageType = iota

	// Alive is a NOTIFY announcement with NTS ssdp:alive.
	Alive

	// Update is a NOTIFY announcement with NTS ssdp:update.
	Update

	// ByeBye is a NOTIFY announcement with NTS ssdp:byebye.
	ByeBye
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case SearchResponse:
		return "SEARCH_RESPONSE"
	case Alive:
		return "ALIVE"
	case Update:
		return "UPDATE"
	case ByeBye:
		return "BYEBYE"
	default:
		return "UNKNOWN"
	}
}

// Message is a parsed SSDP datagram.
type Message struct {
	// Type is the datagram classification.
	Type MessageType

	// UUID is the first component of the USN header.
	UUID string

	// DeviceID is the second component of the USN header.
	DeviceID string

	// DeviceType is the capability URN, taken from ST (search responses)
	// or NT (announcements). ST wins when both are present.
	DeviceType string

	// Location is the device description URL. ByeBye announcements carry
	// no LOCATION header; the HOST header stands in so identity matching
	// downstream keeps working.
	Location string

	// Headers holds all headers with lowercased keys.
	Headers map[string]string
}

// ID returns the device identity key (uuid::deviceId).
func (m *Message) ID() string {
	return m.UUID + "::" + m.DeviceID
}

// BuildSearchRequest produces an M-SEARCH datagram for the given capability URN.
func BuildSearchRequest(target string) []byte {
	lines := []string{
		"M-SEARCH * HTTP/1.1",
		fmt.Sprintf("HOST: %s:%d", MulticastGroup, MulticastPort),
		`MAN: "ssdp:discover"`,
		"ST: " + target,
		fmt.Sprintf("MX: %d", SearchMX),
		"USER-AGENT: " + UserAgent(),
		"", "",
	}
	return []byte(strings.Join(lines, "\r\n"))
}

// ParseMessage splits a datagram into its status/request line and header map
// and classifies it. Datagrams that are not a search response or a known
// NOTIFY announcement, or that lack the required identity headers, return
// ErrUnparseable and should be silently discarded by the caller.
func ParseMessage(data []byte) (*Message, error) {
	startLine, headers, ok := splitMessage(data)
	if !ok {
		return nil, ErrUnparseable
	}

	var msgType MessageType
	switch {
	case startLine == "HTTP/1.1 200 OK":
		msgType = SearchResponse
	case startLine == "NOTIFY * HTTP/1.1" && headers["nts"] == "ssdp:alive":
		msgType = Alive
	case startLine == "NOTIFY * HTTP/1.1" && headers["nts"] == "ssdp:update":
		msgType = Update
	case startLine == "NOTIFY * HTTP/1.1" && headers["nts"] == "ssdp:byebye":
		msgType = ByeBye
		// byebye messages don't carry a location
		headers["location"] = headers["host"]
	default:
		return nil, ErrUnparseable
	}

	usn := headers["usn"]
	usnParts := strings.Split(usn, "::")
	if len(usnParts) != 2 {
		return nil, ErrUnparseable
	}

	// NT = Notification Type - discovered from device advertisements
	// ST = Search Target - discovered as a result of M-SEARCH requests
	deviceType := headers["st"]
	if deviceType == "" {
		deviceType = headers["nt"]
	}

	location := headers["location"]
	if deviceType == "" || location == "" {
		return nil, ErrUnparseable
	}

	return &Message{
		Type:       msgType,
		UUID:       usnParts[0],
		DeviceID:   usnParts[1],
		DeviceType: deviceType,
		Location:   location,
		Headers:    headers,
	}, nil
}

// splitMessage separates the start line from the `key: value` header lines.
// Header keys are lowercased; malformed lines are skipped.
func splitMessage(data []byte) (string, map[string]string, bool) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return "", nil, false
	}

	headers := make(map[string]string, len(lines)-1)
	for _, line := range lines[1:] {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return strings.TrimSpace(lines[0]), headers, true
}
