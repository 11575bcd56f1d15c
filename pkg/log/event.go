package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the control point run that produced the event (UUID).
	SessionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port or URL host).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// DeviceID is the device identity key (uuid::deviceId), when known.
	DeviceID string `cbor:"7,keyasint,omitempty"`

	// ServiceType is the capability URN of the service involved, when known.
	ServiceType string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Datagram    *DatagramEvent    `cbor:"9,keyasint,omitempty"`  // SSDP layer
	HTTP        *HTTPEvent        `cbor:"10,keyasint,omitempty"` // Description/control/eventing layers
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"` // Subscription/device state
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerSSDP is the multicast discovery layer.
	LayerSSDP Layer = 0
	// LayerDescription is the device/capability description fetch layer.
	LayerDescription Layer = 1
	// LayerControl is the SOAP action invocation layer.
	LayerControl Layer = 2
	// LayerEventing is the GENA subscribe/notify layer.
	LayerEventing Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerSSDP:
		return "SSDP"
	case LayerDescription:
		return "DESCRIPTION"
	case LayerControl:
		return "CONTROL"
	case LayerEventing:
		return "EVENTING"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message (datagram or HTTP exchange).
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// DatagramEvent captures an SSDP datagram on the multicast socket.
type DatagramEvent struct {
	// MessageType is the SSDP classification (search, response, alive, byebye...).
	MessageType string `cbor:"1,keyasint"`

	// Size is the datagram size in bytes.
	Size int `cbor:"2,keyasint"`

	// USN is the unique service name header, when present.
	USN string `cbor:"3,keyasint,omitempty"`

	// Target is the search target or notification type URN, when present.
	Target string `cbor:"4,keyasint,omitempty"`

	// Location is the description URL carried by the datagram, when present.
	Location string `cbor:"5,keyasint,omitempty"`

	// Data is the raw datagram (may be truncated for large datagrams).
	Data []byte `cbor:"6,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"7,keyasint,omitempty"`
}

// HTTPEvent captures an HTTP exchange at the description, control or
// eventing layer.
type HTTPEvent struct {
	// Method is the HTTP method (GET, POST, SUBSCRIBE, UNSUBSCRIBE, NOTIFY).
	Method string `cbor:"1,keyasint"`

	// URL is the request URL.
	URL string `cbor:"2,keyasint"`

	// Action is the SOAP action name (control layer only).
	Action string `cbor:"3,keyasint,omitempty"`

	// SID is the subscription identifier (eventing layer only).
	SID string `cbor:"4,keyasint,omitempty"`

	// Status is the HTTP response status code (responses only).
	Status *int `cbor:"5,keyasint,omitempty"`

	// BodySize is the body size in bytes.
	BodySize int `cbor:"6,keyasint,omitempty"`

	// Body is the request or response body (only captured when message
	// logging is enabled at the SOAP layer).
	Body []byte `cbor:"7,keyasint,omitempty"`
}

// StateChangeEvent captures subscription and device lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityDevice indicates a device appeared or disappeared.
	StateEntityDevice StateEntity = 0
	// StateEntitySubscription indicates a subscription state change.
	StateEntitySubscription StateEntity = 1
	// StateEntityDiscovery indicates the discovery engine started or stopped.
	StateEntityDiscovery StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityDevice:
		return "DEVICE"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	case StateEntityDiscovery:
		return "DISCOVERY"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`

	// Payload is the raw payload that failed to decode, when applicable.
	Payload []byte `cbor:"4,keyasint,omitempty"`
}
