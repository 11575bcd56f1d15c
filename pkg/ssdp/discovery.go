package ssdp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/katoemba/upnp-go/pkg/log"
)

// Discovery errors.
var (
	// ErrAlreadyRunning is returned by Start when the engine is already bound.
	ErrAlreadyRunning = errors.New("discovery already running")
)

// DefaultEventBuffer is the default capacity of the event hand-off channel.
const DefaultEventBuffer = 64

// Config configures the discovery engine.
type Config struct {
	// EventBuffer is the capacity of the event hand-off channel.
	// Defaults to DefaultEventBuffer.
	EventBuffer int

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Discovery owns the SSDP multicast endpoint. It sends M-SEARCH requests
// and classifies inbound datagrams, emitting matching messages on Events.
//
// The engine binds a plain UDP socket on the well-known port and joins the
// multicast group per interface via golang.org/x/net/ipv4. This keeps
// receive semantics predictable at the cost of port exclusivity: two
// control points in separate processes on the same host cannot share the
// port. See DESIGN.md for the tradeoff discussion.
type Discovery struct {
	mu    sync.Mutex
	conn  *net.UDPConn // nil when not running
	pconn *ipv4.PacketConn
	types map[string]struct{}

	events chan *Message
	logger log.Logger
	wg     sync.WaitGroup
}

// NewDiscovery creates a discovery engine. The engine is not bound until
// Start is called.
func NewDiscovery(config Config) *Discovery {
	buffer := config.EventBuffer
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Discovery{
		events: make(chan *Message, buffer),
		logger: log.OrNoop(config.Logger),
	}
}

// Events returns the channel on which matching messages are delivered.
// The channel is never closed; it stays valid across Stop/Start cycles.
func (d *Discovery) Events() <-chan *Message {
	return d.events
}

// Start binds the multicast endpoint and begins receiving datagrams
// announcing or responding for the given capability URNs.
// Calling Start while running returns ErrAlreadyRunning without touching
// the existing endpoint.
func (d *Discovery) Start(types []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		return ErrAlreadyRunning
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: MulticastPort})
	if err != nil {
		return fmt.Errorf("failed to bind ssdp port %d: %w", MulticastPort, err)
	}

	pconn := ipv4.NewPacketConn(conn)
	group := &net.UDPAddr{IP: net.ParseIP(MulticastGroup)}
	joined := 0
	for _, iface := range multicastInterfaces() {
		iface := iface
		if err := pconn.JoinGroup(&iface, group); err == nil {
			joined++
		}
	}
	if joined == 0 {
		conn.Close()
		return fmt.Errorf("failed to join multicast group %s on any interface", MulticastGroup)
	}

	d.conn = conn
	d.pconn = pconn
	d.types = make(map[string]struct{}, len(types))
	for _, t := range types {
		d.types[t] = struct{}{}
	}

	d.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerSSDP,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityDiscovery,
			NewState: "RUNNING",
		},
	})

	d.wg.Add(1)
	go d.receiveLoop(conn)

	return nil
}

// Search emits one M-SEARCH datagram per requested capability URN.
// A send failure stops discovery for this session and is logged; it is not
// surfaced to the caller.
func (d *Discovery) Search() {
	d.mu.Lock()
	conn := d.conn
	types := make([]string, 0, len(d.types))
	for t := range d.types {
		types = append(types, t)
	}
	d.mu.Unlock()

	if conn == nil {
		return
	}

	dest := &net.UDPAddr{IP: net.ParseIP(MulticastGroup), Port: MulticastPort}
	for _, target := range types {
		data := BuildSearchRequest(target)
		if _, err := conn.WriteToUDP(data, dest); err != nil {
			d.logError("search request send failed", err, nil)
			d.Stop()
			return
		}
		d.logger.Log(log.Event{
			Timestamp:  time.Now(),
			Direction:  log.DirectionOut,
			Layer:      log.LayerSSDP,
			Category:   log.CategoryMessage,
			RemoteAddr: dest.String(),
			Datagram: &log.DatagramEvent{
				MessageType: "M-SEARCH",
				Size:        len(data),
				Target:      target,
			},
		})
	}
}

// Stop unbinds the endpoint and clears the searched type set.
// Calling Stop when not running is a no-op.
func (d *Discovery) Stop() {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.pconn = nil
	d.types = nil
	d.mu.Unlock()

	if conn == nil {
		return
	}
	conn.Close()
	d.wg.Wait()

	d.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerSSDP,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityDiscovery,
			OldState: "RUNNING",
			NewState: "STOPPED",
		},
	})
}

// Running reports whether the multicast endpoint is bound.
func (d *Discovery) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

// receiveLoop reads datagrams until the socket is closed. Matching messages
// are handed off on the events channel; the loop itself never performs
// registry work.
func (d *Discovery) receiveLoop(conn *net.UDPConn) {
	defer d.wg.Done()

	buf := make([]byte, 65535)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			// Socket closed by Stop, or a fatal receive error.
			return
		}
		d.processDatagram(buf[:n], addr)
	}
}

func (d *Discovery) processDatagram(data []byte, addr *net.UDPAddr) {
	msg, err := ParseMessage(data)
	if err != nil {
		// Not an SSDP message we care about; discard silently.
		return
	}

	d.mu.Lock()
	_, wanted := d.types[msg.DeviceType]
	d.mu.Unlock()
	if !wanted {
		return
	}

	d.logger.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionIn,
		Layer:      log.LayerSSDP,
		Category:   log.CategoryMessage,
		RemoteAddr: addr.String(),
		DeviceID:   msg.ID(),
		Datagram: &log.DatagramEvent{
			MessageType: msg.Type.String(),
			Size:        len(data),
			USN:         msg.Headers["usn"],
			Target:      msg.DeviceType,
			Location:    msg.Location,
		},
	})

	select {
	case d.events <- msg:
	default:
		// The consumer fell behind; dropping is preferable to blocking
		// the socket receive path.
		d.logError("event channel full, dropping message", nil, data)
	}
}

func (d *Discovery) logError(context string, err error, payload []byte) {
	message := context
	if err != nil {
		message = err.Error()
	}
	d.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerSSDP,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerSSDP,
			Message: message,
			Context: context,
			Payload: payload,
		},
	})
}

// multicastInterfaces returns the interfaces eligible for group membership.
func multicastInterfaces() []net.Interface {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var eligible []net.Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		eligible = append(eligible, iface)
	}
	return eligible
}
