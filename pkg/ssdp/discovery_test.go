package ssdp

import (
	"net"
	"testing"
	"time"
)

func TestProcessDatagramHandsOffMatchingMessages(t *testing.T) {
	d := NewDiscovery(Config{EventBuffer: 4})
	d.types = map[string]struct{}{
		"urn:schemas-upnp-org:device:MediaServer:1": {},
	}
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 1900}

	d.processDatagram(searchResponse(), addr)

	select {
	case msg := <-d.Events():
		if msg.UUID != "uuid:ABC" {
			t.Errorf("UUID = %q, want uuid:ABC", msg.UUID)
		}
		if msg.Type != SearchResponse {
			t.Errorf("Type = %v, want SearchResponse", msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no message handed off")
	}
}

func TestProcessDatagramFiltersUnrequestedTypes(t *testing.T) {
	d := NewDiscovery(Config{EventBuffer: 4})
	d.types = map[string]struct{}{
		"urn:other:device:Printer:1": {},
	}
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 1900}

	d.processDatagram(searchResponse(), addr)

	select {
	case msg := <-d.Events():
		t.Errorf("unexpected message for type %q", msg.DeviceType)
	default:
	}
}

func TestProcessDatagramDiscardsGarbage(t *testing.T) {
	d := NewDiscovery(Config{EventBuffer: 4})
	d.types = map[string]struct{}{
		"urn:schemas-upnp-org:device:MediaServer:1": {},
	}
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 1900}

	d.processDatagram([]byte("not an ssdp message"), addr)

	select {
	case <-d.Events():
		t.Error("garbage datagram produced an event")
	default:
	}
}

func TestProcessDatagramDropsWhenConsumerFallsBehind(t *testing.T) {
	d := NewDiscovery(Config{EventBuffer: 1})
	d.types = map[string]struct{}{
		"urn:schemas-upnp-org:device:MediaServer:1": {},
	}
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 1900}

	// Second datagram must not block even though nobody is reading.
	done := make(chan struct{})
	go func() {
		d.processDatagram(searchResponse(), addr)
		d.processDatagram(searchResponse(), addr)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processDatagram blocked on a full event channel")
	}
}

func TestStopWhenNotRunningIsNoop(t *testing.T) {
	d := NewDiscovery(Config{})
	d.Stop()
	d.Stop()
	if d.Running() {
		t.Error("Running() = true for an unstarted engine")
	}
}
