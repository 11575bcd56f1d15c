package upnp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katoemba/upnp-go/pkg/eventing"
	"github.com/katoemba/upnp-go/pkg/ssdp"
)

const (
	rendererDeviceType   = "urn:schemas-upnp-org:device:MediaRenderer:1"
	avTransportType      = "urn:schemas-upnp-org:service:AVTransport:1"
	renderingControlType = "urn:schemas-upnp-org:service:RenderingControl:1"
)

const testDeviceDescription = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>` + rendererDeviceType + `</deviceType>
    <friendlyName>Living Room</friendlyName>
    <manufacturer>Acme Audio</manufacturer>
    <modelName>StreamBox</modelName>
    <UDN>uuid:12345678-1234-1234-1234-123456789abc</UDN>
    <serviceList>
      <service>
        <serviceType>` + avTransportType + `</serviceType>
        <serviceId>urn:upnp-org:serviceId:AVTransport</serviceId>
        <SCPDURL>/av/scpd.xml</SCPDURL>
        <controlURL>/av/control</controlURL>
        <eventSubURL>/av/event</eventSubURL>
      </service>
      <service>
        <serviceType>` + renderingControlType + `</serviceType>
        <serviceId>urn:upnp-org:serviceId:RenderingControl</serviceId>
        <SCPDURL>/rc/scpd.xml</SCPDURL>
        <controlURL>/rc/control</controlURL>
        <eventSubURL>/rc/event</eventSubURL>
      </service>
    </serviceList>
  </device>
</root>`

const testSCPD = `<?xml version="1.0"?>
<scpd xmlns="urn:schemas-upnp-org:service-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <actionList>
    <action>
      <name>Stop</name>
      <argumentList>
        <argument><name>InstanceID</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_InstanceID</relatedStateVariable></argument>
      </argumentList>
    </action>
  </actionList>
  <serviceStateTable>
    <stateVariable sendEvents="yes"><name>LastChange</name><dataType>string</dataType></stateVariable>
  </serviceStateTable>
</scpd>`

// testDevice is an in-process device: description, capability descriptions
// and a GENA endpoint on one server.
type testDevice struct {
	server *httptest.Server

	mu           sync.Mutex
	descFetches  int
	descFailures int
	genaMethods  []string
}

func newTestDevice(t *testing.T) *testDevice {
	d := &testDevice{}
	mux := http.NewServeMux()
	mux.HandleFunc("/desc.xml", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.descFetches++
		fail := d.descFailures > 0
		if fail {
			d.descFailures--
		}
		d.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(testDeviceDescription))
	})
	scpd := func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testSCPD))
	}
	mux.HandleFunc("/av/scpd.xml", scpd)
	mux.HandleFunc("/rc/scpd.xml", scpd)
	gena := func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.genaMethods = append(d.genaMethods, r.Method)
		d.mu.Unlock()
		if r.Method == "SUBSCRIBE" {
			w.Header().Set("SID", "uuid:evt-1")
			w.Header().Set("TIMEOUT", "Second-300")
		}
		w.WriteHeader(http.StatusOK)
	}
	mux.HandleFunc("/av/event", gena)
	mux.HandleFunc("/rc/event", gena)

	d.server = httptest.NewServer(mux)
	t.Cleanup(d.server.Close)
	return d
}

func (d *testDevice) fetchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.descFetches
}

func (d *testDevice) failNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.descFailures = n
}

func (d *testDevice) methods() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.genaMethods...)
}

func (d *testDevice) alive() *ssdp.Message {
	return &ssdp.Message{
		Type:       ssdp.Alive,
		UUID:       "uuid:12345678-1234-1234-1234-123456789abc",
		DeviceID:   rendererDeviceType,
		DeviceType: rendererDeviceType,
		Location:   d.server.URL + "/desc.xml",
	}
}

func (d *testDevice) byebye() *ssdp.Message {
	msg := d.alive()
	msg.Type = ssdp.ByeBye
	return msg
}

// testRegistry wires a registry to callback channels, bypassing the
// multicast socket; announcements are injected via handleMessage.
func testRegistry(t *testing.T, config Config) (*Registry, chan *Device, chan *Device) {
	added := make(chan *Device, 4)
	removed := make(chan *Device, 4)
	config.OnDeviceAdded = func(dev *Device) { added <- dev }
	config.OnDeviceRemoved = func(dev *Device) { removed <- dev }
	r := NewRegistry(config)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		r.listener.Stop(ctx)
	})
	return r, added, removed
}

func waitAdded(t *testing.T, added chan *Device) *Device {
	t.Helper()
	select {
	case dev := <-added:
		return dev
	case <-time.After(3 * time.Second):
		t.Fatal("device was not added")
		return nil
	}
}

func TestDeviceLoadPipeline(t *testing.T) {
	device := newTestDevice(t)
	r, added, _ := testRegistry(t, Config{})

	r.handleMessage(context.Background(), device.alive())
	dev := waitAdded(t, added)

	assert.Equal(t, "uuid:12345678-1234-1234-1234-123456789abc::"+rendererDeviceType, dev.ID())
	assert.Equal(t, "Living Room", dev.FriendlyName())
	assert.Equal(t, "Acme Audio", dev.Manufacturer())
	assert.Equal(t, "StreamBox", dev.ModelName())
	assert.Equal(t, rendererDeviceType, dev.DeviceType())
	require.Len(t, dev.Services(), 2)

	av := dev.Service(avTransportType)
	require.NotNil(t, av)
	svc := av.Base()
	assert.Equal(t, device.server.URL+"/av/control", svc.ControlURL())
	assert.Equal(t, device.server.URL+"/av/event", svc.EventURL())
	require.NotNil(t, svc.SCPD())
	_, ok := svc.SCPD().Action("Stop")
	assert.True(t, ok)
	assert.Equal(t, eventing.StateUnsubscribed, svc.SubscriptionState())

	assert.Nil(t, dev.Service("urn:schemas-upnp-org:service:ConnectionManager:1"))

	require.Len(t, r.Devices(), 1)
	assert.Same(t, dev, r.Device(dev.ID()))
	assert.Nil(t, r.Device("uuid:other::"+rendererDeviceType))
}

func TestAnnouncementsDedupeOnIdentity(t *testing.T) {
	device := newTestDevice(t)
	r, added, _ := testRegistry(t, Config{})

	r.handleMessage(context.Background(), device.alive())
	dev := waitAdded(t, added)
	firstSeen := dev.LastSeen()

	// Further announcements for a known device only refresh last-seen.
	time.Sleep(10 * time.Millisecond)
	r.handleMessage(context.Background(), device.alive())
	response := device.alive()
	response.Type = ssdp.SearchResponse
	r.handleMessage(context.Background(), response)

	assert.Len(t, added, 0)
	assert.Len(t, r.Devices(), 1)
	assert.Equal(t, 1, device.fetchCount())
	assert.True(t, dev.LastSeen().After(firstSeen))
}

func TestConcurrentAnnouncementsLoadOnce(t *testing.T) {
	device := newTestDevice(t)
	r, added, _ := testRegistry(t, Config{})

	for i := 0; i < 5; i++ {
		r.handleMessage(context.Background(), device.alive())
	}
	waitAdded(t, added)

	r.wg.Wait()
	assert.Len(t, added, 0)
	assert.Len(t, r.Devices(), 1)
	assert.Equal(t, 1, device.fetchCount())
}

func TestByeByeRemovesDeviceAndUnsubscribes(t *testing.T) {
	device := newTestDevice(t)
	r, added, removed := testRegistry(t, Config{})

	r.handleMessage(context.Background(), device.alive())
	dev := waitAdded(t, added)

	svc := dev.Service(avTransportType).Base()
	require.NoError(t, svc.Subscribe(context.Background()))
	assert.Equal(t, eventing.StateSubscribed, svc.SubscriptionState())
	assert.Equal(t, "uuid:evt-1", svc.SID())

	r.handleMessage(context.Background(), device.byebye())

	select {
	case gone := <-removed:
		assert.Same(t, dev, gone)
	case <-time.After(3 * time.Second):
		t.Fatal("device was not removed")
	}

	assert.Empty(t, r.Devices())
	assert.Equal(t, eventing.StateUnsubscribed, svc.SubscriptionState())
	assert.Contains(t, device.methods(), "UNSUBSCRIBE")
}

func TestByeByeForUnknownDeviceIsIgnored(t *testing.T) {
	device := newTestDevice(t)
	r, _, removed := testRegistry(t, Config{})

	r.handleMessage(context.Background(), device.byebye())
	assert.Len(t, removed, 0)
	assert.Empty(t, r.Devices())
}

func TestLoadFailureRetriesOnNextAnnouncement(t *testing.T) {
	device := newTestDevice(t)
	device.failNext(1)
	r, added, _ := testRegistry(t, Config{})

	r.handleMessage(context.Background(), device.alive())
	r.wg.Wait()
	assert.Len(t, added, 0)
	assert.Empty(t, r.Devices())

	// The next announcement triggers a fresh load.
	r.handleMessage(context.Background(), device.alive())
	waitAdded(t, added)
	assert.Len(t, r.Devices(), 1)
	assert.Equal(t, 2, device.fetchCount())
}

type testTransport struct {
	*Service
}

func TestFactoryWrapsService(t *testing.T) {
	device := newTestDevice(t)
	r, added, _ := testRegistry(t, Config{
		Factories: map[string]ServiceFactory{
			avTransportType: func(s *Service) TypedService { return &testTransport{Service: s} },
		},
	})

	r.handleMessage(context.Background(), device.alive())
	dev := waitAdded(t, added)

	av := dev.Service(avTransportType)
	_, typed := av.(*testTransport)
	assert.True(t, typed)

	// Services without a factory stay generic.
	rc := dev.Service(renderingControlType)
	_, generic := rc.(*Service)
	assert.True(t, generic)
}

func TestFactoryMatchesHigherServiceVersion(t *testing.T) {
	r := NewRegistry(Config{
		Factories: map[string]ServiceFactory{
			avTransportType: func(s *Service) TypedService { return &testTransport{Service: s} },
		},
	})

	svc := NewService(ServiceConfig{ServiceType: "urn:schemas-upnp-org:service:AVTransport:2"})
	_, typed := r.wrap(svc).(*testTransport)
	assert.True(t, typed)

	other := NewService(ServiceConfig{ServiceType: renderingControlType})
	_, generic := r.wrap(other).(*Service)
	assert.True(t, generic)
}

func TestServiceLookupAcceptsHigherVersion(t *testing.T) {
	svc := NewService(ServiceConfig{ServiceType: "urn:schemas-upnp-org:service:AVTransport:2"})
	dev := &Device{services: []TypedService{svc}}

	require.NotNil(t, dev.Service("urn:schemas-upnp-org:service:AVTransport:2"))
	require.NotNil(t, dev.Service(avTransportType))
	assert.Nil(t, dev.Service("urn:schemas-upnp-org:service:AVTransport:3"))
}

func TestStartDiscoveryBindsListener(t *testing.T) {
	r, _, _ := testRegistry(t, Config{})

	if err := r.StartDiscovery(); err != nil {
		t.Skipf("multicast endpoint unavailable: %v", err)
	}
	assert.True(t, r.listener.Running())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.StopDiscovery(ctx))
	assert.False(t, r.listener.Running())
}

func TestEmptyEventSubURLMeansNoEventing(t *testing.T) {
	desc := `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>` + rendererDeviceType + `</deviceType>
    <friendlyName>Mute Box</friendlyName>
    <UDN>uuid:eeee</UDN>
    <serviceList>
      <service>
        <serviceType>` + avTransportType + `</serviceType>
        <serviceId>urn:upnp-org:serviceId:AVTransport</serviceId>
        <controlURL>/av/control</controlURL>
        <eventSubURL></eventSubURL>
      </service>
    </serviceList>
  </device>
</root>`
	mux := http.NewServeMux()
	mux.HandleFunc("/desc.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(desc))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r, added, _ := testRegistry(t, Config{})
	r.handleMessage(context.Background(), &ssdp.Message{
		Type:       ssdp.Alive,
		UUID:       "uuid:eeee",
		DeviceID:   rendererDeviceType,
		DeviceType: rendererDeviceType,
		Location:   server.URL + "/desc.xml",
	})
	dev := waitAdded(t, added)

	svc := dev.Service(avTransportType).Base()
	assert.Empty(t, svc.EventURL())
	assert.ErrorIs(t, svc.Subscribe(context.Background()), ErrNoEventing)
	assert.ErrorIs(t, svc.Renew(context.Background()), ErrNoEventing)
	require.NoError(t, svc.Unsubscribe(context.Background()))
}

func TestDevicesSortedByFriendlyName(t *testing.T) {
	r := NewRegistry(Config{})
	r.devices["uuid:b::x"] = &Device{id: "uuid:b::x", friendlyName: "Kitchen", servicesLoaded: true}
	r.devices["uuid:a::x"] = &Device{id: "uuid:a::x", friendlyName: "Attic", servicesLoaded: true}
	r.devices["uuid:c::x"] = &Device{id: "uuid:c::x", friendlyName: "Attic", servicesLoaded: true}

	devices := r.Devices()
	require.Len(t, devices, 3)
	assert.Equal(t, "Attic", devices[0].FriendlyName())
	assert.Equal(t, "uuid:a::x", devices[0].ID())
	assert.Equal(t, "uuid:c::x", devices[1].ID())
	assert.Equal(t, "Kitchen", devices[2].FriendlyName())
}
