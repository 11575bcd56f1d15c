package upnp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/katoemba/upnp-go/pkg/description"
	"github.com/katoemba/upnp-go/pkg/eventing"
	"github.com/katoemba/upnp-go/pkg/log"
	"github.com/katoemba/upnp-go/pkg/soap"
	"github.com/katoemba/upnp-go/pkg/ssdp"
	"github.com/katoemba/upnp-go/pkg/version"
)

// DefaultSearchTargets are the device types searched for when the
// configuration names none.
var DefaultSearchTargets = []string{
	"urn:schemas-upnp-org:device:MediaRenderer:1",
	"urn:schemas-upnp-org:device:MediaServer:1",
}

// unsubscribeTimeout bounds the per-service unsubscribe on device removal
// and shutdown.
const unsubscribeTimeout = 5 * time.Second

// Config configures a Registry. The zero value is usable.
type Config struct {
	// SearchTargets are the device type URNs to discover. Defaults to
	// DefaultSearchTargets.
	SearchTargets []string

	// Factories maps capability URNs to typed service constructors.
	// Services without a factory are handed out as generic *Service.
	Factories map[string]ServiceFactory

	// HTTPClient is shared by description fetches, action invocations and
	// subscription requests. Defaults to a client with a 30 second
	// timeout.
	HTTPClient *http.Client

	// Logger receives protocol log events from all layers.
	Logger log.Logger

	// MessageLog controls SOAP envelope capture in the protocol log.
	MessageLog soap.MessageLog

	// EventPortFrom and EventPortTo bound the callback listener's port
	// scan.
	EventPortFrom int
	EventPortTo   int

	// SubscriptionTimeout is the subscription duration requested from
	// devices.
	SubscriptionTimeout time.Duration

	// OnDeviceAdded is called after a device's description and services
	// have been fully loaded. Called from a loader goroutine.
	OnDeviceAdded func(*Device)

	// OnDeviceRemoved is called after a device announced byebye or the
	// registry shut down. Called from the goroutine that noticed the
	// removal.
	OnDeviceRemoved func(*Device)
}

// Registry is the control point core: it discovers devices, loads their
// descriptions, and maintains the current device set. All methods are safe
// for concurrent use.
type Registry struct {
	targets        []string
	factories      map[string]ServiceFactory
	http           *http.Client
	logger         log.Logger
	subTimeout     time.Duration
	onAdded        func(*Device)
	onRemoved      func(*Device)

	discovery *ssdp.Discovery
	broker    *eventing.Broker
	listener  *eventing.Listener
	soap      *soap.Client

	mu      sync.RWMutex
	devices map[string]*Device
	loading map[string]struct{}
	cancel  context.CancelFunc

	wg sync.WaitGroup
}

// NewRegistry creates a registry. Discovery does not start until
// StartDiscovery is called.
func NewRegistry(config Config) *Registry {
	targets := config.SearchTargets
	if len(targets) == 0 {
		targets = DefaultSearchTargets
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := log.OrNoop(config.Logger)
	broker := eventing.NewBroker()

	return &Registry{
		targets:    targets,
		factories:  config.Factories,
		http:       httpClient,
		logger:     logger,
		subTimeout: config.SubscriptionTimeout,
		onAdded:    config.OnDeviceAdded,
		onRemoved:  config.OnDeviceRemoved,
		discovery:  ssdp.NewDiscovery(ssdp.Config{Logger: logger}),
		broker:     broker,
		listener: eventing.NewListener(broker, eventing.ListenerConfig{
			PortFrom: config.EventPortFrom,
			PortTo:   config.EventPortTo,
			Logger:   logger,
		}),
		soap: soap.NewClient(soap.Config{
			HTTPClient: httpClient,
			Logger:     logger,
			MessageLog: config.MessageLog,
		}),
		devices: make(map[string]*Device),
		loading: make(map[string]struct{}),
	}
}

// StartDiscovery binds the callback listener and the multicast endpoint,
// begins processing announcements, and sends an initial search.
func (r *Registry) StartDiscovery() error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return ssdp.ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.mu.Unlock()

	// Bind the callback listener up front so subscriptions made right
	// after the first device arrives find it running.
	if err := r.listener.Start(); err != nil {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
		return err
	}

	if err := r.discovery.Start(r.targets); err != nil {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
		r.listener.Stop(stopCtx)
		stopCancel()
		return err
	}

	r.wg.Add(1)
	go r.run(ctx)

	r.discovery.Search()
	return nil
}

// StopDiscovery stops announcement processing and the multicast endpoint.
// Known devices are removed, their subscriptions revoked, and the callback
// listener shut down.
func (r *Registry) StopDiscovery(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	r.discovery.Stop()
	r.wg.Wait()

	r.mu.Lock()
	devices := make([]*Device, 0, len(r.devices))
	for _, dev := range r.devices {
		devices = append(devices, dev)
	}
	r.devices = make(map[string]*Device)
	r.loading = make(map[string]struct{})
	r.mu.Unlock()

	for _, dev := range devices {
		r.teardown(dev, "discovery stopped")
	}

	return r.listener.Stop(ctx)
}

// Search re-sends the M-SEARCH request for the configured targets. Devices
// already known stay known; their last-seen time refreshes when they
// answer.
func (r *Registry) Search() {
	r.discovery.Search()
}

// Devices returns a snapshot of the fully loaded devices, sorted by
// friendly name.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	devices := make([]*Device, 0, len(r.devices))
	for _, dev := range r.devices {
		devices = append(devices, dev)
	}
	r.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].friendlyName != devices[j].friendlyName {
			return devices[i].friendlyName < devices[j].friendlyName
		}
		return devices[i].id < devices[j].id
	})
	return devices
}

// Device returns the device with the given identity key, or nil.
func (r *Registry) Device(id string) *Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices[id]
}

func (r *Registry) run(ctx context.Context) {
	defer r.wg.Done()
	events := r.discovery.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-events:
			r.handleMessage(ctx, msg)
		}
	}
}

func (r *Registry) handleMessage(ctx context.Context, msg *ssdp.Message) {
	switch msg.Type {
	case ssdp.ByeBye:
		r.removeDevice(msg.ID(), "byebye")
	case ssdp.Alive, ssdp.Update, ssdp.SearchResponse:
		r.deviceSeen(ctx, msg)
	}
}

// deviceSeen dedupes announcements on the device identity key. A known,
// fully loaded device only gets its last-seen time refreshed; an unknown
// device triggers an asynchronous description load. At most one load per
// identity runs at a time.
func (r *Registry) deviceSeen(ctx context.Context, msg *ssdp.Message) {
	now := time.Now()
	id := msg.ID()

	r.mu.Lock()
	if dev, known := r.devices[id]; known {
		dev.touch(now)
		r.mu.Unlock()
		return
	}
	if _, inFlight := r.loading[id]; inFlight {
		r.mu.Unlock()
		return
	}
	r.loading[id] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loadDevice(ctx, msg, now)
	}()
}

// loadDevice fetches the device description and capability descriptions,
// builds the device with its services, and publishes it. The device
// becomes visible, and OnDeviceAdded fires, only when everything loaded.
func (r *Registry) loadDevice(ctx context.Context, msg *ssdp.Message, seen time.Time) {
	id := msg.ID()
	finish := func() {
		r.mu.Lock()
		delete(r.loading, id)
		r.mu.Unlock()
	}

	desc, err := description.FetchDeviceDescription(ctx, r.http, msg.Location)
	if err != nil {
		r.logError(id, "loading device description from "+msg.Location, err)
		finish()
		return
	}

	base, err := description.BaseURL(msg.Location)
	if err != nil {
		r.logError(id, "resolving base URL of "+msg.Location, err)
		finish()
		return
	}

	dev := &Device{
		id:           id,
		uuid:         msg.UUID,
		deviceType:   msg.DeviceType,
		location:     msg.Location,
		friendlyName: desc.Device.FriendlyName,
		manufacturer: desc.Device.Manufacturer,
		modelName:    desc.Device.ModelName,
		udn:          desc.Device.UDN,
		icons:        desc.Device.Icons,
	}
	dev.touch(seen)

	for _, ref := range desc.Device.Services {
		svc, err := r.buildService(ctx, id, desc.Device.FriendlyName, base, ref)
		if err != nil {
			r.logError(id, "loading service "+ref.ServiceType, err)
			finish()
			return
		}
		dev.services = append(dev.services, r.wrap(svc))
	}
	dev.servicesLoaded = true

	// StopDiscovery waits for in-flight loads before clearing the device
	// set, so publishing here cannot race a shutdown.
	r.mu.Lock()
	delete(r.loading, id)
	r.devices[id] = dev
	r.mu.Unlock()

	r.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerDescription,
		Category:  log.CategoryState,
		DeviceID:  id,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityDevice,
			NewState: "ADDED",
			Reason:   dev.friendlyName,
		},
	})
	if r.onAdded != nil {
		r.onAdded(dev)
	}
}

func (r *Registry) buildService(ctx context.Context, deviceID, friendlyName string, base *url.URL, ref description.ServiceRef) (*Service, error) {
	controlURL, err := description.Resolve(base, ref.ControlURL)
	if err != nil {
		return nil, fmt.Errorf("resolving control URL %q: %w", ref.ControlURL, err)
	}

	// An empty eventSubURL means the service does not offer eventing; it
	// must not resolve to the device base URL.
	var eventURL string
	if ref.EventSubURL != "" {
		u, err := description.Resolve(base, ref.EventSubURL)
		if err != nil {
			return nil, fmt.Errorf("resolving event URL %q: %w", ref.EventSubURL, err)
		}
		eventURL = u.String()
	}

	svc := &Service{
		deviceID:     deviceID,
		friendlyName: friendlyName,
		serviceType:  ref.ServiceType,
		serviceID:    ref.ServiceID,
		controlURL:   controlURL.String(),
		eventURL:     eventURL,
		soap:         r.soap,
		broker:       r.broker,
	}

	// A missing capability description is tolerated; typed profiles know
	// their actions without it.
	if ref.SCPDURL != "" {
		scpdURL, err := description.Resolve(base, ref.SCPDURL)
		if err == nil {
			if scpd, err := description.FetchSCPD(ctx, r.http, scpdURL.String()); err == nil {
				svc.scpd = scpd
			} else {
				r.logError(deviceID, "loading capability description for "+ref.ServiceType, err)
			}
		}
	}

	host := base.Hostname()
	svc.sub = eventing.NewSubscription(eventing.SubscriptionConfig{
		EventURL:    svc.eventURL,
		ServiceType: ref.ServiceType,
		DeviceID:    deviceID,
		CallbackURL: func() (string, error) {
			return r.listener.CallbackURL(host)
		},
		HTTPClient:       r.http,
		Logger:           r.logger,
		RequestedTimeout: r.subTimeout,
	})
	return svc, nil
}

// wrap applies the typed profile factory for the service's capability URN,
// when registered. Higher service versions satisfy a factory registered
// for a lower version of the same type.
func (r *Registry) wrap(svc *Service) TypedService {
	factory, ok := r.factories[svc.serviceType]
	if !ok {
		for registered, f := range r.factories {
			if version.Satisfies(svc.serviceType, registered) {
				factory = f
				ok = true
				break
			}
		}
	}
	if ok {
		if typed := factory(svc); typed != nil {
			return typed
		}
	}
	return svc
}

// removeDevice drops a device from the set and revokes its subscriptions.
func (r *Registry) removeDevice(id, reason string) {
	r.mu.Lock()
	dev, known := r.devices[id]
	if known {
		delete(r.devices, id)
	}
	r.mu.Unlock()

	if !known {
		return
	}
	r.teardown(dev, reason)
}

func (r *Registry) teardown(dev *Device, reason string) {
	for _, svc := range dev.services {
		ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
		if err := svc.Base().Unsubscribe(ctx); err != nil {
			r.logError(dev.id, "unsubscribing "+svc.Base().ServiceType(), err)
		}
		cancel()
	}

	r.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerSSDP,
		Category:  log.CategoryState,
		DeviceID:  dev.id,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityDevice,
			NewState: "REMOVED",
			Reason:   reason,
		},
	})
	if r.onRemoved != nil {
		r.onRemoved(dev)
	}
}

func (r *Registry) logError(deviceID, context string, err error) {
	r.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerDescription,
		Category:  log.CategoryError,
		DeviceID:  deviceID,
		Error: &log.ErrorEventData{
			Layer:   log.LayerDescription,
			Message: err.Error(),
			Context: context,
		},
	})
}
