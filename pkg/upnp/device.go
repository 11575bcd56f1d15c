package upnp

import (
	"sync/atomic"
	"time"

	"github.com/katoemba/upnp-go/pkg/description"
	"github.com/katoemba/upnp-go/pkg/version"
)

// Device is one discovered device, fully loaded. The registry hands out
// devices only after their description and services are available.
type Device struct {
	id           string
	uuid         string
	deviceType   string
	location     string
	friendlyName string
	manufacturer string
	modelName    string
	udn          string
	icons        []description.Icon

	services []TypedService

	// lastSeen is refreshed on every announcement, also by readers
	// outside the registry lock.
	lastSeen atomic.Int64

	// servicesLoaded is guarded by the registry mutex.
	servicesLoaded bool
}

// ID returns the identity key of the device: uuid::deviceType, as carried
// in the USN of its announcements.
func (d *Device) ID() string { return d.id }

// UUID returns the uuid: prefixed unique identifier.
func (d *Device) UUID() string { return d.uuid }

// DeviceType returns the device type URN.
func (d *Device) DeviceType() string { return d.deviceType }

// Location returns the description URL the device was loaded from.
func (d *Device) Location() string { return d.location }

// FriendlyName returns the human readable device name.
func (d *Device) FriendlyName() string { return d.friendlyName }

// Manufacturer returns the manufacturer name.
func (d *Device) Manufacturer() string { return d.manufacturer }

// ModelName returns the model name.
func (d *Device) ModelName() string { return d.modelName }

// UDN returns the unique device name from the description.
func (d *Device) UDN() string { return d.udn }

// Icons returns the device's icon list.
func (d *Device) Icons() []description.Icon { return d.icons }

// Services returns all services of the device.
func (d *Device) Services() []TypedService { return d.services }

// Service returns the service with the given capability URN, or nil.
// A service of a higher version of the same type also matches.
func (d *Device) Service(serviceType string) TypedService {
	for _, svc := range d.services {
		if svc.Base().ServiceType() == serviceType {
			return svc
		}
	}
	for _, svc := range d.services {
		if version.Satisfies(svc.Base().ServiceType(), serviceType) {
			return svc
		}
	}
	return nil
}

// LastSeen returns when the device last announced itself or answered a
// search.
func (d *Device) LastSeen() time.Time {
	return time.Unix(0, d.lastSeen.Load())
}

func (d *Device) touch(t time.Time) {
	d.lastSeen.Store(t.UnixNano())
}
