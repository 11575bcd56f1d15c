package profiles

import (
	"github.com/katoemba/upnp-go/pkg/upnp"
)

// Service type URNs covered by the profiles in this package.
const (
	AVTransport1Type      = "urn:schemas-upnp-org:service:AVTransport:1"
	ContentDirectory1Type = "urn:schemas-upnp-org:service:ContentDirectory:1"
	RenderingControl1Type = "urn:schemas-upnp-org:service:RenderingControl:1"
	OpenHomePlaylist1Type = "urn:av-openhome-org:service:Playlist:1"
)

// Factories returns the typed service constructors for all profiles,
// keyed by capability URN. Pass the result to the registry configuration.
func Factories() map[string]upnp.ServiceFactory {
	return map[string]upnp.ServiceFactory{
		AVTransport1Type:      func(s *upnp.Service) upnp.TypedService { return &AVTransport1{Service: s} },
		ContentDirectory1Type: func(s *upnp.Service) upnp.TypedService { return &ContentDirectory1{Service: s} },
		RenderingControl1Type: func(s *upnp.Service) upnp.TypedService { return &RenderingControl1{Service: s} },
		OpenHomePlaylist1Type: func(s *upnp.Service) upnp.TypedService { return &OpenHomePlaylist1{Service: s} },
	}
}

// AVTransport1Of returns the device's AVTransport:1 profile, or nil when
// the device has no such service or the profile was not registered.
func AVTransport1Of(d *upnp.Device) *AVTransport1 {
	svc, _ := d.Service(AVTransport1Type).(*AVTransport1)
	return svc
}

// ContentDirectory1Of returns the device's ContentDirectory:1 profile, or
// nil.
func ContentDirectory1Of(d *upnp.Device) *ContentDirectory1 {
	svc, _ := d.Service(ContentDirectory1Type).(*ContentDirectory1)
	return svc
}

// RenderingControl1Of returns the device's RenderingControl:1 profile, or
// nil.
func RenderingControl1Of(d *upnp.Device) *RenderingControl1 {
	svc, _ := d.Service(RenderingControl1Type).(*RenderingControl1)
	return svc
}

// OpenHomePlaylist1Of returns the device's OpenHome Playlist:1 profile, or
// nil.
func OpenHomePlaylist1Of(d *upnp.Device) *OpenHomePlaylist1 {
	svc, _ := d.Service(OpenHomePlaylist1Type).(*OpenHomePlaylist1)
	return svc
}
