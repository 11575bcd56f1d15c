// Package version parses UPnP type URNs and implements the version
// compatibility rule: a service or device of version n satisfies a
// control point written against version m when n >= m and the rest of
// the URN matches.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// URN is a parsed UPnP type URN such as
// "urn:schemas-upnp-org:service:AVTransport:1".
type URN struct {
	// Domain is the vendor domain, e.g. "schemas-upnp-org" or
	// "av-openhome-org".
	Domain string

	// Kind is "service" or "device".
	Kind string

	// Name is the type name, e.g. "AVTransport".
	Name string

	// Version is the trailing version number.
	Version int
}

// Parse parses a UPnP type URN.
func Parse(s string) (URN, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 5 || parts[0] != "urn" {
		return URN{}, fmt.Errorf("invalid type URN %q", s)
	}
	if parts[2] != "service" && parts[2] != "device" {
		return URN{}, fmt.Errorf("invalid type URN %q: kind must be service or device", s)
	}
	version, err := strconv.Atoi(parts[4])
	if err != nil || version < 1 {
		return URN{}, fmt.Errorf("invalid type URN %q: bad version", s)
	}
	return URN{
		Domain:  parts[1],
		Kind:    parts[2],
		Name:    parts[3],
		Version: version,
	}, nil
}

// String returns the URN in its wire form.
func (u URN) String() string {
	return fmt.Sprintf("urn:%s:%s:%s:%d", u.Domain, u.Kind, u.Name, u.Version)
}

// Satisfies returns true if a type of this URN can serve a consumer
// expecting the required URN. Versions are backward compatible, so
// AVTransport:2 satisfies AVTransport:1 but not the other way around.
func (u URN) Satisfies(required URN) bool {
	return u.Domain == required.Domain &&
		u.Kind == required.Kind &&
		u.Name == required.Name &&
		u.Version >= required.Version
}

// Satisfies reports whether the offered type URN can serve a consumer
// expecting the required URN. Unparseable URNs only satisfy an exact
// string match.
func Satisfies(offered, required string) bool {
	if offered == required {
		return true
	}
	o, err := Parse(offered)
	if err != nil {
		return false
	}
	r, err := Parse(required)
	if err != nil {
		return false
	}
	return o.Satisfies(r)
}
