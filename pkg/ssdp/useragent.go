package ssdp

import (
	"fmt"
	"runtime"
)

// Product identification reported in outgoing M-SEARCH requests.
const (
	ProductName    = "upnp-go"
	ProductVersion = "0.9.0"
)

// UserAgent returns the USER-AGENT string for search requests, in the
// conventional `OS/version UPnP/1.1 product/version` form.
func UserAgent() string {
	return fmt.Sprintf("%s/%s UPnP/1.1 %s/%s", runtime.GOOS, runtime.Version(), ProductName, ProductVersion)
}
