package description

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// DeviceDescription is the root of a device description document.
type DeviceDescription struct {
	XMLName     xml.Name    `xml:"root"`
	SpecVersion SpecVersion `xml:"specVersion"`
	Device      Device      `xml:"device"`
}

// SpecVersion is the UPnP architecture version the device implements.
type SpecVersion struct {
	Major int `xml:"major"`
	Minor int `xml:"minor"`
}

// Device describes a device and the services it hosts.
type Device struct {
	DeviceType       string       `xml:"deviceType"`
	FriendlyName     string       `xml:"friendlyName"`
	Manufacturer     string       `xml:"manufacturer"`
	ManufacturerURL  string       `xml:"manufacturerURL"`
	ModelDescription string       `xml:"modelDescription"`
	ModelName        string       `xml:"modelName"`
	ModelNumber      string       `xml:"modelNumber"`
	ModelURL         string       `xml:"modelURL"`
	SerialNumber     string       `xml:"serialNumber"`
	UDN              string       `xml:"UDN"`
	UPC              string       `xml:"UPC"`
	Icons            []Icon       `xml:"iconList>icon"`
	Services         []ServiceRef `xml:"serviceList>service"`
	PresentationURL  string       `xml:"presentationURL"`
}

// Icon is one entry of the device icon list.
type Icon struct {
	Mimetype string `xml:"mimetype"`
	Width    int    `xml:"width"`
	Height   int    `xml:"height"`
	Depth    int    `xml:"depth"`
	URL      string `xml:"url"`
}

// ServiceRef is one service entry of the device description. Its URLs are
// relative to the device description's base URL.
type ServiceRef struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	SCPDURL     string `xml:"SCPDURL"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
}

// ParseDeviceDescription decodes a device description document.
func ParseDeviceDescription(data []byte) (*DeviceDescription, error) {
	var desc DeviceDescription
	if err := xml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to decode device description: %w", err)
	}
	return &desc, nil
}

// FetchDeviceDescription performs an HTTP GET of the description URL and
// decodes the result. The caller bounds the fetch through ctx.
func FetchDeviceDescription(ctx context.Context, client *http.Client, descriptionURL string) (*DeviceDescription, error) {
	data, err := fetch(ctx, client, descriptionURL)
	if err != nil {
		return nil, err
	}
	return ParseDeviceDescription(data)
}

// BaseURL derives the scheme://host:port base from a description URL, for
// resolving the relative service URLs in a ServiceRef.
func BaseURL(descriptionURL string) (*url.URL, error) {
	u, err := url.Parse(descriptionURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("description url %q has no scheme or host", descriptionURL)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

// Resolve resolves a possibly relative URL reference against base.
func Resolve(base *url.URL, ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(r), nil
}

func fetch(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
