package ssdp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSearchRequest(t *testing.T) {
	data := string(BuildSearchRequest("urn:schemas-upnp-org:device:MediaServer:1"))

	assert.True(t, strings.HasPrefix(data, "M-SEARCH * HTTP/1.1\r\n"))
	assert.Contains(t, data, "HOST: 239.255.255.250:1900\r\n")
	assert.Contains(t, data, "MAN: \"ssdp:discover\"\r\n")
	assert.Contains(t, data, "ST: urn:schemas-upnp-org:device:MediaServer:1\r\n")
	assert.Contains(t, data, "MX: 3\r\n")
	assert.Contains(t, data, "USER-AGENT: ")
	assert.True(t, strings.HasSuffix(data, "\r\n\r\n"))
}

func searchResponse() []byte {
	return []byte(strings.Join([]string{
		"HTTP/1.1 200 OK",
		"CACHE-CONTROL: max-age=1800",
		"LOCATION: http://10.0.0.5:80/desc.xml",
		"ST: urn:schemas-upnp-org:device:MediaServer:1",
		"USN: uuid:ABC::urn:schemas-upnp-org:device:MediaServer:1",
		"", "",
	}, "\r\n"))
}

func TestParseSearchResponse(t *testing.T) {
	msg, err := ParseMessage(searchResponse())
	require.NoError(t, err)

	assert.Equal(t, SearchResponse, msg.Type)
	assert.Equal(t, "uuid:ABC", msg.UUID)
	assert.Equal(t, "urn:schemas-upnp-org:device:MediaServer:1", msg.DeviceID)
	assert.Equal(t, "urn:schemas-upnp-org:device:MediaServer:1", msg.DeviceType)
	assert.Equal(t, "http://10.0.0.5:80/desc.xml", msg.Location)
	assert.Equal(t, "uuid:ABC::urn:schemas-upnp-org:device:MediaServer:1", msg.ID())
}

func TestParseAlive(t *testing.T) {
	data := []byte(strings.Join([]string{
		"NOTIFY * HTTP/1.1",
		"HOST: 239.255.255.250:1900",
		"NTS: ssdp:alive",
		"NT: urn:schemas-upnp-org:device:MediaServer:1",
		"LOCATION: http://10.0.0.5:80/desc.xml",
		"USN: uuid:ABC::urn:schemas-upnp-org:device:MediaServer:1",
		"", "",
	}, "\r\n"))

	msg, err := ParseMessage(data)
	require.NoError(t, err)
	assert.Equal(t, Alive, msg.Type)
	assert.Equal(t, "urn:schemas-upnp-org:device:MediaServer:1", msg.DeviceType)
}

func TestParseUpdate(t *testing.T) {
	data := []byte(strings.Join([]string{
		"NOTIFY * HTTP/1.1",
		"HOST: 239.255.255.250:1900",
		"NTS: ssdp:update",
		"NT: urn:schemas-upnp-org:device:MediaServer:1",
		"LOCATION: http://10.0.0.5:80/desc.xml",
		"USN: uuid:ABC::urn:schemas-upnp-org:device:MediaServer:1",
		"", "",
	}, "\r\n"))

	msg, err := ParseMessage(data)
	require.NoError(t, err)
	assert.Equal(t, Update, msg.Type)
}

func TestParseByeByeSynthesizesLocation(t *testing.T) {
	data := []byte(strings.Join([]string{
		"NOTIFY * HTTP/1.1",
		"HOST: 239.255.255.250:1900",
		"NTS: ssdp:byebye",
		"NT: urn:schemas-upnp-org:device:MediaServer:1",
		"USN: uuid:ABC::urn:schemas-upnp-org:device:MediaServer:1",
		"", "",
	}, "\r\n"))

	msg, err := ParseMessage(data)
	require.NoError(t, err)
	assert.Equal(t, ByeBye, msg.Type)
	assert.Equal(t, "uuid:ABC", msg.UUID)
	assert.Equal(t, "urn:schemas-upnp-org:device:MediaServer:1", msg.DeviceID)
	// No LOCATION on the wire; HOST stands in.
	assert.Equal(t, "239.255.255.250:1900", msg.Location)
}

func TestParsePrefersSTOverNT(t *testing.T) {
	data := []byte(strings.Join([]string{
		"HTTP/1.1 200 OK",
		"LOCATION: http://10.0.0.5:80/desc.xml",
		"ST: urn:schemas-upnp-org:device:MediaServer:1",
		"NT: urn:other:device:Something:1",
		"USN: uuid:ABC::urn:schemas-upnp-org:device:MediaServer:1",
		"", "",
	}, "\r\n"))

	msg, err := ParseMessage(data)
	require.NoError(t, err)
	assert.Equal(t, "urn:schemas-upnp-org:device:MediaServer:1", msg.DeviceType)
}

func TestParseHeadersCaseInsensitive(t *testing.T) {
	data := []byte(strings.Join([]string{
		"HTTP/1.1 200 OK",
		"location: http://10.0.0.5:80/desc.xml",
		"St: urn:schemas-upnp-org:device:MediaServer:1",
		"usn: uuid:ABC::urn:schemas-upnp-org:device:MediaServer:1",
		"", "",
	}, "\r\n"))

	msg, err := ParseMessage(data)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:80/desc.xml", msg.Location)
}

func TestParseUnparseable(t *testing.T) {
	cases := map[string][]byte{
		"empty":          []byte(""),
		"garbage":        []byte("hello world"),
		"unknown method": []byte("GET / HTTP/1.1\r\nUSN: uuid:ABC::urn:x\r\n\r\n"),
		"missing nts":    []byte("NOTIFY * HTTP/1.1\r\nUSN: uuid:ABC::urn:x\r\nLOCATION: http://x\r\n\r\n"),
		"unknown nts":    []byte("NOTIFY * HTTP/1.1\r\nNTS: ssdp:other\r\nUSN: uuid:ABC::urn:x\r\nLOCATION: http://x\r\n\r\n"),
		"missing usn":    searchResponseWithout("USN"),
		"missing st":     searchResponseWithout("ST"),
		"missing loc":    searchResponseWithout("LOCATION"),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMessage(data)
			assert.ErrorIs(t, err, ErrUnparseable)
		})
	}
}

func TestParseUSNComponentCount(t *testing.T) {
	for _, usn := range []string{
		"uuid:ABC",
		"uuid:ABC::urn:x::extra",
	} {
		data := []byte(strings.Join([]string{
			"HTTP/1.1 200 OK",
			"LOCATION: http://10.0.0.5:80/desc.xml",
			"ST: urn:schemas-upnp-org:device:MediaServer:1",
			"USN: " + usn,
			"", "",
		}, "\r\n"))
		_, err := ParseMessage(data)
		assert.ErrorIs(t, err, ErrUnparseable, "usn %q", usn)
	}
}

func searchResponseWithout(header string) []byte {
	var lines []string
	for _, line := range strings.Split(string(searchResponse()), "\r\n") {
		if strings.HasPrefix(line, header+":") {
			continue
		}
		lines = append(lines, line)
	}
	return []byte(strings.Join(lines, "\r\n"))
}
