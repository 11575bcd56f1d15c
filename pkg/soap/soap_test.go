package soap

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katoemba/upnp-go/pkg/log"
)

const renderingControlType = "urn:schemas-upnp-org:service:RenderingControl:1"

func TestEncodeEnvelope(t *testing.T) {
	envelope := EncodeEnvelope(Action{
		Name:        "SetVolume",
		ServiceType: renderingControlType,
		Args: []Arg{
			{Name: "InstanceID", Value: "0"},
			{Name: "Channel", Value: "Master"},
			{Name: "DesiredVolume", Value: "42"},
		},
	})

	body := string(envelope)
	assert.Contains(t, body, `<u:SetVolume xmlns:u="`+renderingControlType+`">`)
	assert.Contains(t, body, "<InstanceID>0</InstanceID><Channel>Master</Channel><DesiredVolume>42</DesiredVolume>")
	assert.Contains(t, body, "</u:SetVolume>")
	assert.Contains(t, body, "<s:Body>")
}

func TestEncodeEnvelopeEscapesValues(t *testing.T) {
	envelope := EncodeEnvelope(Action{
		Name:        "SetAVTransportURI",
		ServiceType: "urn:schemas-upnp-org:service:AVTransport:1",
		Args:        []Arg{{Name: "CurrentURIMetaData", Value: `<DIDL-Lite a="b">`}},
	})

	assert.Contains(t, string(envelope), "&lt;DIDL-Lite a=&#34;b&#34;&gt;")
	assert.NotContains(t, string(envelope), `<DIDL-Lite a="b">`)
}

func TestPostWithResult(t *testing.T) {
	var (
		gotMethod     string
		gotSOAPAction string
		gotBody       string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotSOAPAction = r.Header.Get("SOAPACTION")
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.Write([]byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <u:GetVolumeResponse xmlns:u="` + renderingControlType + `">
      <CurrentVolume>37</CurrentVolume>
    </u:GetVolumeResponse>
  </s:Body>
</s:Envelope>`))
	}))
	defer server.Close()

	client := NewClient(Config{})
	var result struct {
		CurrentVolume int `xml:"CurrentVolume"`
	}
	err := client.PostWithResult(context.Background(), server.URL, Action{
		Name:        "GetVolume",
		ServiceType: renderingControlType,
		Args:        []Arg{{Name: "InstanceID", Value: "0"}, {Name: "Channel", Value: "Master"}},
	}, &result)

	require.NoError(t, err)
	assert.Equal(t, 37, result.CurrentVolume)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, `"`+renderingControlType+`#GetVolume"`, gotSOAPAction)
	assert.Contains(t, gotBody, "<u:GetVolume")
	assert.Contains(t, gotBody, "<InstanceID>0</InstanceID>")
}

func TestPostWithResultMissingResponseElement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <u:SomethingElseEntirely xmlns:u="` + renderingControlType + `"/>
  </s:Body>
</s:Envelope>`))
	}))
	defer server.Close()

	client := NewClient(Config{})
	var result struct{}
	err := client.PostWithResult(context.Background(), server.URL, Action{
		Name:        "GetVolume",
		ServiceType: renderingControlType,
	}, &result)

	assert.ErrorIs(t, err, ErrNoValidResponse)
}

func TestPostFault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <s:Fault>
      <faultcode>s:Client</faultcode>
      <faultstring>UPnPError</faultstring>
      <detail>
        <UPnPError xmlns="urn:schemas-upnp-org:control-1-0">
          <errorCode>718</errorCode>
          <errorDescription>Invalid InstanceID</errorDescription>
        </UPnPError>
      </detail>
    </s:Fault>
  </s:Body>
</s:Envelope>`))
	}))
	defer server.Close()

	client := NewClient(Config{})
	err := client.Post(context.Background(), server.URL, Action{
		Name:        "Stop",
		ServiceType: "urn:schemas-upnp-org:service:AVTransport:1",
		Args:        []Arg{{Name: "InstanceID", Value: "99"}},
	})

	require.Error(t, err)
	var upnpErr *UPnPError
	require.ErrorAs(t, err, &upnpErr)
	assert.Equal(t, 718, upnpErr.Code)
	assert.Equal(t, "Invalid InstanceID", upnpErr.Description)
}

func TestPostNonSOAPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{})
	err := client.Post(context.Background(), server.URL, Action{
		Name:        "Stop",
		ServiceType: "urn:schemas-upnp-org:service:AVTransport:1",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestInvoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <u:GetTransportInfoResponse xmlns:u="urn:schemas-upnp-org:service:AVTransport:1">
      <CurrentTransportState>PLAYING</CurrentTransportState>
      <CurrentTransportStatus>OK</CurrentTransportStatus>
      <CurrentSpeed>1</CurrentSpeed>
    </u:GetTransportInfoResponse>
  </s:Body>
</s:Envelope>`))
	}))
	defer server.Close()

	client := NewClient(Config{})
	result, err := client.Invoke(context.Background(), server.URL, Action{
		Name:        "GetTransportInfo",
		ServiceType: "urn:schemas-upnp-org:service:AVTransport:1",
		Args:        []Arg{{Name: "InstanceID", Value: "0"}},
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"CurrentTransportState":  "PLAYING",
		"CurrentTransportStatus": "OK",
		"CurrentSpeed":           "1",
	}, result)
}

type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureLogger) Log(e log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureLogger) snapshot() []log.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]log.Event(nil), c.events...)
}

func TestMessageLogCapture(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body><u:StopResponse xmlns:u="urn:schemas-upnp-org:service:AVTransport:1"/></s:Body>
</s:Envelope>`))
	}))
	defer server.Close()

	logger := &captureLogger{}
	client := NewClient(Config{Logger: logger, MessageLog: LogBodyAndResponse})
	err := client.Post(context.Background(), server.URL, Action{
		Name:        "Stop",
		ServiceType: "urn:schemas-upnp-org:service:AVTransport:1",
		Args:        []Arg{{Name: "InstanceID", Value: "0"}},
	})
	require.NoError(t, err)

	events := logger.snapshot()
	require.Len(t, events, 2)

	out := events[0]
	assert.Equal(t, log.DirectionOut, out.Direction)
	assert.Equal(t, log.LayerControl, out.Layer)
	require.NotNil(t, out.HTTP)
	assert.Equal(t, "Stop", out.HTTP.Action)
	assert.Contains(t, string(out.HTTP.Body), "<u:Stop")

	in := events[1]
	assert.Equal(t, log.DirectionIn, in.Direction)
	require.NotNil(t, in.HTTP)
	require.NotNil(t, in.HTTP.Status)
	assert.Equal(t, http.StatusOK, *in.HTTP.Status)
	assert.Contains(t, string(in.HTTP.Body), "StopResponse")
}

func TestParseMessageLog(t *testing.T) {
	for input, want := range map[string]MessageLog{
		"":         LogNone,
		"none":     LogNone,
		"body":     LogBody,
		"Response": LogResponse,
		"all":      LogBodyAndResponse,
	} {
		got, err := ParseMessageLog(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseMessageLog("verbose")
	assert.Error(t, err)
}

func TestUint32Array(t *testing.T) {
	values := []uint32{1, 0x01020304, 0xfffffffe}
	data := EncodeUint32Array(values)
	assert.Len(t, data, 12)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, data[4:8])

	decoded, err := DecodeUint32Array(data)
	require.NoError(t, err)
	assert.Equal(t, values, decoded)

	_, err = DecodeUint32Array([]byte{1, 2, 3})
	assert.Error(t, err)

	decoded, err = DecodeUint32Array(nil)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}
