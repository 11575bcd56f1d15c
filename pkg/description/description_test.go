package description

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deviceDescriptionXML = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType>
    <friendlyName>Living Room Server</friendlyName>
    <manufacturer>Acme</manufacturer>
    <modelName>MediaBox</modelName>
    <UDN>uuid:ABC</UDN>
    <iconList>
      <icon>
        <mimetype>image/png</mimetype>
        <width>48</width><height>48</height><depth>24</depth>
        <url>/icon.png</url>
      </icon>
    </iconList>
    <serviceList>
      <service>
        <serviceType>urn:schemas-upnp-org:service:ContentDirectory:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:ContentDirectory</serviceId>
        <SCPDURL>/cd/scpd.xml</SCPDURL>
        <controlURL>/cd/control</controlURL>
        <eventSubURL>/cd/event</eventSubURL>
      </service>
      <service>
        <serviceType>urn:schemas-upnp-org:service:ConnectionManager:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:ConnectionManager</serviceId>
        <SCPDURL>/cm/scpd.xml</SCPDURL>
        <controlURL>/cm/control</controlURL>
        <eventSubURL></eventSubURL>
      </service>
    </serviceList>
  </device>
</root>`

const scpdXML = `<?xml version="1.0"?>
<scpd xmlns="urn:schemas-upnp-org:service-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <actionList>
    <action>
      <name>Browse</name>
      <argumentList>
        <argument>
          <name>ObjectID</name>
          <direction>in</direction>
          <relatedStateVariable>A_ARG_TYPE_ObjectID</relatedStateVariable>
        </argument>
        <argument>
          <name>Result</name>
          <direction>out</direction>
          <relatedStateVariable>A_ARG_TYPE_Result</relatedStateVariable>
        </argument>
        <argument>
          <name>NumberReturned</name>
          <direction>out</direction>
          <relatedStateVariable>A_ARG_TYPE_Count</relatedStateVariable>
        </argument>
      </argumentList>
    </action>
    <action><name>GetSystemUpdateID</name></action>
  </actionList>
  <serviceStateTable>
    <stateVariable sendEvents="yes">
      <name>SystemUpdateID</name>
      <dataType>ui4</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
      <name>A_ARG_TYPE_BrowseFlag</name>
      <dataType>string</dataType>
      <allowedValueList>
        <allowedValue>BrowseMetadata</allowedValue>
        <allowedValue>BrowseDirectChildren</allowedValue>
      </allowedValueList>
    </stateVariable>
  </serviceStateTable>
</scpd>`

func TestParseDeviceDescription(t *testing.T) {
	desc, err := ParseDeviceDescription([]byte(deviceDescriptionXML))
	require.NoError(t, err)

	assert.Equal(t, 1, desc.SpecVersion.Major)
	assert.Equal(t, "urn:schemas-upnp-org:device:MediaServer:1", desc.Device.DeviceType)
	assert.Equal(t, "Living Room Server", desc.Device.FriendlyName)
	assert.Equal(t, "uuid:ABC", desc.Device.UDN)
	require.Len(t, desc.Device.Services, 2)

	cd := desc.Device.Services[0]
	assert.Equal(t, "urn:schemas-upnp-org:service:ContentDirectory:1", cd.ServiceType)
	assert.Equal(t, "/cd/control", cd.ControlURL)
	assert.Equal(t, "/cd/event", cd.EventSubURL)

	// Eventless service has an empty eventSubURL
	assert.Empty(t, desc.Device.Services[1].EventSubURL)

	require.Len(t, desc.Device.Icons, 1)
	assert.Equal(t, "image/png", desc.Device.Icons[0].Mimetype)
}

func TestParseDeviceDescriptionMalformed(t *testing.T) {
	_, err := ParseDeviceDescription([]byte("<root><device>"))
	assert.Error(t, err)
}

func TestParseSCPD(t *testing.T) {
	scpd, err := ParseSCPD([]byte(scpdXML))
	require.NoError(t, err)

	require.Len(t, scpd.Actions, 2)

	browse, ok := scpd.Action("Browse")
	require.True(t, ok)
	assert.Len(t, browse.InArguments(), 1)
	assert.Len(t, browse.OutArguments(), 2)
	assert.Equal(t, "ObjectID", browse.InArguments()[0].Name)
	assert.Equal(t, "A_ARG_TYPE_Result", browse.OutArguments()[0].RelatedStateVariable)

	_, ok = scpd.Action("Missing")
	assert.False(t, ok)

	sysID, ok := scpd.StateVariable("SystemUpdateID")
	require.True(t, ok)
	assert.True(t, sysID.Evented())
	assert.Equal(t, "ui4", sysID.DataType)

	flag, ok := scpd.StateVariable("A_ARG_TYPE_BrowseFlag")
	require.True(t, ok)
	assert.False(t, flag.Evented())
	assert.Equal(t, []string{"BrowseMetadata", "BrowseDirectChildren"}, flag.AllowedValues)
}

func TestBaseURLAndResolve(t *testing.T) {
	base, err := BaseURL("http://10.0.0.5:8200/desc.xml")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8200", base.String())

	control, err := Resolve(base, "/cd/control")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8200/cd/control", control.String())

	absolute, err := Resolve(base, "http://10.0.0.6/other")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.6/other", absolute.String())

	_, err = BaseURL("desc.xml")
	assert.Error(t, err)
}

func TestFetchDeviceDescription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(deviceDescriptionXML))
	}))
	defer server.Close()

	desc, err := FetchDeviceDescription(context.Background(), server.Client(), server.URL+"/desc.xml")
	require.NoError(t, err)
	assert.Equal(t, "uuid:ABC", desc.Device.UDN)
}

func TestFetchSCPDErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := FetchSCPD(context.Background(), server.Client(), server.URL+"/scpd.xml")
	assert.Error(t, err)
}
