package interactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDIDLTitles(t *testing.T) {
	didl := `<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"
		xmlns:dc="http://purl.org/dc/elements/1.1/">
		<container id="1$4"><dc:title>Albums</dc:title></container>
		<item id="1$4$1"><dc:title>So What</dc:title></item>
	</DIDL-Lite>`

	entries := parseDIDLTitles(didl)
	assert.Equal(t, []didlEntry{
		{id: "1$4", title: "Albums"},
		{id: "1$4$1", title: "So What"},
	}, entries)
}

func TestParseDIDLTitlesMalformed(t *testing.T) {
	didl := `<DIDL-Lite><item id="a"><dc:title>One</dc:title></item><item id="b"><dc:title>Tw`

	entries := parseDIDLTitles(didl)
	assert.Equal(t, []didlEntry{{id: "a", title: "One"}}, entries)
}

func TestShortType(t *testing.T) {
	assert.Equal(t, "AVTransport", shortType("urn:schemas-upnp-org:service:AVTransport:1"))
	assert.Equal(t, "Playlist", shortType("urn:av-openhome-org:service:Playlist:1"))
	assert.Equal(t, "bogus", shortType("bogus"))
}
