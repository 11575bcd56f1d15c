package profiles

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/katoemba/upnp-go/pkg/eventing"
	"github.com/katoemba/upnp-go/pkg/soap"
	"github.com/katoemba/upnp-go/pkg/upnp"
)

// OpenHomePlaylist1 is the typed profile for the OpenHome Playlist:1
// service found on Linn and compatible streamers. Unlike AVTransport the
// playlist lives on the device; tracks are addressed by numeric id.
type OpenHomePlaylist1 struct {
	*upnp.Service
}

// PlaylistTrack is one entry returned by ReadList.
type PlaylistTrack struct {
	ID       uint32 `xml:"Id"`
	URI      string `xml:"Uri"`
	Metadata string `xml:"Metadata"`
}

// PlaylistEvent is the decoded evented state of the playlist service.
// Fields are pointers; only variables present in the notification are set.
type PlaylistEvent struct {
	TransportState *string
	Repeat         *bool
	Shuffle        *bool
	ID             *uint32
	IDArray        []uint32
}

// Play starts playback of the current track.
func (s *OpenHomePlaylist1) Play(ctx context.Context) error {
	return s.Post(ctx, "Play", nil)
}

// Pause pauses playback.
func (s *OpenHomePlaylist1) Pause(ctx context.Context) error {
	return s.Post(ctx, "Pause", nil)
}

// Stop stops playback.
func (s *OpenHomePlaylist1) Stop(ctx context.Context) error {
	return s.Post(ctx, "Stop", nil)
}

// Next skips to the next playlist entry.
func (s *OpenHomePlaylist1) Next(ctx context.Context) error {
	return s.Post(ctx, "Next", nil)
}

// Previous skips to the previous playlist entry.
func (s *OpenHomePlaylist1) Previous(ctx context.Context) error {
	return s.Post(ctx, "Previous", nil)
}

// SeekID jumps to the playlist entry with the given id.
func (s *OpenHomePlaylist1) SeekID(ctx context.Context, id uint32) error {
	return s.Post(ctx, "SeekId", []soap.Arg{
		{Name: "Value", Value: strconv.FormatUint(uint64(id), 10)},
	})
}

// SeekSecondAbsolute seeks to an absolute position in the current track.
func (s *OpenHomePlaylist1) SeekSecondAbsolute(ctx context.Context, seconds uint32) error {
	return s.Post(ctx, "SeekSecondAbsolute", []soap.Arg{
		{Name: "Value", Value: strconv.FormatUint(uint64(seconds), 10)},
	})
}

// Insert adds a track after the entry with afterID (0 inserts at the
// front) and returns the new entry's id.
func (s *OpenHomePlaylist1) Insert(ctx context.Context, afterID uint32, uri, metadata string) (uint32, error) {
	var result struct {
		NewID uint32 `xml:"NewId"`
	}
	err := s.PostWithResult(ctx, "Insert", []soap.Arg{
		{Name: "AfterId", Value: strconv.FormatUint(uint64(afterID), 10)},
		{Name: "Uri", Value: uri},
		{Name: "Metadata", Value: metadata},
	}, &result)
	return result.NewID, err
}

// DeleteID removes the playlist entry with the given id.
func (s *OpenHomePlaylist1) DeleteID(ctx context.Context, id uint32) error {
	return s.Post(ctx, "DeleteId", []soap.Arg{
		{Name: "Value", Value: strconv.FormatUint(uint64(id), 10)},
	})
}

// DeleteAll clears the playlist.
func (s *OpenHomePlaylist1) DeleteAll(ctx context.Context) error {
	return s.Post(ctx, "DeleteAll", nil)
}

// TransportState returns the current transport state ("Playing",
// "Paused", "Stopped", "Buffering").
func (s *OpenHomePlaylist1) TransportState(ctx context.Context) (string, error) {
	var result struct {
		Value string `xml:"Value"`
	}
	err := s.PostWithResult(ctx, "TransportState", nil, &result)
	return result.Value, err
}

// ID returns the id of the current playlist entry.
func (s *OpenHomePlaylist1) ID(ctx context.Context) (uint32, error) {
	var result struct {
		Value uint32 `xml:"Value"`
	}
	err := s.PostWithResult(ctx, "Id", nil, &result)
	return result.Value, err
}

// IDArray returns the ordered ids of all playlist entries.
func (s *OpenHomePlaylist1) IDArray(ctx context.Context) ([]uint32, error) {
	var result struct {
		Token uint32 `xml:"Token"`
		Array string `xml:"Array"`
	}
	if err := s.PostWithResult(ctx, "IdArray", nil, &result); err != nil {
		return nil, err
	}
	return DecodeIDArray(result.Array)
}

// Read returns a single playlist entry.
func (s *OpenHomePlaylist1) Read(ctx context.Context, id uint32) (*PlaylistTrack, error) {
	var result struct {
		URI      string `xml:"Uri"`
		Metadata string `xml:"Metadata"`
	}
	err := s.PostWithResult(ctx, "Read", []soap.Arg{
		{Name: "Id", Value: strconv.FormatUint(uint64(id), 10)},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &PlaylistTrack{ID: id, URI: result.URI, Metadata: result.Metadata}, nil
}

// ReadList returns the entries for the given ids in one call. The
// device answers with a track list document; ids it no longer knows are
// omitted from the result.
func (s *OpenHomePlaylist1) ReadList(ctx context.Context, ids []uint32) ([]PlaylistTrack, error) {
	idList := make([]string, len(ids))
	for i, id := range ids {
		idList[i] = strconv.FormatUint(uint64(id), 10)
	}

	var result struct {
		TrackList string `xml:"TrackList"`
	}
	err := s.PostWithResult(ctx, "ReadList", []soap.Arg{
		{Name: "IdList", Value: strings.Join(idList, " ")},
	}, &result)
	if err != nil {
		return nil, err
	}

	var list struct {
		Entries []struct {
			ID       uint32 `xml:"Id"`
			URI      string `xml:"Uri"`
			Metadata string `xml:"Metadata"`
		} `xml:"Entry"`
	}
	if err := xml.Unmarshal([]byte(result.TrackList), &list); err != nil {
		return nil, fmt.Errorf("decoding track list: %w", err)
	}

	tracks := make([]PlaylistTrack, len(list.Entries))
	for i, entry := range list.Entries {
		tracks[i] = PlaylistTrack{ID: entry.ID, URI: entry.URI, Metadata: entry.Metadata}
	}
	return tracks, nil
}

// Repeat returns the repeat flag.
func (s *OpenHomePlaylist1) Repeat(ctx context.Context) (bool, error) {
	var result struct {
		Value string `xml:"Value"`
	}
	err := s.PostWithResult(ctx, "Repeat", nil, &result)
	return parseOpenHomeBool(result.Value), err
}

// SetRepeat sets the repeat flag.
func (s *OpenHomePlaylist1) SetRepeat(ctx context.Context, repeat bool) error {
	return s.Post(ctx, "SetRepeat", []soap.Arg{
		{Name: "Value", Value: openHomeBool(repeat)},
	})
}

// Shuffle returns the shuffle flag.
func (s *OpenHomePlaylist1) Shuffle(ctx context.Context) (bool, error) {
	var result struct {
		Value string `xml:"Value"`
	}
	err := s.PostWithResult(ctx, "Shuffle", nil, &result)
	return parseOpenHomeBool(result.Value), err
}

// SetShuffle sets the shuffle flag.
func (s *OpenHomePlaylist1) SetShuffle(ctx context.Context, shuffle bool) error {
	return s.Post(ctx, "SetShuffle", []soap.Arg{
		{Name: "Value", Value: openHomeBool(shuffle)},
	})
}

// DecodeEvent decodes the evented playlist state from a notification.
// OpenHome services event plain variables rather than a LastChange
// document.
func (s *OpenHomePlaylist1) DecodeEvent(n eventing.Notification) (*PlaylistEvent, error) {
	event := &PlaylistEvent{}
	if v, ok := n.Properties["TransportState"]; ok {
		event.TransportState = &v
	}
	if v, ok := n.Properties["Repeat"]; ok {
		b := parseOpenHomeBool(v)
		event.Repeat = &b
	}
	if v, ok := n.Properties["Shuffle"]; ok {
		b := parseOpenHomeBool(v)
		event.Shuffle = &b
	}
	if v, ok := n.Properties["Id"]; ok {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("decoding playlist Id %q: %w", v, err)
		}
		id32 := uint32(id)
		event.ID = &id32
	}
	if v, ok := n.Properties["IdArray"]; ok {
		ids, err := DecodeIDArray(v)
		if err != nil {
			return nil, err
		}
		event.IDArray = ids
	}
	return event, nil
}

// DecodeIDArray decodes a base64 encoded id array as delivered by IdArray
// responses and events.
func DecodeIDArray(encoded string) ([]uint32, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding id array base64: %w", err)
	}
	return soap.DecodeUint32Array(raw)
}

// EncodeIDArray is the inverse of DecodeIDArray.
func EncodeIDArray(ids []uint32) string {
	return base64.StdEncoding.EncodeToString(soap.EncodeUint32Array(ids))
}

func parseOpenHomeBool(v string) bool {
	return v == "1" || v == "true"
}

func openHomeBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
