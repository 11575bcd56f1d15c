package profiles

import (
	"context"
	"strconv"
	"time"

	"github.com/katoemba/upnp-go/pkg/duration"
	"github.com/katoemba/upnp-go/pkg/eventing"
	"github.com/katoemba/upnp-go/pkg/soap"
	"github.com/katoemba/upnp-go/pkg/upnp"
)

// AVTransport1 is the typed profile for AVTransport:1 renderers.
type AVTransport1 struct {
	*upnp.Service
}

// TransportInfo is the response of GetTransportInfo.
type TransportInfo struct {
	CurrentTransportState  string `xml:"CurrentTransportState"`
	CurrentTransportStatus string `xml:"CurrentTransportStatus"`
	CurrentSpeed           string `xml:"CurrentSpeed"`
}

// PositionInfo is the response of GetPositionInfo.
type PositionInfo struct {
	Track         uint32 `xml:"Track"`
	TrackDuration string `xml:"TrackDuration"`
	TrackMetaData string `xml:"TrackMetaData"`
	TrackURI      string `xml:"TrackURI"`
	RelTime       string `xml:"RelTime"`
	AbsTime       string `xml:"AbsTime"`
	RelCount      int    `xml:"RelCount"`
	AbsCount      int    `xml:"AbsCount"`
}

// Position returns RelTime as a duration. Devices that report
// NOT_IMPLEMENTED yield zero.
func (i *PositionInfo) Position() (time.Duration, error) {
	return duration.Parse(i.RelTime)
}

// Duration returns TrackDuration as a duration.
func (i *PositionInfo) Duration() (time.Duration, error) {
	return duration.Parse(i.TrackDuration)
}

// MediaInfo is the response of GetMediaInfo.
type MediaInfo struct {
	NrTracks           uint32 `xml:"NrTracks"`
	MediaDuration      string `xml:"MediaDuration"`
	CurrentURI         string `xml:"CurrentURI"`
	CurrentURIMetaData string `xml:"CurrentURIMetaData"`
	NextURI            string `xml:"NextURI"`
	NextURIMetaData    string `xml:"NextURIMetaData"`
	PlayMedium         string `xml:"PlayMedium"`
	RecordMedium       string `xml:"RecordMedium"`
	WriteStatus        string `xml:"WriteStatus"`
}

func instanceArg(instanceID uint32) soap.Arg {
	return soap.Arg{Name: "InstanceID", Value: strconv.FormatUint(uint64(instanceID), 10)}
}

// SetAVTransportURI points the renderer at a new URI with its DIDL-Lite
// metadata.
func (s *AVTransport1) SetAVTransportURI(ctx context.Context, instanceID uint32, currentURI, metaData string) error {
	return s.Post(ctx, "SetAVTransportURI", []soap.Arg{
		instanceArg(instanceID),
		{Name: "CurrentURI", Value: currentURI},
		{Name: "CurrentURIMetaData", Value: metaData},
	})
}

// SetNextAVTransportURI sets the gapless follow-up URI.
func (s *AVTransport1) SetNextAVTransportURI(ctx context.Context, instanceID uint32, nextURI, metaData string) error {
	return s.Post(ctx, "SetNextAVTransportURI", []soap.Arg{
		instanceArg(instanceID),
		{Name: "NextURI", Value: nextURI},
		{Name: "NextURIMetaData", Value: metaData},
	})
}

// Play starts playback at the given speed ("1" for normal).
func (s *AVTransport1) Play(ctx context.Context, instanceID uint32, speed string) error {
	return s.Post(ctx, "Play", []soap.Arg{
		instanceArg(instanceID),
		{Name: "Speed", Value: speed},
	})
}

// Pause pauses playback.
func (s *AVTransport1) Pause(ctx context.Context, instanceID uint32) error {
	return s.Post(ctx, "Pause", []soap.Arg{instanceArg(instanceID)})
}

// Stop stops playback.
func (s *AVTransport1) Stop(ctx context.Context, instanceID uint32) error {
	return s.Post(ctx, "Stop", []soap.Arg{instanceArg(instanceID)})
}

// Next skips to the next track.
func (s *AVTransport1) Next(ctx context.Context, instanceID uint32) error {
	return s.Post(ctx, "Next", []soap.Arg{instanceArg(instanceID)})
}

// Previous skips to the previous track.
func (s *AVTransport1) Previous(ctx context.Context, instanceID uint32) error {
	return s.Post(ctx, "Previous", []soap.Arg{instanceArg(instanceID)})
}

// Seek seeks in the given unit ("REL_TIME", "TRACK_NR") to target.
func (s *AVTransport1) Seek(ctx context.Context, instanceID uint32, unit, target string) error {
	return s.Post(ctx, "Seek", []soap.Arg{
		instanceArg(instanceID),
		{Name: "Unit", Value: unit},
		{Name: "Target", Value: target},
	})
}

// SeekTime seeks to an absolute position within the current track.
func (s *AVTransport1) SeekTime(ctx context.Context, instanceID uint32, target time.Duration) error {
	return s.Seek(ctx, instanceID, "REL_TIME", duration.Format(target))
}

// GetTransportInfo returns the transport state.
func (s *AVTransport1) GetTransportInfo(ctx context.Context, instanceID uint32) (*TransportInfo, error) {
	var info TransportInfo
	if err := s.PostWithResult(ctx, "GetTransportInfo", []soap.Arg{instanceArg(instanceID)}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetPositionInfo returns the playback position.
func (s *AVTransport1) GetPositionInfo(ctx context.Context, instanceID uint32) (*PositionInfo, error) {
	var info PositionInfo
	if err := s.PostWithResult(ctx, "GetPositionInfo", []soap.Arg{instanceArg(instanceID)}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetMediaInfo returns the current and next media.
func (s *AVTransport1) GetMediaInfo(ctx context.Context, instanceID uint32) (*MediaInfo, error) {
	var info MediaInfo
	if err := s.PostWithResult(ctx, "GetMediaInfo", []soap.Arg{instanceArg(instanceID)}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DecodeEvent extracts the per-variable values from a notification's
// LastChange property. Returns nil when the notification carries no
// LastChange.
func (s *AVTransport1) DecodeEvent(n eventing.Notification) (map[string]string, error) {
	lastChange, ok := n.Properties["LastChange"]
	if !ok {
		return nil, nil
	}
	return ParseLastChange([]byte(lastChange))
}
