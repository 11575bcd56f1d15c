package profiles

import (
	"context"
	"strconv"

	"github.com/katoemba/upnp-go/pkg/eventing"
	"github.com/katoemba/upnp-go/pkg/soap"
	"github.com/katoemba/upnp-go/pkg/upnp"
)

// RenderingControl1 is the typed profile for RenderingControl:1.
type RenderingControl1 struct {
	*upnp.Service
}

// ChannelMaster is the channel most renderers expose volume on.
const ChannelMaster = "Master"

// GetVolume returns the channel volume.
func (s *RenderingControl1) GetVolume(ctx context.Context, instanceID uint32, channel string) (uint32, error) {
	var result struct {
		CurrentVolume uint32 `xml:"CurrentVolume"`
	}
	err := s.PostWithResult(ctx, "GetVolume", []soap.Arg{
		instanceArg(instanceID),
		{Name: "Channel", Value: channel},
	}, &result)
	return result.CurrentVolume, err
}

// SetVolume sets the channel volume.
func (s *RenderingControl1) SetVolume(ctx context.Context, instanceID uint32, channel string, volume uint32) error {
	return s.Post(ctx, "SetVolume", []soap.Arg{
		instanceArg(instanceID),
		{Name: "Channel", Value: channel},
		{Name: "DesiredVolume", Value: strconv.FormatUint(uint64(volume), 10)},
	})
}

// GetMute returns the channel mute state.
func (s *RenderingControl1) GetMute(ctx context.Context, instanceID uint32, channel string) (bool, error) {
	var result struct {
		CurrentMute string `xml:"CurrentMute"`
	}
	err := s.PostWithResult(ctx, "GetMute", []soap.Arg{
		instanceArg(instanceID),
		{Name: "Channel", Value: channel},
	}, &result)
	return result.CurrentMute == "1" || result.CurrentMute == "true", err
}

// SetMute sets the channel mute state.
func (s *RenderingControl1) SetMute(ctx context.Context, instanceID uint32, channel string, mute bool) error {
	value := "0"
	if mute {
		value = "1"
	}
	return s.Post(ctx, "SetMute", []soap.Arg{
		instanceArg(instanceID),
		{Name: "Channel", Value: channel},
		{Name: "DesiredMute", Value: value},
	})
}

// DecodeEvent extracts the per-variable values from a notification's
// LastChange property. Returns nil when the notification carries no
// LastChange.
func (s *RenderingControl1) DecodeEvent(n eventing.Notification) (map[string]string, error) {
	lastChange, ok := n.Properties["LastChange"]
	if !ok {
		return nil, nil
	}
	return ParseLastChange([]byte(lastChange))
}
