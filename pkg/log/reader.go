package log

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events from a protocol log. The zero value matches
// everything; set fields narrow the selection. String fields match
// exactly; Direction, Layer and Category are pointers so "unset" stays
// distinct from the zero enum value.
type Filter struct {
	// SessionID selects one control point run.
	SessionID string

	// Direction, Layer and Category select on the event envelope.
	Direction *Direction
	Layer     *Layer
	Category  *Category

	// TimeStart (inclusive) and TimeEnd (exclusive) bound the event
	// timestamp.
	TimeStart *time.Time
	TimeEnd   *time.Time

	// DeviceID selects one device by identity key.
	DeviceID string

	// ServiceType selects one capability URN, e.g. narrowing a noisy log
	// to a single AVTransport conversation.
	ServiceType string
}

// Matches reports whether the event passes every set criterion.
func (f *Filter) Matches(event Event) bool {
	switch {
	case f.SessionID != "" && event.SessionID != f.SessionID:
		return false
	case f.Direction != nil && event.Direction != *f.Direction:
		return false
	case f.Layer != nil && event.Layer != *f.Layer:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	case f.DeviceID != "" && event.DeviceID != f.DeviceID:
		return false
	case f.ServiceType != "" && event.ServiceType != f.ServiceType:
		return false
	}
	return true
}

// Reader streams events out of a protocol log file, skipping events the
// filter rejects. Logs are read incrementally, so files from long-running
// control points never need to fit in memory.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens a protocol log for reading every event. Like
// NewFileLogger, a path without an extension gets DefaultExtension.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a protocol log for reading the events matching
// filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	if filepath.Ext(path) == "" {
		path += DefaultExtension
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, decoder: NewDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF after the last one.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			return Event{}, err
		}
		if r.filter.Matches(event) {
			return event, nil
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
