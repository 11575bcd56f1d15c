// Package commands implements the upnp-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/katoemba/upnp-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		if filter.Layer != nil && event.Layer != *filter.Layer {
			continue
		}
		if filter.Direction != nil && event.Direction != *filter.Direction {
			continue
		}
		if filter.Category != nil && event.Category != *filter.Category {
			continue
		}

		formatEvent(output, event)
	}

	return nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	dir := event.Direction.String()

	fmt.Fprintf(w, "%s %-3s %-11s %s\n", ts, dir, event.Layer.String(), eventTypeLabel(event))

	if event.DeviceID != "" {
		fmt.Fprintf(w, "  Device: %s\n", event.DeviceID)
	}
	if event.ServiceType != "" {
		fmt.Fprintf(w, "  Service: %s\n", event.ServiceType)
	}
	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Remote: %s\n", event.RemoteAddr)
	}

	switch {
	case event.Datagram != nil:
		formatDatagramDetails(w, event.Datagram)
	case event.HTTP != nil:
		formatHTTPDetails(w, event.HTTP)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// eventTypeLabel gives the header label for the event's payload type.
func eventTypeLabel(event log.Event) string {
	switch {
	case event.Datagram != nil:
		return event.Datagram.MessageType
	case event.HTTP != nil:
		if event.HTTP.Status != nil {
			return fmt.Sprintf("%s %d", event.HTTP.Method, *event.HTTP.Status)
		}
		return event.HTTP.Method
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// formatDatagramDetails writes SSDP datagram details.
func formatDatagramDetails(w io.Writer, dg *log.DatagramEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", dg.Size)
	if dg.USN != "" {
		fmt.Fprintf(w, "  USN: %s\n", dg.USN)
	}
	if dg.Target != "" {
		fmt.Fprintf(w, "  Target: %s\n", dg.Target)
	}
	if dg.Location != "" {
		fmt.Fprintf(w, "  Location: %s\n", dg.Location)
	}
	if len(dg.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", strings.TrimRight(string(dg.Data), "\r\n"))
		if dg.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

// formatHTTPDetails writes HTTP exchange details.
func formatHTTPDetails(w io.Writer, h *log.HTTPEvent) {
	fmt.Fprintf(w, "  URL: %s\n", h.URL)
	if h.Action != "" {
		fmt.Fprintf(w, "  Action: %s\n", h.Action)
	}
	if h.SID != "" {
		fmt.Fprintf(w, "  SID: %s\n", h.SID)
	}
	if h.BodySize > 0 {
		fmt.Fprintf(w, "  BodySize: %d bytes\n", h.BodySize)
	}
	if len(h.Body) > 0 {
		fmt.Fprintf(w, "  Body: %s\n", string(h.Body))
	}
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	return parseLayer(s)
}

func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "ssdp":
		return log.LayerSSDP, nil
	case "description":
		return log.LayerDescription, nil
	case "control":
		return log.LayerControl, nil
	case "eventing":
		return log.LayerEventing, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be ssdp, description, control, or eventing)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	return parseDirection(s)
}

func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	return parseCategory(s)
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, state, or error)", s)
	}
}
