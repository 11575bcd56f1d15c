package eventing

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotPropertySet is returned when a NOTIFY body does not contain an
// e:propertyset document.
var ErrNotPropertySet = errors.New("body is not a property set")

// Notification is one decoded NOTIFY callback from a device.
type Notification struct {
	// SID is the subscription identifier the device tagged the callback
	// with.
	SID string

	// Properties maps evented state variable names to their new values.
	// Values that are themselves XML documents (LastChange and friends)
	// are delivered as their unescaped text.
	Properties map[string]string
}

// ParsePropertySet decodes the e:propertyset body of a NOTIFY callback.
// Each property element contributes one name/value pair; nested markup
// inside a value is preserved as text.
func ParsePropertySet(data []byte) (map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	properties := make(map[string]string)
	sawPropertySet := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding property set: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "propertyset":
			sawPropertySet = true
		case "property":
			if err := decodeProperty(dec, properties); err != nil {
				return nil, err
			}
		}
	}
	if !sawPropertySet {
		return nil, ErrNotPropertySet
	}
	return properties, nil
}

// decodeProperty consumes one e:property element: a single child element
// whose name is the state variable and whose character data is the value.
func decodeProperty(dec *xml.Decoder, properties map[string]string) error {
	var (
		name  string
		value strings.Builder
		depth int
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decoding property: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				name = t.Name.Local
				value.Reset()
			}
		case xml.CharData:
			if depth >= 1 {
				value.Write(t)
			}
		case xml.EndElement:
			if depth == 0 {
				// Closing the property element.
				return nil
			}
			if depth == 1 && name != "" {
				properties[name] = value.String()
			}
			depth--
		}
	}
}
