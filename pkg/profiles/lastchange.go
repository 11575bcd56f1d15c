package profiles

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// ParseLastChange decodes the Event document carried in a LastChange state
// variable: every element below InstanceID contributes its val attribute,
// keyed by element name. Only the first InstanceID is considered; multi
// instance renderers are rare and the evented instance is 0.
func ParseLastChange(data []byte) (map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	values := make(map[string]string)
	inInstance := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return values, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decoding LastChange: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "InstanceID" {
				inInstance = true
				continue
			}
			if !inInstance {
				continue
			}
			for _, attr := range t.Attr {
				if attr.Name.Local == "val" {
					values[t.Name.Local] = attr.Value
				}
			}
		case xml.EndElement:
			if t.Name.Local == "InstanceID" {
				return values, nil
			}
		}
	}
}
