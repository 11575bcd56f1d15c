package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	envelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	encodingNS = "http://schemas.xmlsoap.org/soap/encoding/"
)

// ErrNoValidResponse is returned when the device answered the action call
// but the response envelope does not contain the expected <ActionResponse>
// element for that action.
var ErrNoValidResponse = errors.New("no valid response element in envelope")

// Arg is a single named input argument of an action call. Arguments are
// rendered into the envelope in slice order, as some devices are sensitive
// to argument ordering.
type Arg struct {
	Name  string
	Value string
}

// Action describes one action invocation: the action name, the full
// service type URN it belongs to, and its input arguments.
type Action struct {
	Name        string
	ServiceType string
	Args        []Arg
}

// EncodeEnvelope renders the action into a complete SOAP 1.1 request
// envelope. Argument values are XML-escaped; argument and action names are
// taken from service descriptions and written as-is.
func EncodeEnvelope(action Action) []byte {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<s:Envelope xmlns:s="` + envelopeNS + `" s:encodingStyle="` + encodingNS + `">`)
	buf.WriteString("<s:Body>")
	fmt.Fprintf(&buf, `<u:%s xmlns:u="%s">`, action.Name, action.ServiceType)
	for _, arg := range action.Args {
		buf.WriteString("<" + arg.Name + ">")
		xml.EscapeText(&buf, []byte(arg.Value))
		buf.WriteString("</" + arg.Name + ">")
	}
	buf.WriteString("</u:" + action.Name + ">")
	buf.WriteString("</s:Body>")
	buf.WriteString("</s:Envelope>")
	return buf.Bytes()
}

// DecodeResponse locates the <ActionResponse> element for the given action
// inside a SOAP response envelope and decodes it into out. Namespace
// prefixes on the response element vary between devices and are ignored;
// matching is on the local name only. Returns ErrNoValidResponse when the
// element is absent.
func DecodeResponse(data []byte, action string, out any) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	want := action + "Response"
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return ErrNoValidResponse
		}
		if err != nil {
			return fmt.Errorf("decoding response envelope: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local == want {
			if err := dec.DecodeElement(out, &se); err != nil {
				return fmt.Errorf("decoding %s: %w", want, err)
			}
			return nil
		}
	}
}

// DecodeResponseMap is the untyped variant of DecodeResponse: it collects
// every child element of the response element into a name to text map.
// Useful for ad-hoc invocation where no typed response struct exists.
func DecodeResponseMap(data []byte, action string) (map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	want := action + "Response"
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, ErrNoValidResponse
		}
		if err != nil {
			return nil, fmt.Errorf("decoding response envelope: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != want {
			continue
		}
		return decodeChildren(dec, se)
	}
}

func decodeChildren(dec *xml.Decoder, parent xml.StartElement) (map[string]string, error) {
	result := make(map[string]string)
	var (
		current string
		text    strings.Builder
		depth   int
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decoding response arguments: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				current = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 1 {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 0 {
				// Closing the response element itself.
				return result, nil
			}
			if depth == 1 {
				result[current] = text.String()
			}
			depth--
		}
	}
}
