package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// UPnPError is the structured error a device returns inside a SOAP fault
// when an action fails (error code 718 "Invalid InstanceID" and friends).
type UPnPError struct {
	Code        int    `xml:"errorCode"`
	Description string `xml:"errorDescription"`
}

// Error implements the error interface.
func (e *UPnPError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("UPnP error %d", e.Code)
	}
	return fmt.Sprintf("UPnP error %d: %s", e.Code, e.Description)
}

// decodeUPnPError extracts the UPnPError detail from a fault response body.
// Returns nil when the body carries no recognizable UPnPError element.
func decodeUPnPError(data []byte) *UPnPError {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "UPnPError" {
			continue
		}
		var upnpErr UPnPError
		if err := dec.DecodeElement(&upnpErr, &se); err != nil {
			return nil
		}
		return &upnpErr
	}
}
