package interactive

import (
	"encoding/xml"
	"strings"
)

type didlEntry struct {
	id    string
	title string
}

// parseDIDLTitles extracts object IDs and titles from a DIDL-Lite
// document. Both container and item elements are listed; anything
// malformed past the last well-formed entry is dropped.
func parseDIDLTitles(didl string) []didlEntry {
	var entries []didlEntry

	decoder := xml.NewDecoder(strings.NewReader(didl))
	var current *didlEntry
	var inTitle bool
	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "container", "item":
				current = &didlEntry{}
				for _, attr := range t.Attr {
					if attr.Name.Local == "id" {
						current.id = attr.Value
					}
				}
			case "title":
				inTitle = current != nil
			}
		case xml.CharData:
			if inTitle {
				current.title += string(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "title":
				inTitle = false
			case "container", "item":
				if current != nil {
					entries = append(entries, *current)
					current = nil
				}
			}
		}
	}
	return entries
}
