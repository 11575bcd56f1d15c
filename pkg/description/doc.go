// Package description decodes UPnP description documents.
//
// Two document kinds are covered: the device description (the tree a device
// serves at its LOCATION URL, listing its services) and the SCPD capability
// description (the per-service action list and state-variable table). Both
// are plain XML fetched over HTTP; decoding is straightforward tree mapping
// with encoding/xml.
package description
