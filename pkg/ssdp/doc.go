// Package ssdp implements SSDP discovery for the UPnP control point.
//
// It contains the search-message codec (building M-SEARCH datagrams and
// parsing search responses and NOTIFY announcements) and the discovery
// engine that owns the multicast UDP endpoint. The engine classifies
// inbound datagrams, filters them against the set of device types being
// searched for, and hands matching messages off on a channel so the
// registry never runs on the socket's receive path.
package ssdp
