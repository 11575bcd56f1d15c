// Package log provides structured protocol logging for the UPnP control point.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at every layer of the stack (SSDP discovery,
// description fetches, SOAP control, GENA eventing). It is separate from
// operational logging (slog) - protocol capture provides a complete
// machine-readable event trace for diagnosing misbehaving devices.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/upnp/controlpoint.ulog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    log.NewFileLogger("/var/log/upnp/controlpoint.ulog"),
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - SSDP: multicast search and announcement datagrams (DatagramEvent)
//   - Description / Control / Eventing: HTTP exchanges (HTTPEvent)
//   - Any layer: subscription and device state changes (StateChangeEvent)
//
// Errors have a dedicated event type carrying the raw payload context.
//
// # File Format
//
// Log files use CBOR encoding with .ulog extension. The upnp-log CLI tool
// provides viewing and filtering capabilities.
package log
