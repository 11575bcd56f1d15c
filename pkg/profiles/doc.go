// Package profiles provides typed wrappers for well-known service types.
//
// Each profile wraps the generic service with methods per action, typed
// response structs, and decoding helpers for the service's evented state.
// Register the profiles with the registry via Factories; retrieve them
// from a device with the per-profile accessor (AVTransport1Of and
// friends).
package profiles
