// Package upnp ties the discovery, description, control and eventing
// layers together into a control point registry.
//
// The Registry listens for SSDP announcements, loads the description of
// each newly seen device, and maintains the set of devices currently on
// the network. A device is announced to the application only after its
// description and service capabilities have been fully loaded; devices
// that leave the network (or announce byebye) are removed and their event
// subscriptions torn down.
//
// Services are handed out as TypedService values: when a factory is
// registered for a service's capability URN, the registry wraps the
// service in its typed profile, otherwise the generic Service is returned.
package upnp
