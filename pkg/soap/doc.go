// Package soap implements the action invocation layer of the UPnP control
// point.
//
// Every remote action call goes through here: the request is wrapped in a
// versioned SOAP envelope, POSTed to the service's control URL with a
// SOAPACTION header, and the response envelope is decoded generically into
// a caller-supplied shape. Two call shapes exist: Post (fire-and-forget)
// and PostWithResult (decodes a typed response body).
package soap
