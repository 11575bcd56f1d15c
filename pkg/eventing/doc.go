// Package eventing implements the GENA eventing side of the UPnP control
// point.
//
// A Subscription tracks one service's event subscription through its
// lifecycle (subscribe, periodic renewal, unsubscribe) with guarded state
// transitions. A failed renewal triggers exactly one fresh subscribe
// attempt; a failed subscribe parks the subscription in StateFailed until
// the caller retries.
//
// A single Listener receives NOTIFY callbacks from all devices on one
// randomized HTTP path and hands the decoded property sets to a Broker,
// which fans them out to consumers. Consumers filter on the subscription
// identifier at delivery time, so notifications arriving for a stale SID
// after a resubscribe are dropped.
package eventing
