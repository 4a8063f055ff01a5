// Package relay carries normalized message envelopes between the two adapter
// processes over JSON-RPC Unix sockets.
//
// The LINE adapter hosts the Server; the Discord adapter publishes through
// short-lived Publisher calls and receives a per-envelope acknowledgement, so
// a failed delivery surfaces at the sender instead of vanishing. Accepted
// envelopes land in a bounded queue drained by a single consumer goroutine,
// which preserves publish order for a single publisher. A full queue is a
// nack: the publisher observes ErrTransport.
//
// Envelopes are validated on both ends and never persisted.
package relay
