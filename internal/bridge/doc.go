// Package bridge contains the two adapter processes that tie the platforms
// together.
//
// The Discord adapter owns the bot session: slash commands drive the binding
// lifecycle (link redeems a binding code, unlink tears the pair down) and the
// message handler relays bound-channel traffic to LINE, publishing video and
// audio envelopes over the relay socket and pushing text and images through
// Notify directly. The LINE adapter owns the webhook server and the relay
// consumer: verified webhook events flow to Discord through the stored
// channel webhook, and consumed envelopes become LINE push messages.
//
// Both adapters take a flock single-instance lock, keep an in-memory cache of
// bound ids so the per-message hot path never touches the database, and shut
// down by canceling a context and awaiting their supervised goroutines.
package bridge
