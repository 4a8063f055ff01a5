// Package subscription persists channel/group bindings and the short-lived
// pairing codes that authorize creating them.
//
// The Store owns both record types exclusively and is backed by SQLite so
// bindings survive process restarts. Binding codes expire five minutes after
// issuance; expiry is checked lazily at redemption rather than swept by a
// background task. Redemption is transactional: concurrent attempts on the
// same code yield exactly one winner.
package subscription
