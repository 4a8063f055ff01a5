// Package lineapi holds the REST clients for the LINE platform.
//
// Two surfaces are wrapped: the Messaging API (replies, pushes, group and
// member lookups, message content download) and LINE Notify (plain text and
// image posts against a per-subscription token). Both clients carry explicit
// HTTP timeouts and wrap non-2xx responses with the response body for
// diagnostics.
//
// Display names coming back from the platform are NFC-normalized before they
// reach the rest of the bridge, so downstream comparisons and rendering see a
// single canonical form.
package lineapi
