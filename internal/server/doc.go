// Package server is the HTTP boundary of relaychat.
//
// It validates inbound requests, hands them to the relay and presence
// registries and renders their results as JSON. Long-poll readers and
// WebSocket stream clients both park on the same relay.
package server
