// Package console implements the operator console of linecast: an HTTP
// service where operators submit broadcast messages and watch connection
// lifecycle events live over WebSocket.
//
// The implementation is organized into specialized files for the observer
// hub, observers, routing, origin checks, rate limiting and HTTP handlers.
package console
