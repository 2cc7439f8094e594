// Package http binds the dispatch core to HTTP: a JSON request/response
// surface for listing and invoking operations, and a server-sent-events
// surface that exposes the streaming dispatcher's lifecycle events.
package http
