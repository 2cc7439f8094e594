// Package tools is the dispatch core of the server: a registry of named,
// schema-described operations, a synchronous dispatcher that wraps one
// invocation in a response envelope, and a streaming dispatcher that wraps
// one invocation in an ordered sequence of lifecycle events.
//
// The registry is built once at process start by NewCatalog and injected
// into both dispatchers; it is never mutated afterward. Handlers are thin
// wrappers around the batch aggregator, the cache and the upstream provider.
package tools
