// Package app wires configuration, logging, metrics, the cache backend, the
// upstream provider client and the operation catalog into a running HTTP
// server with graceful shutdown.
package app
