// Package handlers implements the HTTP handlers of the qaflow service:
// run submission and retrieval, script download, live event streaming
// over WebSocket, and health endpoints.
package handlers
