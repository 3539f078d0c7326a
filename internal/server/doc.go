// Package server provides HTTP server lifecycle management: non-blocking
// startup, graceful shutdown, and SIGINT/SIGTERM signal handling.
package server
