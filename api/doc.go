// Package api defines the HTTP request and response types of the qaflow
// service. Handlers live in the handlers subpackage.
package api
