// Package agent implements the two model-backed stages of the QA pipeline:
// the script writer, which turns a manual test case into an executable
// Playwright/pytest script, and the report validator, which reads the
// execution transcript and classifies the run as pass or fail.
package agent
