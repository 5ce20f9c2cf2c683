// Package httputil holds the JSON response helpers used by the ops server
// handlers so every endpoint writes the same envelope.
package httputil
