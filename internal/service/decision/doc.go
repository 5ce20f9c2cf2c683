// Package decision computes campaign health metrics and applies the
// auto-pause policy.
package decision
