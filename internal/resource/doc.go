// Package resource throttles the long-running, full-container operations:
// enumeration scans and exports. Interactive reads and writes are never
// throttled.
package resource
