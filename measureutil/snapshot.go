// Package measureutil is a thin forwarding shim over internal/measure, kept
// as its own package so callers such as cmd/dispute-sweep depend on a
// stable, non-internal import path rather than reaching into internal/.
package measureutil

import "archimedes/internal/measure"

// SnapshotAndReset returns the global call-count map and clears it.
func SnapshotAndReset() map[string]uint64 {
	return measure.Global.SnapshotAndReset()
}
