// Package registry implements the sensor registration table.
//
// A fixed number of heterogeneous sensors is registered once at startup,
// each described by a device type and four callbacks (init, read, read
// config, write config). The table assigns a small integer SensorID that
// all later lookups use; entries are never removed or mutated after
// registration. The table is append-only up to capacity, then frozen.
package registry
