// Package version provides the SAPI version string and banner helpers.
package version

import "fmt"

// Number is the SAPI version implemented by this library.
const Number = "1.0.0"

// prefix is prepended to the version number in log output.
const prefix = "SAPI: "

// String returns the full version string as it appears in the log banner.
func String() string {
	return prefix + Number
}

// Banner returns the startup banner lines printed by device binaries.
func Banner() []string {
	return []string{
		"=====================================",
		fmt.Sprintf("  %s", String()),
		"  Sensor dispatch and notification",
		"=====================================",
	}
}
