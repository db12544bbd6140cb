// Package shared groups helpers used across the oceancli packages that do not
// belong to a single layer.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//	- Sensor fixtures (seabed, glider ocean, glider weather, spikes, GeoJSON)
//	  written to per-test temporary directories, optionally snappy compressed
//	- A capturing slog handler with assertion helpers
//
// Example usage:
//
//	func TestExtract(t *testing.T) {
//	    fx := testutil.NewSensorFixtures(t)
//	    path := fx.WriteFile("seabed.csv", testutil.SeabedCSV)
//	    logger, logs := testutil.NewTestLogger(t)
//	    ...
//	}
//
// testutil must not import the packages it helps test, so fixtures are plain
// text rather than frames.
package shared
