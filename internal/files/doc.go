// Package files provides file system operations and discovery utilities
// for oceancli.
//
// This package contains two main components:
//
// Discovery: expands the input paths of a job, resolving them against the
// input directory and replacing glob patterns by their matches in name order.
//
// Manager: creates output artifacts, making parent directories right before
// each write.
//
// Example usage:
//
//	discovery := files.NewDiscovery(cfg.Paths.InputDir)
//	inputs, err := discovery.Expand("glider/2024-*.csv")
//
//	manager := files.NewManager(logger)
//	err = manager.WriteFile(out, func(w io.Writer) error { ... })
package files
