// Package pkg provides shared utilities for the usbfsd device stack.
//
// This package contains common functionality used by the engine, the
// controller HALs and the command-line tools, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for USB protocol and driver errors
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with USB-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentEngine, "device configured", "config", 1)
//
// Console programs call [SetupLogger] once to install a colourised handler
// when attached to a terminal.
//
// # Errors
//
// Common errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrNotReady) {
//	    // endpoint still owned by the controller, retry later
//	}
package pkg
