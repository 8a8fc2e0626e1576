// Package common provides shared interfaces used throughout lockdir.
//
// # Core Components
//
//   - Logger: the logging methods the lock, reaper and runner packages call
//   - NopLogger: a Logger that discards everything
//
// # Usage
//
// The Logger interface is injected into components that need to report
// progress or failures:
//
//	reaper := reaper.New(reg, reaper.Options{Logger: log})
//
// # Design Principles
//
//   - Minimal Dependencies: common has no dependencies on other internal packages
//   - Interface-Based Design: library packages accept common.Logger, the CLI
//     supplies logger.DefaultLogger
package common
