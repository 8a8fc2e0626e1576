// Package reaper removes lock directories whose owning process has died.
//
// Only local locks are reaped: liveness can only be checked on the host that
// wrote the info file. Locks with an unreadable or malformed info file are
// reported as errors and never removed, since their owner is unknown. Each
// lock is handled independently and the pass always runs to the end; the
// Report's ExitStatus counts what was skipped or failed.
//
// Concurrent reapers, and acquirers reclaiming a dead owner's lock, take the
// registry's advisory reaper lock first. Plain acquirers never wait on it.
package reaper
