// Package registry manages the directory of lock records.
//
// Each lock is a subdirectory named after the lock. Creating it with mkdir
// is the atomic step that takes the lock. Inside it:
//
//	info        "pid host", written right after the directory
//	owner.toml  token, process start time and command (optional)
//
// Both files are written to a temporary name and renamed into place, so a
// reader sees either no file or a complete one. Entries starting with a dot
// are not locks; the reapers' serialization file .reap.lock lives there.
package registry
