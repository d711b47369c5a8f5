// Package flock provides exclusive, non-blocking file locks on both Unix
// and Windows. The checkpoint store locks each run's lock file around every
// read-modify-write so two crucible processes cannot corrupt a run.
//
// Usage:
//
//	file, _ := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
//	if err := flock.Exclusive(file.Fd()); err != nil {
//	    // Lock not acquired - another process holds the run
//	}
//	defer flock.Unlock(file.Fd())
package flock
