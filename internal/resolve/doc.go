// Package resolve implements the version resolution engine.
//
// Given a target instant, it consumes a paginated listing of object versions
// and delete markers (key ascending, newest first within a key) and emits at
// most one revision per key: the revision visible at that instant. Only the
// records of the key split across a page boundary are held between pages.
package resolve
