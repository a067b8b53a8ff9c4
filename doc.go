// Package nestjar provides a nested-archive loader for self-contained
// executable ZIP/JAR archives that embed their dependencies as uncompressed
// inner archives.
//
// Given one outer archive on disk, the package parses the ZIP central
// directory of the outer archive and of every eligible inner archive
// without extracting anything to disk. Each inner archive becomes a
// first-class view over a sub-range of the outer file, addressable through
// composite jar URLs (see the jarurl subpackage) and resolvable as an
// ordered classpath (see the classpath subpackage).
//
// # Quick Start
//
// Open an archive and stream a deeply nested resource:
//
//	a, err := nestjar.Open("app.jar")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	lib, err := a.NestedByName("lib/foo.jar")
//	if err != nil {
//	    return err
//	}
//	defer lib.Close()
//
//	r, err := lib.InputStream("com/x/Y.class")
//
// # Format contract
//
// Inner archives must be stored uncompressed (method 0); opening a
// DEFLATE-compressed entry as a nested archive fails with
// ErrNestedEntryCompressed. Executable prefix bytes before the outer
// archive are supported; all offsets are adjusted by the computed archive
// start.
//
// # Concurrency
//
// Archives are safe for concurrent readers once constructed. Views rooted
// in the same outer file share one reference-counted descriptor; the file
// closes when the outermost archive is closed, invalidating every derived
// view.
package nestjar
