// Package storage abstracts the byte-addressable append-only files
// that back a directory's BlockFiles, and the reads of its directory
// file, so that the core engine can run against either a local
// filesystem or an S3 bucket. The directory file itself is always
// written to the local filesystem: Directory.Flush and
// Rebase/Move/Copy write it with the os package, not through a
// Provider.
package storage

import (
	"context"
	"io"
)

// Writer is an append-only destination: the only way to add bytes is
// to append them at the current end of the file. Implementations must
// serialize concurrent Append calls themselves; callers of a single
// Writer are expected to call Append from one goroutine at a time
// (the engine guarantees this by giving each worker exclusive
// ownership of one BlockFile's Writer).
type Writer interface {
	// Append writes p at the file's current end, returning the offset
	// at which p begins.
	Append(ctx context.Context, p []byte) (offset uint64, err error)

	// Size returns the number of bytes appended so far.
	Size() uint64

	// Close finalizes the file. After Close, Append must not be
	// called; the file's content becomes visible to OpenReader.
	Close(ctx context.Context) error
}

// Reader provides random access to a file's bytes.
type Reader interface {
	io.Closer
	// ReadAt reads len(p) bytes starting at offset off.
	ReadAt(ctx context.Context, p []byte, off uint64) (int, error)
	// Size returns the file's total length in bytes.
	Size(ctx context.Context) (uint64, error)
}

// Provider creates and opens the files that make up a directory: the
// directory file and the BlockFiles it indexes.
type Provider interface {
	// Create creates a new, empty file for writing, truncating any
	// existing content at name.
	Create(ctx context.Context, name string) (Writer, error)

	// OpenWriter reopens an existing file for appending, positioned at
	// its current end. It is used to resume a BlockFile after a
	// process restart; maxLen truncates away any bytes beyond the
	// last offset the directory's index has committed, discarding a
	// partial append left by a crash.
	OpenWriter(ctx context.Context, name string, maxLen uint64) (Writer, error)

	// OpenReader opens an existing file for random-access reads.
	OpenReader(ctx context.Context, name string) (Reader, error)

	// Rename moves oldName to newName, replacing any existing file at
	// newName.
	Rename(ctx context.Context, oldName, newName string) error

	// Remove deletes name, if it exists.
	Remove(ctx context.Context, name string) error
}
