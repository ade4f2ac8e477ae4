package blockfs

// Entry is a single index record: the location of one block's encoded
// bytes within one of the writer pool's BlockFiles. Its binary
// encoding is fixed at 14 bytes; see index.go.
type Entry struct {
	// FileID is the index, in [0, W), of the BlockFile holding this
	// block's bytes.
	FileID uint16
	// Offset is the byte offset within that BlockFile at which the
	// block's encoded bytes begin.
	Offset uint64
	// NBytes is the length in bytes of the block's encoded form.
	NBytes uint32
}

// entrySize is the fixed on-disk size of an Entry, in bytes.
const entrySize = 2 + 8 + 4

// Absent reports whether e denotes an unwritten cell. A zero Entry
// (the dense index's initial state) is always absent, since a real
// entry's NBytes is never zero: every codec's Encode is required to
// produce a non-empty byte run, even for an empty block.
func (e Entry) Absent() bool {
	return e.NBytes == 0
}
