package blockfs

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/chunglabmit/blockfs/errors"
	"github.com/chunglabmit/blockfs/storage"
)

// PathTable returns the current BlockFile path table of the directory
// file at dirPath, in worker order. It is used by tools that need to
// know the existing worker count before constructing a replacement
// path table for Rebase.
func PathTable(ctx context.Context, provider storage.Provider, dirPath string) ([]string, error) {
	h, _, err := readDirectoryFile(ctx, provider, dirPath)
	if err != nil {
		return nil, err
	}
	return h.paths, nil
}

// Rebase rewrites dirPath's path table to reference newBlockPaths,
// leaving the volume parameters, index, and block data untouched.
// len(newBlockPaths) must equal the directory's current worker count
// W. Rebase is used to repair a directory file after its BlockFiles
// were relocated outside of Move or Copy (e.g. by an external backup
// tool), or to point the directory file at a renamed set of siblings.
func Rebase(ctx context.Context, provider storage.Provider, dirPath string, newBlockPaths []string) error {
	h, idx, err := readDirectoryFile(ctx, provider, dirPath)
	if err != nil {
		return err
	}
	if len(newBlockPaths) != len(h.paths) {
		return errors.E(errors.Invalid, "rebase requires exactly as many paths as the current worker count")
	}
	h.paths = newBlockPaths
	return writeDirectoryFile(dirPath, h, idx)
}

// Move renames srcPath and its BlockFiles to dstPath, alongside
// BlockFiles named by the same convention blockPath uses, rewriting
// the path table to match.
func Move(ctx context.Context, provider storage.Provider, srcPath, dstPath string) error {
	h, idx, err := readDirectoryFile(ctx, provider, srcPath)
	if err != nil {
		return err
	}
	srcDir := filepath.Dir(srcPath)
	newPaths := make([]string, len(h.paths))
	for i, p := range h.paths {
		oldBlockPath := filepath.Join(srcDir, p)
		newBlockPath := blockPath(dstPath, uint16(i))
		if err := provider.Rename(ctx, oldBlockPath, newBlockPath); err != nil {
			return err
		}
		newPaths[i] = filepath.Base(newBlockPath)
	}
	h.paths = newPaths
	if err := writeDirectoryFile(dstPath, h, idx); err != nil {
		return err
	}
	return provider.Remove(ctx, srcPath)
}

// Copy duplicates srcPath and its BlockFiles to dstPath, rewriting
// the copy's path table to match the new location. The source is
// left untouched.
func Copy(ctx context.Context, provider storage.Provider, srcPath, dstPath string) error {
	h, idx, err := readDirectoryFile(ctx, provider, srcPath)
	if err != nil {
		return err
	}
	srcDir := filepath.Dir(srcPath)
	newPaths := make([]string, len(h.paths))
	for i, p := range h.paths {
		oldBlockPath := filepath.Join(srcDir, p)
		newBlockPath := blockPath(dstPath, uint16(i))
		if err := copyFile(ctx, provider, oldBlockPath, newBlockPath); err != nil {
			return err
		}
		newPaths[i] = filepath.Base(newBlockPath)
	}
	h.paths = newPaths
	return writeDirectoryFile(dstPath, h, idx)
}

func copyFile(ctx context.Context, provider storage.Provider, srcPath, dstPath string) (err error) {
	r, err := provider.OpenReader(ctx, srcPath)
	if err != nil {
		return err
	}
	defer errors.CleanUp(r.Close, &err)

	size, err := r.Size(ctx)
	if err != nil {
		return err
	}
	buf := make([]byte, size)
	if _, err := r.ReadAt(ctx, buf, 0); err != nil {
		return err
	}

	w, err := provider.Create(ctx, dstPath)
	if err != nil {
		return err
	}
	defer errors.CleanUpCtx(ctx, w.Close, &err)

	_, err = w.Append(ctx, buf)
	return err
}

// readDirectoryFile reads and validates a directory file's header and
// index, without opening any of its BlockFiles. It is the shared
// implementation behind Open, Rebase, Move, and Copy, none of which
// need to read block data.
func readDirectoryFile(ctx context.Context, provider storage.Provider, path string) (header, *Index, error) {
	if err := recoverTmp(ctx, provider, path); err != nil {
		return header{}, nil, err
	}
	r, err := provider.OpenReader(ctx, path)
	if err != nil {
		return header{}, nil, err
	}
	defer r.Close()
	size, err := r.Size(ctx)
	if err != nil {
		return header{}, nil, err
	}
	data := make([]byte, size)
	if _, err := r.ReadAt(ctx, data, 0); err != nil {
		return header{}, nil, err
	}
	br := bytes.NewReader(data)
	h, crc, err := readHeader(br)
	if err != nil {
		return header{}, nil, err
	}
	var lenBuf [8]byte
	if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
		return header{}, nil, errors.E(errors.Integrity, "truncated index length", err)
	}
	crc = crc32.Update(crc, crc32.IEEETable, lenBuf[:])
	indexLen := binary.LittleEndian.Uint64(lenBuf[:])
	nx, ny, nz := h.volume.GridExtent()
	if uint64(nx)*uint64(ny)*uint64(nz) != indexLen {
		return header{}, nil, errors.E(errors.Integrity, "index length does not match volume grid")
	}
	indexBytes := make([]byte, indexLen*entrySize)
	if _, err := io.ReadFull(br, indexBytes); err != nil {
		return header{}, nil, errors.E(errors.Integrity, "truncated index", err)
	}
	crc = crc32.Update(crc, crc32.IEEETable, indexBytes)
	var trailer [4]byte
	if _, err := io.ReadFull(br, trailer[:]); err != nil {
		return header{}, nil, errors.E(errors.Integrity, "truncated trailer", err)
	}
	if binary.LittleEndian.Uint32(trailer[:]) != crc {
		return header{}, nil, errors.E(errors.Integrity, "directory file CRC mismatch")
	}
	idx, err := DeserializeIndex(bytes.NewReader(indexBytes), nx, ny, nz)
	if err != nil {
		return header{}, nil, err
	}
	return h, idx, nil
}

// recoverTmp implements the crash-recovery rule for persist's and
// writeDirectoryFile's atomic <path>.tmp-then-rename write: if
// <path>.tmp exists alone, the rename step never ran (or didn't
// finish), so the tmp file holds the only complete copy and is
// promoted to path; if both exist, the rename already completed (or
// path predates any write attempt) and path wins, with the leftover
// tmp discarded. If neither exists this is a no-op; OpenReader(path)
// will report the real error (NotExist or otherwise).
func recoverTmp(ctx context.Context, provider storage.Provider, path string) error {
	tmpPath := path + ".tmp"
	if !fileExists(ctx, provider, tmpPath) {
		return nil
	}
	if fileExists(ctx, provider, path) {
		return provider.Remove(ctx, tmpPath)
	}
	return provider.Rename(ctx, tmpPath, path)
}

// fileExists reports whether name can be opened and sized for
// reading. OpenReader alone is not sufficient: storage.Provider
// implementations may open lazily (e.g. S3Provider), deferring any
// round-trip to the backing store until the first Size or ReadAt
// call.
func fileExists(ctx context.Context, provider storage.Provider, name string) bool {
	r, err := provider.OpenReader(ctx, name)
	if err != nil {
		return false
	}
	defer r.Close()
	_, err = r.Size(ctx)
	return err == nil
}

// writeDirectoryFile atomically writes h and idx to path, in the
// same literal-<path>.tmp-then-rename manner as Directory.persist.
func writeDirectoryFile(path string, h header, idx *Index) error {
	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return errors.E(errors.Unavailable, "rebase", err)
	}
	tmpName := path + ".tmp"
	tmp, err := os.OpenFile(tmpName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return errors.E(errors.Unavailable, "rebase", err)
	}
	crc, err := writeHeader(tmp, h)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.E(errors.Unavailable, "rebase write header", err)
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], idx.Len())
	if _, err := tmp.Write(lenBuf[:]); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.E(errors.Unavailable, "rebase write index length", err)
	}
	crc = crc32.Update(crc, crc32.IEEETable, lenBuf[:])
	cw := &countingCRCWriter{w: tmp, crc: crc}
	if err := idx.Serialize(cw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], cw.crc)
	if _, err := tmp.Write(trailer[:]); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.E(errors.Unavailable, "rebase write trailer", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.E(errors.Unavailable, "rebase sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.E(errors.Unavailable, "rebase close", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.E(errors.Unavailable, "rebase rename", err)
	}
	return nil
}
