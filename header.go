package blockfs

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/chunglabmit/blockfs/errors"
)

// magic identifies a directory file. headerVersion is the only
// version this package knows how to read or write.
var magic = [8]byte{'B', 'L', 'O', 'C', 'K', 'F', 'S', 0}

const headerVersion uint16 = 1

// header is the decoded form of a directory file's fixed preamble,
// everything preceding the index itself. See writeHeader/readHeader
// for the exact on-disk layout.
type header struct {
	volume Volume
	paths  []string // len == W
}

type countingCRCWriter struct {
	w   io.Writer
	crc uint32
}

func (c *countingCRCWriter) Write(p []byte) (int, error) {
	c.crc = crc32.Update(c.crc, crc32.IEEETable, p)
	return c.w.Write(p)
}

// writeHeader writes h's encoding to w, returning the running CRC32
// so the caller can extend it across the index before writing the
// trailer.
func writeHeader(w io.Writer, h header) (uint32, error) {
	cw := &countingCRCWriter{w: w, crc: 0}
	var buf [8]byte

	if _, err := cw.Write(magic[:]); err != nil {
		return 0, err
	}
	if err := putU16(cw, headerVersion); err != nil {
		return 0, err
	}
	if err := putU16(cw, uint16(h.volume.Dtype)); err != nil {
		return 0, err
	}
	for _, v := range []uint64{h.volume.X, h.volume.Y, h.volume.Z} {
		binary.LittleEndian.PutUint64(buf[:8], v)
		if _, err := cw.Write(buf[:8]); err != nil {
			return 0, err
		}
	}
	for _, v := range []uint32{h.volume.BX, h.volume.BY, h.volume.BZ} {
		if err := putU32(cw, v); err != nil {
			return 0, err
		}
	}
	if err := writeLenPrefixed(cw, []byte(h.volume.Codec)); err != nil {
		return 0, err
	}
	if err := writeLenPrefixed(cw, h.volume.CodecParams); err != nil {
		return 0, err
	}
	if err := putU16(cw, uint16(len(h.paths))); err != nil {
		return 0, err
	}
	for _, p := range h.paths {
		if err := writeLenPrefixed(cw, []byte(p)); err != nil {
			return 0, err
		}
	}
	return cw.crc, nil
}

func putU16(cw *countingCRCWriter, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := cw.Write(b[:])
	return err
}

func putU32(cw *countingCRCWriter, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := cw.Write(b[:])
	return err
}

func writeLenPrefixed(cw *countingCRCWriter, b []byte) error {
	if len(b) > 0xFFFF {
		return errors.E(errors.Invalid, "length-prefixed field too long")
	}
	if err := putU16(cw, uint16(len(b))); err != nil {
		return err
	}
	_, err := cw.Write(b)
	return err
}

// readHeader reads and validates a directory file's header from r,
// returning the decoded header and the running CRC32 so the caller
// can extend it across the index before checking the trailer.
func readHeader(r io.Reader) (header, uint32, error) {
	cr := &crcReader{r: r}
	var magicBuf [8]byte
	if _, err := io.ReadFull(cr, magicBuf[:]); err != nil {
		return header{}, 0, errors.E(errors.Integrity, "short read of magic", err)
	}
	if magicBuf != magic {
		return header{}, 0, errors.E(errors.Integrity, "bad magic")
	}
	version, err := readU16(cr)
	if err != nil {
		return header{}, 0, err
	}
	if version != headerVersion {
		return header{}, 0, errors.E(errors.Integrity, "unsupported directory file version")
	}
	dtypeCode, err := readU16(cr)
	if err != nil {
		return header{}, 0, err
	}
	var v Volume
	v.Dtype = Dtype(dtypeCode)
	if !v.Dtype.Valid() {
		return header{}, 0, errors.E(errors.Integrity, "unrecognised dtype code")
	}
	extents := make([]uint64, 3)
	for i := range extents {
		extents[i], err = readU64(cr)
		if err != nil {
			return header{}, 0, err
		}
	}
	v.X, v.Y, v.Z = extents[0], extents[1], extents[2]
	bextents := make([]uint32, 3)
	for i := range bextents {
		bextents[i], err = readU32(cr)
		if err != nil {
			return header{}, 0, err
		}
	}
	v.BX, v.BY, v.BZ = bextents[0], bextents[1], bextents[2]
	codecName, err := readLenPrefixed(cr)
	if err != nil {
		return header{}, 0, err
	}
	v.Codec = string(codecName)
	v.CodecParams, err = readLenPrefixed(cr)
	if err != nil {
		return header{}, 0, err
	}
	w, err := readU16(cr)
	if err != nil {
		return header{}, 0, err
	}
	paths := make([]string, w)
	for i := range paths {
		p, err := readLenPrefixed(cr)
		if err != nil {
			return header{}, 0, err
		}
		paths[i] = string(p)
	}
	return header{volume: v, paths: paths}, cr.crc, nil
}

type crcReader struct {
	r   io.Reader
	crc uint32
}

func (c *crcReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.crc = crc32.Update(c.crc, crc32.IEEETable, p[:n])
	}
	return n, err
}

func readU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.E(errors.Integrity, "short read", err)
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.E(errors.Integrity, "short read", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.E(errors.Integrity, "short read", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	n, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.E(errors.Integrity, "short read", err)
	}
	return b, nil
}
