package lib

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gingerrexayers/rpack-go/internal/rpack/types"
)

// Magic is the 6-byte literal every archive starts with.
const Magic = "rpack0"

// Fixed record sizes used for bounds checks.
const (
	headerSize    = len(Magic) + 3*8
	attributeSize = 8 + 8 + 3*(8+4) + 2 + 1
	minDirRecord  = 8 + 8 + 8 + 8 + 1
	minFileRecord = 8 + 8 + 8
)

const utf8Replacement = "�"

// ErrMalformed is returned (wrapped) by Decode for any buffer that is not a
// complete, well-formed archive.
var ErrMalformed = errors.New("malformed archive")

// Encode serializes the archive into its binary form. Records are written in
// slice order; the id indexes are not persisted.
func Encode(a *Archive) []byte {
	size := headerSize + len(a.Attributes)*attributeSize
	for i := range a.Directories {
		size += minDirRecord + len(a.Directories[i].Name) + 9*len(a.Directories[i].Children)
	}
	for i := range a.Files {
		size += minFileRecord + len(a.Files[i].Name) + len(a.Files[i].Content)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, Magic...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(a.Directories)))
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(a.Files)))
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(a.Attributes)))

	for i := range a.Directories {
		buf = appendDirectory(buf, &a.Directories[i])
	}
	for i := range a.Files {
		buf = appendFile(buf, &a.Files[i])
	}
	for i := range a.Attributes {
		buf = appendAttribute(buf, &a.Attributes[i])
	}
	return buf
}

func appendDirectory(buf []byte, d *types.Directory) []byte {
	buf = appendString(buf, d.Name)
	buf = binary.BigEndian.AppendUint64(buf, d.ID)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(d.Children)))
	for _, c := range d.Children {
		buf = binary.BigEndian.AppendUint64(buf, c.ID)
	}
	for _, c := range d.Children {
		buf = append(buf, byte(c.Kind))
	}
	buf = binary.BigEndian.AppendUint64(buf, d.ParentID)
	return append(buf, boolByte(d.IsRoot))
}

func appendFile(buf []byte, f *types.File) []byte {
	buf = appendString(buf, f.Name)
	buf = binary.BigEndian.AppendUint64(buf, f.ID)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(f.Content)))
	return append(buf, f.Content...)
}

func appendAttribute(buf []byte, a *types.Attribute) []byte {
	buf = binary.BigEndian.AppendUint64(buf, a.ID)
	buf = binary.BigEndian.AppendUint64(buf, a.Size)
	for _, ts := range [3]types.Timespec{a.Atime, a.Mtime, a.Ctime} {
		buf = binary.BigEndian.AppendUint64(buf, uint64(ts.Sec))
		buf = binary.BigEndian.AppendUint32(buf, uint32(ts.Nsec))
	}
	buf = binary.BigEndian.AppendUint16(buf, a.Perm)
	return append(buf, byte(a.Kind))
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(s)))
	return append(buf, s...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Decode parses an archive. On any error the returned archive is nil; a
// partially decoded archive is never exposed.
//
// Directory names are decoded leniently (invalid UTF-8 sequences become
// U+FFFD) so trees from arbitrary filesystems still load. File names must be
// valid UTF-8. Bytes after the last attribute record are ignored.
func Decode(data []byte) (*Archive, error) {
	r := &reader{buf: data}

	magic, err := r.bytes(uint64(len(Magic)), "magic")
	if err != nil {
		return nil, err
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrMalformed, magic)
	}

	var counts [3]uint64
	for i, field := range [3]string{"directory count", "file count", "attribute count"} {
		if counts[i], err = r.uint64(field); err != nil {
			return nil, err
		}
	}

	// Never trust a count for preallocation beyond what the buffer can hold.
	dirs := make([]types.Directory, 0, r.capFor(counts[0], minDirRecord))
	for i := uint64(0); i < counts[0]; i++ {
		d, err := r.directory()
		if err != nil {
			return nil, fmt.Errorf("directory record %d: %w", i, err)
		}
		dirs = append(dirs, d)
	}

	files := make([]types.File, 0, r.capFor(counts[1], minFileRecord))
	for i := uint64(0); i < counts[1]; i++ {
		f, err := r.file()
		if err != nil {
			return nil, fmt.Errorf("file record %d: %w", i, err)
		}
		files = append(files, f)
	}

	attrs := make([]types.Attribute, 0, r.capFor(counts[2], attributeSize))
	for i := uint64(0); i < counts[2]; i++ {
		a, err := r.attribute()
		if err != nil {
			return nil, fmt.Errorf("attribute record %d: %w", i, err)
		}
		attrs = append(attrs, a)
	}

	return NewArchive(types.Timespec{}, dirs, files, attrs), nil
}

// reader is a bounds-checked cursor over an archive buffer.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() uint64 {
	return uint64(len(r.buf) - r.pos)
}

func (r *reader) capFor(count uint64, recordSize int) int {
	if limit := r.remaining() / uint64(recordSize); count > limit {
		return int(limit)
	}
	return int(count)
}

func (r *reader) bytes(n uint64, field string) ([]byte, error) {
	if n > r.remaining() {
		return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d, %d left",
			ErrMalformed, field, n, r.pos, r.remaining())
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *reader) uint64(field string) (uint64, error) {
	b, err := r.bytes(8, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) uint32(field string) (uint32, error) {
	b, err := r.bytes(4, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) uint16(field string) (uint16, error) {
	b, err := r.bytes(2, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) flag(field string) (byte, error) {
	b, err := r.bytes(1, field)
	if err != nil {
		return 0, err
	}
	if b[0] > 1 {
		return 0, fmt.Errorf("%w: %s has invalid value %d at offset %d", ErrMalformed, field, b[0], r.pos-1)
	}
	return b[0], nil
}

func (r *reader) string(field string) ([]byte, error) {
	n, err := r.uint64(field + " length")
	if err != nil {
		return nil, err
	}
	return r.bytes(n, field)
}

func (r *reader) timespec(field string) (types.Timespec, error) {
	sec, err := r.uint64(field + " seconds")
	if err != nil {
		return types.Timespec{}, err
	}
	nsec, err := r.uint32(field + " nanoseconds")
	if err != nil {
		return types.Timespec{}, err
	}
	return types.Timespec{Sec: int64(sec), Nsec: int32(nsec)}, nil
}

func (r *reader) directory() (types.Directory, error) {
	var d types.Directory

	name, err := r.string("directory name")
	if err != nil {
		return d, err
	}
	d.Name = strings.ToValidUTF8(string(name), utf8Replacement)

	if d.ID, err = r.uint64("directory id"); err != nil {
		return d, err
	}
	count, err := r.uint64("child count")
	if err != nil {
		return d, err
	}
	// Each child costs 9 bytes (id + kind tag).
	if count > r.remaining()/9 {
		return d, fmt.Errorf("%w: child count %d exceeds remaining %d bytes", ErrMalformed, count, r.remaining())
	}
	d.Children = make([]types.Child, count)
	for i := range d.Children {
		if d.Children[i].ID, err = r.uint64("child id"); err != nil {
			return d, err
		}
	}
	for i := range d.Children {
		tag, err := r.flag("child kind")
		if err != nil {
			return d, err
		}
		d.Children[i].Kind = types.Kind(tag)
	}

	if d.ParentID, err = r.uint64("parent id"); err != nil {
		return d, err
	}
	isRoot, err := r.flag("root flag")
	if err != nil {
		return d, err
	}
	d.IsRoot = isRoot == 1
	return d, nil
}

func (r *reader) file() (types.File, error) {
	var f types.File

	name, err := r.string("file name")
	if err != nil {
		return f, err
	}
	if !utf8.Valid(name) {
		return f, fmt.Errorf("%w: file name %q is not valid UTF-8", ErrMalformed, name)
	}
	f.Name = string(name)

	if f.ID, err = r.uint64("file id"); err != nil {
		return f, err
	}
	content, err := r.string("file content")
	if err != nil {
		return f, err
	}
	// Copy so the archive does not pin the caller's buffer.
	f.Content = append([]byte(nil), content...)
	return f, nil
}

func (r *reader) attribute() (types.Attribute, error) {
	var a types.Attribute
	var err error

	if a.ID, err = r.uint64("attribute id"); err != nil {
		return a, err
	}
	if a.Size, err = r.uint64("size"); err != nil {
		return a, err
	}
	if a.Atime, err = r.timespec("atime"); err != nil {
		return a, err
	}
	if a.Mtime, err = r.timespec("mtime"); err != nil {
		return a, err
	}
	if a.Ctime, err = r.timespec("ctime"); err != nil {
		return a, err
	}
	if a.Perm, err = r.uint16("permission bits"); err != nil {
		return a, err
	}
	kind, err := r.flag("attribute kind")
	if err != nil {
		return a, err
	}
	a.Kind = types.Kind(kind)
	return a.WithPlaceholders(), nil
}
