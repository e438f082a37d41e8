package types

// Kind tags a child or an attribute record as describing a file or a
// directory. The numeric values are the archive's on-disk tag bytes.
type Kind uint8

const (
	KindDirectory Kind = 0
	KindFile      Kind = 1
)

func (k Kind) String() string {
	if k == KindFile {
		return "file"
	}
	return "directory"
}

// Placeholder values for attribute fields that are not persisted in the
// archive. They are filled in whenever an Attribute is built or decoded.
const (
	PlaceholderNlink uint32 = 1
	PlaceholderUID   uint32 = 501
	PlaceholderGID   uint32 = 20
	PlaceholderRdev  uint32 = 0
	PlaceholderFlags uint32 = 0
)

// Timespec is a seconds + nanoseconds timestamp, as stored in the archive.
type Timespec struct {
	Sec  int64
	Nsec int32
}

// Child is one entry of a directory's ordered child list.
type Child struct {
	ID   uint64
	Kind Kind
}

// Directory is a directory node. The root's ParentID is the mount-root id.
type Directory struct {
	Name     string
	ID       uint64
	ParentID uint64
	Children []Child
	IsRoot   bool
}

// File is a regular file node with its full content.
type File struct {
	Name    string
	ID      uint64
	Content []byte
}

// Attribute holds the metadata served for one node id. Nlink, UID, GID,
// Rdev, Flags and Crtime are never written to the archive.
type Attribute struct {
	ID    uint64
	Size  uint64
	Atime Timespec
	Mtime Timespec
	Ctime Timespec
	Perm  uint16
	Kind  Kind

	Nlink  uint32
	UID    uint32
	GID    uint32
	Rdev   uint32
	Flags  uint32
	Crtime Timespec
}

// WithPlaceholders returns a copy of a with the non-persisted fields reset
// to their fixed load-time values.
func (a Attribute) WithPlaceholders() Attribute {
	a.Nlink = PlaceholderNlink
	a.UID = PlaceholderUID
	a.GID = PlaceholderGID
	a.Rdev = PlaceholderRdev
	a.Flags = PlaceholderFlags
	a.Crtime = a.Ctime
	return a
}

// Chunk is a content-defined slice of a file's data, used to estimate how
// much of an archive's content is duplicated. Data aliases the file content.
type Chunk struct {
	Hash string
	Size int64
	Data []byte
}

// DedupReport summarises the chunk-level duplication of an archive.
type DedupReport struct {
	Files        int
	Chunks       int
	UniqueChunks int
	TotalBytes   int64
	UniqueBytes  int64
}
