package flaxkv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/flaxkv/flaxkv/pkg/fs"
)

// headerFileName is the metadata file written alongside the engine's own
// files in a store's directory.
const headerFileName = "HEADER"

// headerMagic identifies a FlaxKV header file and catches someone pointing
// Open at an unrelated directory.
var headerMagic = [8]byte{'F', 'X', 'K', 'V', '0', '0', '0', '1'}

// headerVersion is the on-disk header layout version, independent of the
// codec version below.
const headerVersion uint32 = 1

// codecVersion changes only when EncodeKey/EncodeValue's wire format
// changes in an incompatible way.
const codecVersion uint32 = 1

// headerSize is the fixed on-disk size: 8 (magic) + 4 (header version) +
// 1 (engine kind) + 4 (codec version) + 8 (created-at nanos) + 4 (crc32c).
const headerSize = 8 + 4 + 1 + 4 + 8 + 4

// header is the store's small persistent metadata record, written once at
// creation and checked on every Open.
type header struct {
	EngineKind  EngineKind
	CodecVer    uint32
	CreatedAtNS int64
}

// crc32cTable is the Castagnoli table, the variant used by most modern
// storage formats (it's what bbolt's and badger's own checksums use
// internally).
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

func (h header) encode() []byte {
	buf := make([]byte, 0, headerSize)
	buf = append(buf, headerMagic[:]...)
	buf = binary.BigEndian.AppendUint32(buf, headerVersion)
	buf = append(buf, byte(h.EngineKind))
	buf = binary.BigEndian.AppendUint32(buf, h.CodecVer)
	buf = binary.BigEndian.AppendUint64(buf, uint64(h.CreatedAtNS))

	sum := crc32.Checksum(buf, crc32cTable)

	return binary.BigEndian.AppendUint32(buf, sum)
}

var (
	// ErrHeaderCorrupt means the header file exists but failed its CRC32C
	// check or is the wrong size.
	ErrHeaderCorrupt = errors.New("flaxkv: header corrupt")

	// ErrHeaderMismatch means the header is well-formed but describes an
	// incompatible database (different engine kind or codec version) for
	// a non-Rebuild Open.
	ErrHeaderMismatch = errors.New("flaxkv: header does not match config")

	errHeaderNotMagic = errors.New("flaxkv: not a flaxkv header file")
)

func decodeHeader(b []byte) (header, error) {
	if len(b) != headerSize {
		return header{}, fmt.Errorf("%w: size %d, want %d", ErrHeaderCorrupt, len(b), headerSize)
	}

	if !bytes.Equal(b[:8], headerMagic[:]) {
		return header{}, errHeaderNotMagic
	}

	sum := binary.BigEndian.Uint32(b[headerSize-4:])

	if crc32.Checksum(b[:headerSize-4], crc32cTable) != sum {
		return header{}, fmt.Errorf("%w: checksum mismatch", ErrHeaderCorrupt)
	}

	ver := binary.BigEndian.Uint32(b[8:12])
	if ver != headerVersion {
		return header{}, fmt.Errorf("%w: header version %d, want %d", ErrHeaderCorrupt, ver, headerVersion)
	}

	return header{
		EngineKind:  EngineKind(b[12]),
		CodecVer:    binary.BigEndian.Uint32(b[13:17]),
		CreatedAtNS: int64(binary.BigEndian.Uint64(b[17:25])),
	}, nil
}

// writeHeader atomically writes h to dir/HEADER via [fs.AtomicWriter], the
// teacher's own rename+fsync+dir-fsync seam.
func writeHeader(dir string, h header) error {
	w := fs.NewAtomicWriter(fs.NewReal())

	return w.WriteWithDefaults(filepath.Join(dir, headerFileName), bytes.NewReader(h.encode()))
}

// readHeader reads dir/HEADER. A missing file is reported via
// os.IsNotExist on the returned error, not a sentinel, so callers can tell
// "no header yet" (fresh directory) from "header corrupt".
func readHeader(dir string) (header, error) {
	b, err := os.ReadFile(filepath.Join(dir, headerFileName))
	if err != nil {
		return header{}, err
	}

	return decodeHeader(b)
}

func newHeader(kind EngineKind, now time.Time) header {
	return header{EngineKind: kind, CodecVer: codecVersion, CreatedAtNS: now.UnixNano()}
}
