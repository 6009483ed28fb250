package kvs

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/ValentinKolb/kvs/lib/db"
)

// Record format on disk (little endian):
// [crc32(4)][op(1)][keysize(4)][valuesize(4)][key][value]
// The crc covers everything after itself.
const (
	headerSize = 4 + 1 + 4 + 4

	// maxFieldSize guards recovery against allocating garbage lengths from a torn header
	maxFieldSize = 1 << 30
)

type opType byte

const (
	opSet    opType = 1
	opRemove opType = 2
)

func (o opType) String() string {
	switch o {
	case opSet:
		return "set"
	case opRemove:
		return "remove"
	default:
		return fmt.Sprintf("op(%d)", byte(o))
	}
}

// command is the only thing ever appended to a generation: a Set or a Remove tombstone.
type command struct {
	op    opType
	key   string
	value []byte
}

// LogPointer addresses one encoded command inside one generation file
type LogPointer struct {
	Gen    uint64
	Offset int64
	Len    int64
}

var (
	// errTornRecord marks a record cut off by a crash in the middle of a write
	errTornRecord = db.NewError(db.RetCSerializationError, "torn log record")

	// errCorruptRecord marks a record whose checksum or header is invalid
	errCorruptRecord = db.NewError(db.RetCSerializationError, "corrupt log record")
)

// encode serializes the command into a new buffer
func (c command) encode() []byte {
	buf := make([]byte, headerSize+len(c.key)+len(c.value))
	buf[4] = byte(c.op)
	binary.LittleEndian.PutUint32(buf[5:9], uint32(len(c.key)))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(len(c.value)))
	copy(buf[headerSize:], c.key)
	copy(buf[headerSize+len(c.key):], c.value)
	binary.LittleEndian.PutUint32(buf[0:4], crc32.ChecksumIEEE(buf[4:]))
	return buf
}

// decodeCommand parses exactly one encoded command.
// The value of the returned command aliases buf.
func decodeCommand(buf []byte) (command, error) {
	if len(buf) < headerSize {
		return command{}, errTornRecord
	}

	op, keySize, valueSize, err := parseHeader(buf[:headerSize])
	if err != nil {
		return command{}, err
	}
	if int64(len(buf)) != int64(headerSize)+keySize+valueSize {
		return command{}, errCorruptRecord
	}
	if crc32.ChecksumIEEE(buf[4:]) != binary.LittleEndian.Uint32(buf[0:4]) {
		return command{}, errCorruptRecord
	}

	keyEnd := headerSize + int(keySize)
	cmd := command{op: op, key: string(buf[headerSize:keyEnd])}
	if op == opSet {
		cmd.value = buf[keyEnd:]
	}
	return cmd, nil
}

// parseHeader validates a record header without looking at the payload
func parseHeader(header []byte) (opType, int64, int64, error) {
	op := opType(header[4])
	if op != opSet && op != opRemove {
		return 0, 0, 0, errCorruptRecord
	}
	keySize := int64(binary.LittleEndian.Uint32(header[5:9]))
	valueSize := int64(binary.LittleEndian.Uint32(header[9:13]))
	if keySize > maxFieldSize || valueSize > maxFieldSize || (op == opRemove && valueSize != 0) {
		return 0, 0, 0, errCorruptRecord
	}
	return op, keySize, valueSize, nil
}

// readCommand reads the next record from a sequential stream.
// It returns io.EOF on a clean end of stream, errTornRecord if the stream ends inside
// a record and errCorruptRecord if the record fails validation.
func readCommand(r *bufio.Reader) (command, int64, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) {
			return command{}, 0, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return command{}, 0, errTornRecord
		}
		return command{}, 0, db.WrapError(db.RetCIoError, err, "failed to read record header")
	}

	_, keySize, valueSize, err := parseHeader(header)
	if err != nil {
		return command{}, 0, err
	}

	buf := make([]byte, int64(headerSize)+keySize+valueSize)
	copy(buf, header)
	if _, err := io.ReadFull(r, buf[headerSize:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return command{}, 0, errTornRecord
		}
		return command{}, 0, db.WrapError(db.RetCIoError, err, "failed to read record")
	}

	cmd, err := decodeCommand(buf)
	if err != nil {
		return command{}, 0, err
	}
	return cmd, int64(len(buf)), nil
}
