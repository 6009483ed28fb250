package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/kvs/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
// [type(1)][flags(1)] followed by the fields flagged as present in a fixed order.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey   byte = 1 << 0
	hasValue byte = 1 << 1
	hasOk    byte = 1 << 2
	hasErr   byte = 1 << 3
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags byte = 0
	pos := 2 // Start after MsgType and flags

	// Handle Key
	if msg.Key != "" {
		flags |= hasKey
		pos = putField(result, pos, []byte(msg.Key))
	}

	// Handle Value (an empty value is still present)
	if msg.Value != nil {
		flags |= hasValue
		pos = putField(result, pos, msg.Value)
	}

	// Handle Ok, the flag alone carries the value
	if msg.Ok {
		flags |= hasOk
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		putField(result, pos, []byte(msg.Err))
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := data[1]
	if flags&^(hasKey|hasValue|hasOk|hasErr) != 0 {
		return fmt.Errorf("unknown flags %08b", flags)
	}
	pos := 2

	msg.Key = ""
	if flags&hasKey != 0 {
		field, next, err := readField(data, pos, "key")
		if err != nil {
			return err
		}
		msg.Key = string(field)
		pos = next
	}

	msg.Value = nil
	if flags&hasValue != 0 {
		field, next, err := readField(data, pos, "value")
		if err != nil {
			return err
		}
		// copy so the message does not alias the receive buffer
		msg.Value = make([]byte, len(field))
		copy(msg.Value, field)
		pos = next
	}

	msg.Ok = flags&hasOk != 0

	msg.Err = ""
	if flags&hasErr != 0 {
		field, next, err := readField(data, pos, "error")
		if err != nil {
			return err
		}
		msg.Err = string(field)
		pos = next
	}

	if pos != len(data) {
		return fmt.Errorf("%d trailing bytes after message", len(data)-pos)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	// Add sizes for fields that require length encoding
	if msg.Key != "" {
		size += 4 + len(msg.Key) // 4 bytes for length + key string
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value) // 4 bytes for length + value bytes
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err) // 4 bytes for length + error string
	}

	return size
}

// putField writes a length prefixed field at pos and returns the position after it
func putField(buf []byte, pos int, field []byte) int {
	binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(field)))
	pos += 4
	copy(buf[pos:pos+len(field)], field)
	return pos + len(field)
}

// readField reads a length prefixed field at pos
func readField(data []byte, pos int, name string) ([]byte, int, error) {
	if pos+4 > len(data) {
		return nil, 0, fmt.Errorf("data too short for %s length", name)
	}
	length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4

	if length < 0 || pos+length > len(data) {
		return nil, 0, fmt.Errorf("data too short for %s data", name)
	}
	return data[pos : pos+length], pos + length, nil
}
