package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/ValentinKolb/kvs/rpc/common"
)

// NewGOBSerializer creates a serializer using encoding/gob.
// Every message is a self-contained gob stream, so the type description is sent each time.
func NewGOBSerializer() IRPCSerializer {
	return gobSerializerImpl{}
}

type gobSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msg.MsgType, err)
	}
	return buf.Bytes(), nil
}

func (gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// gob leaves fields with zero values untouched
	*msg = common.Message{}
	r := bytes.NewReader(b)
	if err := gob.NewDecoder(r).Decode(msg); err != nil {
		return fmt.Errorf("invalid gob message: %w", err)
	}
	if r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes after gob message", r.Len())
	}
	return nil
}
