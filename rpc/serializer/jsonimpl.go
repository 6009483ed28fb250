package serializer

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/ValentinKolb/kvs/rpc/common"
)

// NewJSONSerializer creates the default serializer of the protocol.
// Keys must be valid UTF-8, encoding/json would replace invalid bytes and change the key.
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	if !utf8.ValidString(msg.Key) {
		return nil, fmt.Errorf("key %q is not valid UTF-8, use the binary serializer", msg.Key)
	}
	return json.Marshal(msg)
}

func (jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// fields missing in b must not keep values of a reused message
	*msg = common.Message{}
	if err := json.Unmarshal(b, msg); err != nil {
		return fmt.Errorf("invalid json message: %w", err)
	}
	return nil
}
