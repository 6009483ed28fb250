package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   string `json:"key,omitempty"`   // Used for: Set, Get, Remove
	Value []byte `json:"value,omitempty"` // Used for: Set (request), Get (response), Info (response)

	// Response only fields
	Ok  bool   `json:"ok,omitempty"`  // Used for: Get responses (false = the key does not exist)
	Err string `json:"err,omitempty"` // Only set on Error responses
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewSetRequest creates a new Set request
func NewSetRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVSet,
		Key:     key,
		Value:   value,
	}
}

// NewSetResponse creates a new Set response or an Error response if err is set
func NewSetResponse(err error) *Message {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return &Message{
		MsgType: MsgTKVSet,
	}
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response or an Error response if err is set
func NewGetResponse(value []byte, ok bool, err error) *Message {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return &Message{
		MsgType: MsgTKVGet,
		Ok:      ok,
		Value:   value,
	}
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVRemove,
		Key:     key,
	}
}

// NewRemoveResponse creates a new Remove response or an Error response if err is set
func NewRemoveResponse(err error) *Message {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return &Message{
		MsgType: MsgTKVRemove,
	}
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTInfo,
	}
}

// NewInfoResponse creates a new Info response carrying the json encoded db.DatabaseInfo
func NewInfoResponse(info []byte, err error) *Message {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return &Message{
		MsgType: MsgTInfo,
		Value:   info,
	}
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTKVSet:
		return "set"
	case MsgTKVGet:
		return "get"
	case MsgTKVRemove:
		return "remove"
	case MsgTInfo:
		return "info"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "set":
		*t = MsgTKVSet
	case "get":
		*t = MsgTKVGet
	case "remove":
		*t = MsgTKVRemove
	case "info":
		*t = MsgTInfo
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTKVSet    // Set a key-value pair
	MsgTKVGet    // Get a value by key
	MsgTKVRemove // Remove a key-value pair

	// Server operations

	MsgTInfo // Get information about the database of the server
)
