package db

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorMatching(t *testing.T) {
	wrapped := fmt.Errorf("remove failed: %w", ErrKeyNotFound)
	if !errors.Is(wrapped, ErrKeyNotFound) {
		t.Errorf("wrapped ErrKeyNotFound should match")
	}
	if errors.Is(wrapped, ErrClosed) {
		t.Errorf("different codes must not match")
	}

	// a fresh error with the same code matches the sentinel
	if !errors.Is(NewError(RetCKeyNotFound, "other text"), ErrKeyNotFound) {
		t.Errorf("errors with the same code should match")
	}
}

func TestErrorText(t *testing.T) {
	if got := ErrKeyNotFound.Error(); got != "Key not found" {
		t.Errorf("unexpected message %q", got)
	}

	err := WrapError(RetCIoError, io.ErrUnexpectedEOF, "failed to read generation 3")
	if got := err.Error(); got != "failed to read generation 3: unexpected EOF" {
		t.Errorf("unexpected message %q", got)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("wrapped cause should be reachable")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want RetCode
	}{
		{nil, RetCSuccess},
		{io.EOF, RetCInternalError},
		{ErrKeyNotFound, RetCKeyNotFound},
		{fmt.Errorf("ctx: %w", NewError(RetCEngineMismatch, "x")), RetCEngineMismatch},
	}
	for _, tt := range tests {
		if got := CodeOf(tt.err); got != tt.want {
			t.Errorf("CodeOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestParseImplementation(t *testing.T) {
	for _, name := range []string{"kvs", "leveldb"} {
		if impl, err := ParseImplementation(name); err != nil || string(impl) != name {
			t.Errorf("ParseImplementation(%q) = %q, %v", name, impl, err)
		}
	}
	if _, err := ParseImplementation("sled"); err == nil {
		t.Errorf("unknown engines should be rejected")
	}
}
