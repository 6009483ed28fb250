package base

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		buf     []byte
	}{
		{"empty", []byte{}, make([]byte, 16)},
		{"fits buffer", []byte("hello"), make([]byte, 16)},
		{"larger than buffer", bytes.Repeat([]byte("x"), 1024), make([]byte, 16)},
		{"no buffer", []byte("hello"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			go func() {
				_ = writeFrame(client, tt.payload)
			}()

			got, err := readFrame(server, tt.buf)
			if err != nil {
				t.Fatalf("readFrame failed: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("Expected %q, got %q", tt.payload, got)
			}
		})
	}
}

func TestFrameErrors(t *testing.T) {
	t.Run("oversized header", func(t *testing.T) {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		go func() {
			header := make([]byte, 4)
			binary.BigEndian.PutUint32(header, maxFrameSize+1)
			_, _ = client.Write(header)
		}()

		if _, err := readFrame(server, nil); err == nil {
			t.Errorf("Expected an error for an oversized frame")
		}
	})

	t.Run("truncated payload", func(t *testing.T) {
		client, server := net.Pipe()
		defer server.Close()

		go func() {
			header := make([]byte, 4)
			binary.BigEndian.PutUint32(header, 10)
			_, _ = client.Write(header)
			_, _ = client.Write([]byte("abc"))
			client.Close()
		}()

		_, err := readFrame(server, nil)
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("Expected io.ErrUnexpectedEOF, got %v", err)
		}
	})

	t.Run("closed before header", func(t *testing.T) {
		client, server := net.Pipe()
		defer server.Close()
		client.Close()

		_, err := readFrame(server, nil)
		if !errors.Is(err, io.EOF) {
			t.Errorf("Expected io.EOF, got %v", err)
		}
	})

	t.Run("oversized write", func(t *testing.T) {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		if err := writeFrame(client, make([]byte, maxFrameSize+1)); err == nil {
			t.Errorf("Expected an error for an oversized frame")
		}
	})
}
