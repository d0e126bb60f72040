package loader

import (
	"bytes"
	"os/exec"
	"testing"
)

func TestCommandDecoder_PassesPayloadThrough(t *testing.T) {
	cat, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available")
	}
	d := NewCommandDecoder(cat)
	in := []byte("compressed payload bytes")
	out, err := d.DecodeMesh(in)
	if err != nil {
		t.Fatalf("DecodeMesh() error = %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("DecodeMesh() = %q, want %q", out, in)
	}
}

func TestCommandDecoder_MissingBinary(t *testing.T) {
	d := NewCommandDecoder("/nonexistent/draco-transcoder")
	if _, err := d.DecodeMesh([]byte("x")); err == nil {
		t.Fatal("DecodeMesh() error = nil, want error for missing binary")
	}
}
