package loader

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

const defaultDecodeTimeout = 30 * time.Second

// CommandDecoder transcodes compressed geometry by shelling out to an
// external decoder binary that reads the compressed GLB on stdin and writes
// a plain GLB to stdout. The binary location is configuration, not a
// build-time dependency.
type CommandDecoder struct {
	Path    string
	Timeout time.Duration
}

// NewCommandDecoder builds a CommandDecoder for the binary at path.
func NewCommandDecoder(path string) *CommandDecoder {
	return &CommandDecoder{Path: path, Timeout: defaultDecodeTimeout}
}

// DecodeMesh runs the decoder binary over the payload.
func (d *CommandDecoder) DecodeMesh(data []byte) ([]byte, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultDecodeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.Path)
	cmd.Stdin = bytes.NewReader(data)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, fmt.Errorf("mesh decoder %s: %w: %s", d.Path, err, msg)
		}
		return nil, fmt.Errorf("mesh decoder %s: %w", d.Path, err)
	}
	return out.Bytes(), nil
}
