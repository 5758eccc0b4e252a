package pose

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

const maxMessageSize = 64 << 20

// request is sent to the worker, one per frame or control command
type request struct {
	Type        string `msgpack:"type"` // "frame" or "reset"
	Seq         uint64 `msgpack:"seq"`
	Width       int    `msgpack:"width,omitempty"`
	Height      int    `msgpack:"height,omitempty"`
	PixelFormat string `msgpack:"pixel_format,omitempty"`
	Data        []byte `msgpack:"data,omitempty"`
}

// response is the worker's answer to a request with the same seq
type response struct {
	Seq       uint64     `msgpack:"seq"`
	Landmarks []Landmark `msgpack:"landmarks"`
	Error     string     `msgpack:"error"`
	TimingMS  float64    `msgpack:"timing_ms"`
}

// conn frames msgpack messages with a 4-byte big-endian length prefix
type conn struct {
	r io.Reader
	w io.Writer
}

func (c *conn) send(v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal msgpack request: %w", err)
	}
	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, uint32(len(payload)))
	if _, err := c.w.Write(prefix); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := c.w.Write(payload); err != nil {
		return fmt.Errorf("failed to write msgpack data: %w", err)
	}
	return nil
}

func (c *conn) receive(v any) error {
	prefix := make([]byte, 4)
	if _, err := io.ReadFull(c.r, prefix); err != nil {
		return fmt.Errorf("failed to read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(prefix)
	if n == 0 || n > maxMessageSize {
		return fmt.Errorf("invalid message length %d", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return fmt.Errorf("failed to read msgpack data: %w", err)
	}
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal msgpack response: %w", err)
	}
	return nil
}
