// Package protocol implements the lobby wire format: a 4-byte big-endian
// length prefix followed by a UTF-8 JSON body, plus a file transfer
// sub-protocol layered on the same framing.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"unicode/utf8"
)

const (
	headerSize = 4

	// DefaultMaxFrameSize bounds a single JSON frame
	DefaultMaxFrameSize = 16 << 20
)

// Errors returned while decoding frames. Both are fatal for the connection.
var (
	ErrFraming          = errors.New("framing error")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Encode serialises v into a single length-prefixed frame
func Encode(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	frame := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[headerSize:], body)
	return frame, nil
}

// WriteFrame writes v to w as one frame
func WriteFrame(w io.Writer, v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadFrame reads one frame from r and decodes its body into v.
// A connection closed cleanly before the first header byte yields io.EOF;
// any other short read yields ErrFraming.
func ReadFrame(r io.Reader, v any, maxSize int) error {
	var hdr [headerSize]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("%w: read header: %w", ErrFraming, err)
	}

	size := binary.BigEndian.Uint32(hdr[:])
	if maxSize > 0 && uint64(size) > uint64(maxSize) {
		return fmt.Errorf("%w: frame of %d bytes exceeds limit %d", ErrFraming, size, maxSize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("%w: read body: %w", ErrFraming, err)
	}
	if !utf8.Valid(body) {
		return fmt.Errorf("%w: body is not valid UTF-8", ErrMalformedPayload)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return nil
}

// Codec reads and writes frames on a single connection. Writes are
// serialised so that server pushes never interleave with responses.
type Codec struct {
	rw       io.ReadWriter
	wmu      sync.Mutex
	maxFrame int
}

// NewCodec wraps a connection. maxFrame <= 0 selects DefaultMaxFrameSize.
func NewCodec(rw io.ReadWriter, maxFrame int) *Codec {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &Codec{rw: rw, maxFrame: maxFrame}
}

// Read decodes the next frame into v
func (c *Codec) Read(v any) error {
	return ReadFrame(c.rw, v, c.maxFrame)
}

// Write encodes v as one frame
func (c *Codec) Write(v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err = c.rw.Write(frame)
	return err
}

// Stream gives fn exclusive use of the underlying writer for unframed bytes
func (c *Codec) Stream(fn func(w io.Writer) error) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return fn(c.rw)
}

// RawReader exposes the underlying reader for unframed bytes
func (c *Codec) RawReader() io.Reader {
	return c.rw
}

// Close closes the underlying connection if it supports closing
func (c *Codec) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
