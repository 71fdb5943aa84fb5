package protocol

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ChunkSize is the size of each raw write and read during a transfer
const ChunkSize = 8192

// TypeFileTransfer marks a file metadata frame
const TypeFileTransfer = "FILE_TRANSFER"

// Transfer status values
const (
	StatusReady   = "READY"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Transfer errors
var (
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrTransferRejected = errors.New("transfer rejected by peer")
	ErrInvalidFileMeta  = errors.New("invalid file metadata")
)

// FileMeta announces a file about to be streamed
type FileMeta struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	Checksum string `json:"md5"`
}

// TransferStatus is the receiver's handshake and final acknowledgement
type TransferStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Checksum returns the hex MD5 and size of the file at path, reading it in chunks
func Checksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	h := md5.New()
	n, err := io.CopyBuffer(h, f, make([]byte, ChunkSize))
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// SendFile runs the sender side of the transfer: metadata, wait for READY,
// raw bytes, wait for the final status.
func SendFile(c *Codec, path string) error {
	sum, size, err := Checksum(path)
	if err != nil {
		return fmt.Errorf("checksum %s: %w", path, err)
	}

	meta := FileMeta{
		Type:     TypeFileTransfer,
		Filename: filepath.Base(path),
		Filesize: size,
		Checksum: sum,
	}
	if err := c.Write(meta); err != nil {
		return fmt.Errorf("send file metadata: %w", err)
	}

	var status TransferStatus
	if err := c.Read(&status); err != nil {
		return err
	}
	if status.Status != StatusReady {
		return fmt.Errorf("%w: %s", ErrTransferRejected, status.Message)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	err = c.Stream(func(w io.Writer) error {
		_, err := io.CopyBuffer(w, io.LimitReader(f, size), make([]byte, ChunkSize))
		return err
	})
	if err != nil {
		return fmt.Errorf("stream file: %w", err)
	}

	if err := c.Read(&status); err != nil {
		return err
	}
	if status.Status != StatusSuccess {
		return fmt.Errorf("%w: %s", ErrTransferRejected, status.Message)
	}
	return nil
}

// ValidateMeta checks that the metadata names a plain file within maxSize.
// maxSize <= 0 disables the size check.
func ValidateMeta(meta FileMeta, maxSize int64) error {
	name := meta.Filename
	switch {
	case meta.Type != TypeFileTransfer:
		return fmt.Errorf("%w: unexpected frame type %q", ErrInvalidFileMeta, meta.Type)
	case name == "" || name == "." || name == "..":
		return fmt.Errorf("%w: missing filename", ErrInvalidFileMeta)
	case strings.ContainsAny(name, `/\`) || filepath.Base(name) != name:
		return fmt.Errorf("%w: filename %q must not contain a path", ErrInvalidFileMeta, name)
	case meta.Filesize < 0:
		return fmt.Errorf("%w: negative size", ErrInvalidFileMeta)
	case maxSize > 0 && meta.Filesize > maxSize:
		return fmt.Errorf("%w: %d bytes exceeds limit %d", ErrInvalidFileMeta, meta.Filesize, maxSize)
	case meta.Checksum == "":
		return fmt.Errorf("%w: missing checksum", ErrInvalidFileMeta)
	}
	return nil
}

// ReceiveFile runs the receiver side of the transfer for metadata already
// read from c. Bytes are written to a temporary file in dir while hashed;
// the file is renamed to its final name only when the checksum matches.
// A short read returns ErrFraming since the stream can no longer be framed.
func ReceiveFile(c *Codec, meta FileMeta, dir string, maxSize int64) (string, error) {
	if err := ValidateMeta(meta, maxSize); err != nil {
		_ = c.Write(TransferStatus{Status: StatusFailed, Message: err.Error()})
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = c.Write(TransferStatus{Status: StatusFailed, Message: "cannot prepare storage"})
		return "", err
	}

	tmp, err := os.CreateTemp(dir, ".transfer-*")
	if err != nil {
		_ = c.Write(TransferStatus{Status: StatusFailed, Message: "cannot prepare storage"})
		return "", err
	}
	tmpPath := tmp.Name()
	discard := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if err := c.Write(TransferStatus{Status: StatusReady}); err != nil {
		discard()
		return "", err
	}

	h := md5.New()
	src := io.LimitReader(c.RawReader(), meta.Filesize)
	n, err := io.CopyBuffer(io.MultiWriter(tmp, h), src, make([]byte, ChunkSize))
	if err == nil && n < meta.Filesize {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		discard()
		return "", fmt.Errorf("%w: receive file: %w", ErrFraming, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		_ = c.Write(TransferStatus{Status: StatusFailed, Message: "cannot write file"})
		return "", err
	}

	if actual := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(actual, meta.Checksum) {
		_ = os.Remove(tmpPath)
		_ = c.Write(TransferStatus{Status: StatusFailed, Message: "MD5 verification failed"})
		return "", ErrChecksumMismatch
	}

	target := filepath.Join(dir, meta.Filename)
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		_ = c.Write(TransferStatus{Status: StatusFailed, Message: "cannot store file"})
		return "", err
	}

	if err := c.Write(TransferStatus{Status: StatusSuccess}); err != nil {
		return target, err
	}
	return target, nil
}

// ReceiveNext reads the metadata frame then receives the file into dir
func ReceiveNext(c *Codec, dir string, maxSize int64) (string, error) {
	var meta FileMeta
	if err := c.Read(&meta); err != nil {
		return "", err
	}
	return ReceiveFile(c, meta, dir, maxSize)
}
