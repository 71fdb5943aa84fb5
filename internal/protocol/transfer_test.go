package protocol

import (
	"bytes"
	"crypto/rand"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receiveResult struct {
	path string
	err  error
}

func pipeCodecs(t *testing.T) (*Codec, *Codec) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return NewCodec(a, 0), NewCodec(b, 0)
}

func writeSource(t *testing.T, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "bundle.zip")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path, data
}

func receiveAsync(c *Codec, dir string, maxSize int64) <-chan receiveResult {
	ch := make(chan receiveResult, 1)
	go func() {
		path, err := ReceiveNext(c, dir, maxSize)
		ch <- receiveResult{path: path, err: err}
	}()
	return ch
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSendFileDeliversIdenticalBytes(t *testing.T) {
	for _, size := range []int{0, 1, ChunkSize, 3*ChunkSize + 17} {
		sender, receiver := pipeCodecs(t)
		src, data := writeSource(t, size)
		dest := t.TempDir()

		done := receiveAsync(receiver, dest, 0)
		require.NoError(t, SendFile(sender, src))

		res := <-done
		require.NoError(t, res.err)
		assert.Equal(t, filepath.Join(dest, "bundle.zip"), res.path)

		got, err := os.ReadFile(res.path)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(data, got), "size %d differs", size)
		assert.Equal(t, []string{"bundle.zip"}, dirEntries(t, dest))
	}
}

func TestReceiveFileRejectsChecksumMismatch(t *testing.T) {
	sender, receiver := pipeCodecs(t)
	dest := t.TempDir()
	payload := []byte("definitely not what the checksum says")

	done := receiveAsync(receiver, dest, 0)

	require.NoError(t, sender.Write(FileMeta{
		Type:     TypeFileTransfer,
		Filename: "game.zip",
		Filesize: int64(len(payload)),
		Checksum: "00000000000000000000000000000000",
	}))
	var status TransferStatus
	require.NoError(t, sender.Read(&status))
	require.Equal(t, StatusReady, status.Status)

	require.NoError(t, sender.Stream(func(w io.Writer) error {
		_, err := w.Write(payload)
		return err
	}))
	require.NoError(t, sender.Read(&status))

	assert.Equal(t, StatusFailed, status.Status)
	res := <-done
	assert.ErrorIs(t, res.err, ErrChecksumMismatch)
	assert.Empty(t, dirEntries(t, dest))
}

func TestReceiveFileRejectsPathInFilename(t *testing.T) {
	sender, receiver := pipeCodecs(t)
	dest := t.TempDir()

	done := receiveAsync(receiver, dest, 0)
	require.NoError(t, sender.Write(FileMeta{
		Type:     TypeFileTransfer,
		Filename: "../escape.zip",
		Filesize: 3,
		Checksum: "abc",
	}))

	var status TransferStatus
	require.NoError(t, sender.Read(&status))
	assert.Equal(t, StatusFailed, status.Status)

	res := <-done
	assert.ErrorIs(t, res.err, ErrInvalidFileMeta)
	assert.Empty(t, dirEntries(t, dest))
}

func TestReceiveFileRejectsOversizedFile(t *testing.T) {
	sender, receiver := pipeCodecs(t)
	src, _ := writeSource(t, 1024)
	dest := t.TempDir()

	done := receiveAsync(receiver, dest, 512)
	err := SendFile(sender, src)
	assert.ErrorIs(t, err, ErrTransferRejected)

	res := <-done
	assert.ErrorIs(t, res.err, ErrInvalidFileMeta)
}

func TestReceiveFileRemovesPartialOnDisconnect(t *testing.T) {
	a, b := net.Pipe()
	sender, receiver := NewCodec(a, 0), NewCodec(b, 0)
	dest := t.TempDir()

	done := receiveAsync(receiver, dest, 0)
	require.NoError(t, sender.Write(FileMeta{
		Type:     TypeFileTransfer,
		Filename: "game.zip",
		Filesize: 4096,
		Checksum: "abc",
	}))
	var status TransferStatus
	require.NoError(t, sender.Read(&status))

	require.NoError(t, sender.Stream(func(w io.Writer) error {
		_, err := w.Write(make([]byte, 100))
		return err
	}))
	require.NoError(t, a.Close())

	res := <-done
	assert.ErrorIs(t, res.err, ErrFraming)
	assert.Empty(t, dirEntries(t, dest))
	_ = b.Close()
}
