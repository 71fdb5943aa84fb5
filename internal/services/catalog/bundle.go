package catalog

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

// ManifestFile is the manifest every bundle carries at its root
const ManifestFile = "config.json"

// bundleDir is the directory under a game's storage path holding its files
const bundleDir = "game"

// Manifest describes how to run a game bundle
type Manifest struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	ServerCommand []string `json:"server_command"`
	ClientCommand []string `json:"client_command"`
}

// rawManifest detects missing fields and non-list commands
type rawManifest struct {
	Name          *string         `json:"name"`
	Version       *string         `json:"version"`
	ServerCommand json.RawMessage `json:"server_command"`
	ClientCommand json.RawMessage `json:"client_command"`
}

// ReadManifest loads and validates the manifest in dir
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: missing %s", model.ErrInvalidManifest, ManifestFile)
		}
		return nil, err
	}

	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s is not valid JSON", model.ErrInvalidManifest, ManifestFile)
	}

	var missing []string
	if raw.Name == nil {
		missing = append(missing, "name")
	}
	if raw.Version == nil {
		missing = append(missing, "version")
	}
	if raw.ServerCommand == nil {
		missing = append(missing, "server_command")
	}
	if raw.ClientCommand == nil {
		missing = append(missing, "client_command")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing fields %s", model.ErrInvalidManifest, strings.Join(missing, ", "))
	}

	m := &Manifest{Name: *raw.Name, Version: *raw.Version}
	if json.Unmarshal(raw.ServerCommand, &m.ServerCommand) != nil ||
		json.Unmarshal(raw.ClientCommand, &m.ClientCommand) != nil {
		return nil, fmt.Errorf("%w: server_command and client_command must be lists", model.ErrInvalidManifest)
	}
	return m, nil
}

// extractZip unpacks archive into dest, refusing entries that escape it
func extractZip(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidBundle, err)
	}
	defer r.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}

	for _, f := range r.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("%w: entry %q escapes the bundle", model.ErrInvalidBundle, f.Name)
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case mode.IsRegular():
			if err := extractFile(f, target); err != nil {
				return err
			}
		default:
			// Symlinks and devices are dropped
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidBundle, err)
	}
	defer src.Close()

	perm := f.Mode().Perm() | 0o600
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("%w: %v", model.ErrInvalidBundle, err)
	}
	return dst.Close()
}

// packZip writes every regular file under dir into a new archive at dest
// with paths relative to dir.
func packZip(dir, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})

	closeErr := zw.Close()
	fileErr := out.Close()
	if walkErr != nil {
		return walkErr
	}
	if closeErr != nil {
		return closeErr
	}
	return fileErr
}

// installBundle turns a received file into a validated bundle directory at
// dest. Only zip archives are accepted. The received file is removed.
func installBundle(received, dest string) (*Manifest, error) {
	defer os.Remove(received)

	if !strings.EqualFold(filepath.Ext(received), ".zip") {
		return nil, model.ErrInvalidBundle
	}
	if err := extractZip(received, dest); err != nil {
		return nil, err
	}
	return ReadManifest(dest)
}
