// Package backup produces and restores portable snapshots of schema and
// data, taken before any destructive operation.
//
// Post-processing is a pipeline: compress, then encrypt. Never the
// reverse, since compressing ciphertext gains nothing.
package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/dbsmedya/gofresh/internal/adapter"
)

// Options controls the snapshot post-processing stages.
type Options struct {
	Compress   bool
	Encrypt    bool
	Passphrase string
}

// Artifact describes a completed snapshot. It is self-contained:
// restorable by this package or, for plain dumps, by vendor-native
// tooling, independent of the orchestrator's run state.
type Artifact struct {
	Path       string
	Format     string // "dump" for SQL dumps, "copy" for file-based vendors
	Compressed bool
	Encrypted  bool
	CreatedAt  time.Time
	Vendor     adapter.Kind
}

// BackupError wraps a snapshot failure.
type BackupError struct {
	Err error
}

func (e *BackupError) Error() string { return fmt.Sprintf("backup failed: %v", e.Err) }
func (e *BackupError) Unwrap() error { return e.Err }

// RestoreError wraps a restore failure.
type RestoreError struct {
	Err error
}

func (e *RestoreError) Error() string { return fmt.Sprintf("restore failed: %v", e.Err) }
func (e *RestoreError) Unwrap() error { return e.Err }

// Snapshot streams the adapter's dump through the configured pipeline
// into dest. When dest is a directory (or empty), a timestamped file
// name is generated inside it. Partial files are removed on failure.
func Snapshot(ctx context.Context, a adapter.Adapter, dest string, opts Options) (*Artifact, error) {
	if opts.Encrypt && opts.Passphrase == "" {
		return nil, &BackupError{Err: fmt.Errorf("encryption requested but no passphrase configured")}
	}

	path, err := resolvePath(a.Vendor(), dest, opts)
	if err != nil {
		return nil, &BackupError{Err: err}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, &BackupError{Err: fmt.Errorf("failed to create backup file: %w", err)}
	}

	if err := writePipeline(ctx, a, f, opts); err != nil {
		f.Close()
		os.Remove(path)
		return nil, &BackupError{Err: err}
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, &BackupError{Err: err}
	}

	format := "dump"
	if a.Vendor() == adapter.KindSQLite {
		format = "copy"
	}

	return &Artifact{
		Path:       path,
		Format:     format,
		Compressed: opts.Compress,
		Encrypted:  opts.Encrypt,
		CreatedAt:  time.Now().UTC(),
		Vendor:     a.Vendor(),
	}, nil
}

// writePipeline wires dump -> lz4 -> AES-GCM -> file, closing stages
// innermost-first so every byte reaches the file.
func writePipeline(ctx context.Context, a adapter.Adapter, f *os.File, opts Options) error {
	var w io.Writer = f

	var enc *encryptWriter
	if opts.Encrypt {
		var err error
		enc, err = newEncryptWriter(w, opts.Passphrase)
		if err != nil {
			return err
		}
		w = enc
	}

	var z *lz4.Writer
	if opts.Compress {
		z = lz4.NewWriter(w)
		w = z
	}

	if err := a.Dump(ctx, w); err != nil {
		return err
	}

	if z != nil {
		if err := z.Close(); err != nil {
			return fmt.Errorf("failed to finalize compression: %w", err)
		}
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to finalize encryption: %w", err)
		}
	}
	return nil
}

// Restore streams the artifact's original bytes into out, reversing the
// pipeline: decrypt, then decompress. It depends only on the artifact
// itself, never on orchestrator run state.
func Restore(artifact *Artifact, passphrase string, out io.Writer) error {
	f, err := os.Open(artifact.Path)
	if err != nil {
		return &RestoreError{Err: fmt.Errorf("failed to open artifact: %w", err)}
	}
	defer f.Close()

	var r io.Reader = f

	if artifact.Encrypted {
		if passphrase == "" {
			return &RestoreError{Err: fmt.Errorf("artifact is encrypted but no passphrase configured")}
		}
		dec, err := newDecryptReader(r, passphrase)
		if err != nil {
			return &RestoreError{Err: err}
		}
		r = dec
	}

	if artifact.Compressed {
		r = lz4.NewReader(r)
	}

	if _, err := io.Copy(out, r); err != nil {
		return &RestoreError{Err: err}
	}
	return nil
}

// DescribeArtifact reconstructs artifact metadata from a file path using
// the extension chain (.lz4, .enc), for standalone restores where the
// creating process is long gone.
func DescribeArtifact(path string, vendor adapter.Kind) *Artifact {
	artifact := &Artifact{Path: path, Format: "dump", Vendor: vendor}
	if vendor == adapter.KindSQLite {
		artifact.Format = "copy"
	}

	rest := path
	if filepath.Ext(rest) == ".enc" {
		artifact.Encrypted = true
		rest = rest[:len(rest)-len(".enc")]
	}
	if filepath.Ext(rest) == ".lz4" {
		artifact.Compressed = true
	}
	return artifact
}

func resolvePath(vendor adapter.Kind, dest string, opts Options) (string, error) {
	ext := ".sql"
	if vendor == adapter.KindSQLite {
		ext = ".db"
	}
	if opts.Compress {
		ext += ".lz4"
	}
	if opts.Encrypt {
		ext += ".enc"
	}

	if dest == "" {
		dest = "."
	}

	info, err := os.Stat(dest)
	if err == nil && info.IsDir() {
		name := fmt.Sprintf("backup_%s%s", time.Now().Format("20060102_150405"), ext)
		return filepath.Join(dest, name), nil
	}

	// Explicit file path: ensure the parent exists.
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	return dest, nil
}
