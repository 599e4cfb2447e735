package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Encrypted artifact layout: magic, a random 16-byte salt, then a
// sequence of AES-256-GCM chunks. Each chunk is a big-endian uint32
// ciphertext length followed by the ciphertext. Nonces are the chunk
// counter, which is safe because every artifact derives a fresh key
// from its own random salt.
var encMagic = []byte("GFENC1")

const (
	saltSize     = 16
	nonceSize    = 12
	chunkSize    = 64 * 1024
	maxChunkSize = chunkSize + 64 // ciphertext overhead headroom
)

// ErrBadPassphrase is returned when an encrypted artifact fails
// authentication, which almost always means a wrong passphrase.
var ErrBadPassphrase = errors.New("artifact authentication failed (wrong passphrase or corrupted file)")

func deriveKey(passphrase string, salt []byte) []byte {
	h := sha256.New()
	h.Write([]byte(passphrase))
	h.Write(salt)
	return h.Sum(nil)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func chunkNonce(counter uint64) []byte {
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint64(nonce[nonceSize-8:], counter)
	return nonce
}

// encryptWriter seals its input into counter-nonce GCM chunks.
type encryptWriter struct {
	dst     io.Writer
	aead    cipher.AEAD
	buf     []byte
	counter uint64
}

// newEncryptWriter writes the header (magic + salt) immediately and
// returns a writer that must be Closed to flush the final chunk.
func newEncryptWriter(dst io.Writer, passphrase string) (*encryptWriter, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	if _, err := dst.Write(encMagic); err != nil {
		return nil, err
	}
	if _, err := dst.Write(salt); err != nil {
		return nil, err
	}

	return &encryptWriter{dst: dst, aead: aead, buf: make([]byte, 0, chunkSize)}, nil
}

func (w *encryptWriter) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		space := chunkSize - len(w.buf)
		if space > len(p) {
			space = len(p)
		}
		w.buf = append(w.buf, p[:space]...)
		p = p[space:]

		if len(w.buf) == chunkSize {
			if err := w.flushChunk(); err != nil {
				return 0, err
			}
		}
	}
	return total, nil
}

func (w *encryptWriter) flushChunk() error {
	sealed := w.aead.Seal(nil, chunkNonce(w.counter), w.buf, nil)
	w.counter++
	w.buf = w.buf[:0]

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(sealed)))
	if _, err := w.dst.Write(header[:]); err != nil {
		return err
	}
	_, err := w.dst.Write(sealed)
	return err
}

// Close flushes any buffered plaintext as the final chunk.
func (w *encryptWriter) Close() error {
	if len(w.buf) > 0 {
		return w.flushChunk()
	}
	return nil
}

// decryptReader opens and authenticates chunks lazily as it is read.
type decryptReader struct {
	src     io.Reader
	aead    cipher.AEAD
	plain   []byte
	counter uint64
	eof     bool
}

func newDecryptReader(src io.Reader, passphrase string) (*decryptReader, error) {
	header := make([]byte, len(encMagic)+saltSize)
	if _, err := io.ReadFull(src, header); err != nil {
		return nil, fmt.Errorf("failed to read artifact header: %w", err)
	}
	if string(header[:len(encMagic)]) != string(encMagic) {
		return nil, errors.New("not an encrypted artifact (bad magic)")
	}

	aead, err := newGCM(passphrase, header[len(encMagic):])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	return &decryptReader{src: src, aead: aead}, nil
}

func (r *decryptReader) Read(p []byte) (int, error) {
	for len(r.plain) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		if err := r.nextChunk(); err != nil {
			return 0, err
		}
	}

	n := copy(p, r.plain)
	r.plain = r.plain[n:]
	return n, nil
}

func (r *decryptReader) nextChunk() error {
	var header [4]byte
	if _, err := io.ReadFull(r.src, header[:]); err != nil {
		if err == io.EOF {
			r.eof = true
			return nil
		}
		return fmt.Errorf("failed to read chunk header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length == 0 || length > maxChunkSize {
		return fmt.Errorf("invalid chunk length %d", length)
	}

	sealed := make([]byte, length)
	if _, err := io.ReadFull(r.src, sealed); err != nil {
		return fmt.Errorf("failed to read chunk: %w", err)
	}

	plain, err := r.aead.Open(nil, chunkNonce(r.counter), sealed, nil)
	if err != nil {
		return ErrBadPassphrase
	}
	r.counter++
	r.plain = plain
	return nil
}
