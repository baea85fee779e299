// Package securefile provides JSON file read/write with atomic writes, plain or
// encrypted. Encryption uses Argon2id for KDF and XChaCha20-Poly1305 for AEAD.
package securefile

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrInvalidPasswordOrCorrupt is returned when decryption fails.
	// Keep this generic to avoid leaking details.
	ErrInvalidPasswordOrCorrupt = errors.New("invalid password or corrupted file")

	// ErrNotEncrypted is returned by ReadEncryptedJSON for a plain JSON file.
	ErrNotEncrypted = errors.New("file is not encrypted")
)

const envelopeVersion = 1

// KDFParams describes the on-disk encryption envelope and KDF settings.
type KDFParams struct {
	Version int `json:"version"`

	ArgonTime    uint32 `json:"argon_time"`
	ArgonMemory  uint32 `json:"argon_memory_kib"`
	ArgonThreads uint8  `json:"argon_threads"`
	ArgonKeyLen  uint32 `json:"argon_key_len"`

	SaltB64  string `json:"salt_b64"`
	NonceB64 string `json:"nonce_b64"`
	CTB64    string `json:"ct_b64"`
}

// DefaultKDF are reasonable defaults for a local encrypted file.
var DefaultKDF = KDFParams{
	Version:      envelopeVersion,
	ArgonTime:    2,
	ArgonMemory:  64 * 1024, // 64 MiB in KiB
	ArgonThreads: 1,
	ArgonKeyLen:  32,
}

// Options controls file permissions and encryption behavior.
type Options struct {
	KDF KDFParams

	FilePerm      os.FileMode
	DirectoryPerm os.FileMode

	// AAD must be identical on read and write.
	AAD []byte
}

func defaultOptions() Options {
	return Options{
		KDF:           DefaultKDF,
		FilePerm:      0o600,
		DirectoryPerm: 0o700,
	}
}

func mergeOptions(opt ...Options) Options {
	o := defaultOptions()
	if len(opt) == 0 {
		return o
	}
	in := opt[0]
	if in.KDF.Version != 0 {
		o.KDF = in.KDF
	}
	if in.FilePerm != 0 {
		o.FilePerm = in.FilePerm
	}
	if in.DirectoryPerm != 0 {
		o.DirectoryPerm = in.DirectoryPerm
	}
	if in.AAD != nil {
		o.AAD = in.AAD
	}
	return o
}

// WriteJSON marshals v as pretty JSON and writes it atomically to path.
func WriteJSON[T any](path string, v T, opt ...Options) error {
	o := mergeOptions(opt...)

	if err := os.MkdirAll(filepath.Dir(path), o.DirectoryPerm); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal json")
	}
	return atomicWriteFile(path, b, o.FilePerm)
}

// ReadJSON reads path and unmarshals it into T. A missing file surfaces as an
// error satisfying os.IsNotExist.
func ReadJSON[T any](path string) (T, error) {
	var out T
	b, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, errors.Wrap(err, "unmarshal json")
	}
	return out, nil
}

// WriteEncryptedJSON marshals v, encrypts it with a key derived from password and
// writes the envelope atomically to path.
func WriteEncryptedJSON[T any](path string, v T, password []byte, opt ...Options) error {
	o := mergeOptions(opt...)

	if len(password) == 0 {
		return errors.New("securefile: empty password")
	}
	if o.KDF.Version != envelopeVersion {
		return errors.Newf("unsupported kdf version: %d", o.KDF.Version)
	}
	if err := os.MkdirAll(filepath.Dir(path), o.DirectoryPerm); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}

	plain, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal json")
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return errors.Wrap(err, "rand salt")
	}

	key := argon2.IDKey(password, salt, o.KDF.ArgonTime, o.KDF.ArgonMemory, o.KDF.ArgonThreads, o.KDF.ArgonKeyLen)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return errors.Wrap(err, "aead")
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "rand nonce")
	}

	ct := aead.Seal(nil, nonce, plain, o.AAD)

	out := o.KDF
	out.SaltB64 = base64.StdEncoding.EncodeToString(salt)
	out.NonceB64 = base64.StdEncoding.EncodeToString(nonce)
	out.CTB64 = base64.StdEncoding.EncodeToString(ct)

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal enc file")
	}
	return atomicWriteFile(path, b, o.FilePerm)
}

// ReadEncryptedJSON reads the envelope at path, decrypts it using password and
// unmarshals the plaintext into T.
func ReadEncryptedJSON[T any](path string, password []byte, opt ...Options) (T, error) {
	var zero T
	o := mergeOptions(opt...)

	b, err := os.ReadFile(path)
	if err != nil {
		return zero, err
	}

	var ef KDFParams
	if err := json.Unmarshal(b, &ef); err != nil {
		return zero, errors.Wrap(err, "unmarshal enc file")
	}
	if ef.CTB64 == "" {
		return zero, ErrNotEncrypted
	}
	if ef.Version != envelopeVersion {
		return zero, errors.Newf("unsupported file version: %d", ef.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(ef.SaltB64)
	if err != nil {
		return zero, errors.Wrap(err, "decode salt")
	}
	nonce, err := base64.StdEncoding.DecodeString(ef.NonceB64)
	if err != nil {
		return zero, errors.Wrap(err, "decode nonce")
	}
	ct, err := base64.StdEncoding.DecodeString(ef.CTB64)
	if err != nil {
		return zero, errors.Wrap(err, "decode ciphertext")
	}

	key := argon2.IDKey(password, salt, ef.ArgonTime, ef.ArgonMemory, ef.ArgonThreads, ef.ArgonKeyLen)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return zero, errors.Wrap(err, "aead")
	}

	plain, err := aead.Open(nil, nonce, ct, o.AAD)
	if err != nil {
		return zero, ErrInvalidPasswordOrCorrupt
	}

	var out T
	if err := json.Unmarshal(plain, &out); err != nil {
		return zero, errors.Wrap(err, "unmarshal json")
	}
	return out, nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"

	// Best effort cleanup if something already exists.
	_ = os.Remove(tmp)

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return errors.Wrap(err, "write tmp")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "rename")
	}
	return nil
}
