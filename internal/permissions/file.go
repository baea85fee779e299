package permissions

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/quantumauth-io/quantum-auth-gate/internal/constants"
	"github.com/quantumauth-io/quantum-auth-gate/internal/securefile"
)

// On-disk representation
type grantsFile struct {
	Version int              `json:"version"`
	Grants  map[string]Grant `json:"grants"`
	Updated string           `json:"updated,omitempty"`
}

// FileStore keeps grants in a single JSON file, optionally encrypted.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	password []byte
	opts     securefile.Options
	grants   map[string]Grant
}

type FileOption func(*FileStore)

// WithPassword enables encryption at rest.
func WithPassword(password []byte) FileOption {
	return func(s *FileStore) { s.password = password }
}

// WithFileOptions overrides permissions and KDF parameters.
func WithFileOptions(o securefile.Options) FileOption {
	return func(s *FileStore) {
		aad := s.opts.AAD
		s.opts = o
		if o.AAD == nil {
			s.opts.AAD = aad
		}
	}
}

func NewFileStore(path string, opts ...FileOption) *FileStore {
	s := &FileStore{
		path:   path,
		grants: make(map[string]Grant),
		opts: securefile.Options{
			FilePerm:      constants.FilePerm,
			DirectoryPerm: constants.DirectoryPerm,
			AAD:           []byte(constants.GrantsAAD),
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OpenFileStore creates the store and loads the file.
func OpenFileStore(path string, opts ...FileOption) (*FileStore, error) {
	s := NewFileStore(path, opts...)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Path() string { return s.path }

// Load reads the grants from disk.
// Missing file = no grants (first run).
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		gf  grantsFile
		err error
	)
	if len(s.password) > 0 {
		gf, err = securefile.ReadEncryptedJSON[grantsFile](s.path, s.password, s.opts)
	} else {
		gf, err = securefile.ReadJSON[grantsFile](s.path)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return storageErr("load", err)
	}

	if gf.Grants == nil {
		gf.Grants = make(map[string]Grant)
	}
	s.grants = gf.Grants
	return nil
}

// save must be called with s.mu held.
func (s *FileStore) save(grants map[string]Grant) error {
	gf := grantsFile{
		Version: constants.SchemaV1,
		Grants:  grants,
		Updated: time.Now().UTC().Format(time.RFC3339),
	}
	if len(s.password) > 0 {
		return securefile.WriteEncryptedJSON(s.path, gf, s.password, s.opts)
	}
	return securefile.WriteJSON(s.path, gf, s.opts)
}

func (s *FileStore) Get(_ context.Context, origin, account string) (Grant, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.grants[Key(origin, account)]
	return g, ok, nil
}

func (s *FileStore) Put(_ context.Context, g Grant) error {
	g = g.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.copyLocked()
	next[g.Key] = g
	if err := s.save(next); err != nil {
		return storageErr("put", err)
	}
	s.grants = next
	return nil
}

func (s *FileStore) Delete(_ context.Context, origin, account string) error {
	key := Key(origin, account)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.grants[key]; !ok {
		return nil
	}
	next := s.copyLocked()
	delete(next, key)
	if err := s.save(next); err != nil {
		return storageErr("delete", err)
	}
	s.grants = next
	return nil
}

// ListAll returns a copy (safe for JSON responses).
func (s *FileStore) ListAll(_ context.Context) (map[string]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked(), nil
}

func (s *FileStore) copyLocked() map[string]Grant {
	out := make(map[string]Grant, len(s.grants))
	for k, v := range s.grants {
		out[k] = v
	}
	return out
}
