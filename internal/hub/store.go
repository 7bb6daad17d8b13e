package hub

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/captured/llm-capture/internal/model"
)

// PersistedState is the single storage key's shape (spec.md §6.4).
type PersistedState struct {
	LatestConversationID *string                         `json:"latestConversationId"`
	Records              []model.CachedConversationRecord `json:"records"`
}

// ErrQuota is returned by a StateStore.Save implementation when the
// write failed due to a storage quota limit, distinct from any other
// write failure (spec.md §7 QuotaError). The hub's shedding retry loop
// only reacts to this; any other error is logged and stops the retry
// without clearing in-memory state.
var ErrQuota = errors.New("hub: storage quota exceeded")

// StateStore is the persistence boundary the hub writes through. A
// production binary supplies a file- or database-backed
// implementation; tests supply an in-memory one that can be made to
// fail with ErrQuota on demand (scenario S7).
type StateStore interface {
	Load() (PersistedState, error)
	Save(PersistedState) error
}

// FileStore is a StateStore backed by one JSON file, chosen over a
// database for this single-process owner the way the teacher favors
// one file per logical store in pkg/cron (store_lock.go keys a single
// shared map, not a table) — see DESIGN.md for the full justification
// of not wiring a SQL driver here.
type FileStore struct {
	path string
}

// NewFileStore builds a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads and parses the file at s.path. A missing file is treated
// as empty persisted state, not an error.
func (s *FileStore) Load() (PersistedState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return PersistedState{}, nil
		}
		return PersistedState{}, err
	}
	var state PersistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return PersistedState{}, err
	}
	return state, nil
}

// Save writes state to s.path, creating its parent directory if
// needed, via a temp-file-then-rename so a crash mid-write never
// corrupts the previous snapshot.
func (s *FileStore) Save(state PersistedState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
