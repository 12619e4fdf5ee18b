package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"docquiz/internal/domain"
)

type metaData struct {
	Batches map[string]domain.UploadBatch `json:"batches"`
}

// Store is the JSON-file record of upload batches handed to the provider.
// It exists so the server can report batch ids and history; quiz session
// state itself is never persisted.
type Store struct {
	mu   sync.RWMutex
	path string
	data metaData
}

func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store := &Store{path: filepath.Join(baseDir, "meta.json")}
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = metaData{Batches: map[string]domain.UploadBatch{}}

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("open meta file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			return s.saveLocked()
		}
		return fmt.Errorf("decode meta file: %w", err)
	}

	if s.data.Batches == nil {
		s.data.Batches = map[string]domain.UploadBatch{}
	}
	return nil
}

func (s *Store) CreateBatch(storeID string, fileNames, fileIDs []string, status string) (domain.UploadBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	batch := domain.UploadBatch{
		ID:        uuid.NewString(),
		StoreID:   storeID,
		FileNames: fileNames,
		FileIDs:   fileIDs,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.data.Batches[batch.ID] = batch

	if err := s.saveLocked(); err != nil {
		return domain.UploadBatch{}, err
	}
	return batch, nil
}

func (s *Store) GetBatch(id string) (domain.UploadBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, ok := s.data.Batches[id]
	if !ok {
		return domain.UploadBatch{}, fmt.Errorf("batch %s not found", id)
	}
	return batch, nil
}

func (s *Store) ListBatches() []domain.UploadBatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batches := make([]domain.UploadBatch, 0, len(s.data.Batches))
	for _, batch := range s.data.Batches {
		batches = append(batches, batch)
	}
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].CreatedAt > batches[j].CreatedAt
	})
	return batches
}

func (s *Store) UpdateBatchStatus(id, status string) (domain.UploadBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.data.Batches[id]
	if !ok {
		return domain.UploadBatch{}, fmt.Errorf("batch %s not found", id)
	}

	batch.Status = status
	batch.UpdatedAt = time.Now().Unix()
	s.data.Batches[id] = batch

	if err := s.saveLocked(); err != nil {
		return domain.UploadBatch{}, err
	}
	return batch, nil
}

func (s *Store) DeleteBatch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Batches[id]; !ok {
		return fmt.Errorf("batch %s not found", id)
	}

	delete(s.data.Batches, id)
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "meta-*.json")
	if err != nil {
		return fmt.Errorf("create temp meta: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode meta: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp meta: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace meta file: %w", err)
	}

	return nil
}
