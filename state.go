package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	assistantIdFile   = "assistant_id.txt"
	vectorStoreIdFile = "vector_store_id.txt"
)

// Provisioned holds the ids of the remote resources created by setup.
type Provisioned struct {
	AssistantId   string
	VectorStoreId string
}

func (p Provisioned) Complete() bool {
	return p.AssistantId != "" && p.VectorStoreId != ""
}

type StateStore interface {
	Load() (Provisioned, error)
	Save(state Provisioned) error
	Clear() error
}

// FileStateStore keeps each id in its own text file under Dir so that a
// restarted process can reuse the remote resources.
type FileStateStore struct {
	Dir string
}

func NewFileStateStore(dir string) *FileStateStore {
	return &FileStateStore{Dir: dir}
}

func (s *FileStateStore) Load() (Provisioned, error) {
	var state Provisioned

	assistantId, err := s.read(assistantIdFile)
	if err != nil {
		return state, err
	}
	vectorStoreId, err := s.read(vectorStoreIdFile)
	if err != nil {
		return state, err
	}

	state.AssistantId = assistantId
	state.VectorStoreId = vectorStoreId
	return state, nil
}

func (s *FileStateStore) read(name string) (string, error) {
	path := filepath.Join(s.Dir, name)
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug(fmt.Sprintf("no persisted id at %s", path))
		return "", nil
	} else if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(content)), nil
}

func (s *FileStateStore) Save(state Provisioned) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.Dir, assistantIdFile), []byte(state.AssistantId), 0644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.Dir, vectorStoreIdFile), []byte(state.VectorStoreId), 0644)
}

func (s *FileStateStore) Clear() error {
	for _, name := range []string{assistantIdFile, vectorStoreIdFile} {
		err := os.Remove(filepath.Join(s.Dir, name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
