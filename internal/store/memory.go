package store

import (
	"context"
	"strings"
	"sync"

	"github.com/Kanskikuro/dat640-project/internal/song"
)

// MemStore is the default, process-local Store. Safe for concurrent use
// by multiple websocket sessions.
type MemStore struct {
	mu    sync.Mutex
	order []string
	songs map[string][]song.Song
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{songs: make(map[string][]song.Song)}
}

func (m *MemStore) Names(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...), nil
}

func (m *MemStore) Create(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.songs[name]; ok {
		return ErrDuplicate
	}
	m.songs[name] = nil
	m.order = append(m.order, name)
	return nil
}

func (m *MemStore) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.songs[name]
	return ok, nil
}

func (m *MemStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.songs[name]; !ok {
		return ErrNotFound
	}
	delete(m.songs, name)
	for i, cand := range m.order {
		if cand == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemStore) Clear(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.songs[name]; !ok {
		return ErrNotFound
	}
	m.songs[name] = nil
	return nil
}

func (m *MemStore) Songs(ctx context.Context, name string) ([]song.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]song.Song(nil), m.songs[name]...), nil
}

func (m *MemStore) AddSong(ctx context.Context, name string, s song.Song) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.songs[name]
	if !ok {
		return ErrNotFound
	}
	for _, cand := range list {
		if strings.EqualFold(cand.Artist, s.Artist) && strings.EqualFold(cand.Title, s.Title) {
			return ErrDuplicate
		}
	}
	m.songs[name] = append(list, s)
	return nil
}

func (m *MemStore) RemoveSong(ctx context.Context, name, artist, title string) (song.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.songs[name]
	if !ok {
		return song.Song{}, ErrNotFound
	}
	for i, cand := range list {
		if sameSong(cand, artist, title) {
			m.songs[name] = append(list[:i], list[i+1:]...)
			return cand, nil
		}
	}
	return song.Song{}, ErrNotFound
}
