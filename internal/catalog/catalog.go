// Package catalog persists the session registry: the durable record of
// every client session this node has ever opened, so a restart can report
// accurate session history even though live session state (allocators,
// term storages, pinned workers) is always rebuilt from scratch.
package catalog

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kartikbazzad/queryterm/internal/logger"
	"github.com/kartikbazzad/queryterm/internal/types"
)

var (
	ErrCatalogLoad     = errors.New("failed to load session catalog")
	ErrCatalogWrite    = errors.New("failed to write session catalog")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidLabel    = errors.New("invalid session label")
)

const (
	SessionIDSize = 8
	LabelLenSize  = 2
	StatusSize    = 1
	EntryHeader   = SessionIDSize + LabelLenSize + StatusSize
)

// Catalog is an append-only, file-backed log of session entries, replayed
// in full on Load. It answers "what sessions has this node ever seen"
// independent of which sessions are currently live in memory.
type Catalog struct {
	mu      sync.RWMutex
	file    *os.File
	path    string
	entries map[uint64]*types.SessionEntry
	labels  map[string]uint64
	nextID  uint64
	logger  *logger.Logger
}

func NewCatalog(path string, log *logger.Logger) *Catalog {
	return &Catalog{
		path:    path,
		entries: make(map[uint64]*types.SessionEntry),
		labels:  make(map[string]uint64),
		logger:  log,
	}
}

func (c *Catalog) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}

	file, err := os.OpenFile(c.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return ErrCatalogLoad
	}
	c.file = file

	info, err := file.Stat()
	if err != nil {
		return ErrCatalogLoad
	}
	if info.Size() == 0 {
		c.nextID = 1
		return nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return ErrCatalogLoad
	}

	offset := 0
	c.nextID = 1

	for offset < len(data) {
		if offset+EntryHeader > len(data) {
			break
		}

		sessionID := binary.LittleEndian.Uint64(data[offset : offset+SessionIDSize])
		offset += SessionIDSize

		labelLen := binary.LittleEndian.Uint16(data[offset : offset+LabelLenSize])
		offset += LabelLenSize

		status := types.SessionStatus(data[offset])
		offset += StatusSize

		if offset+int(labelLen) > len(data) {
			break
		}
		label := string(data[offset : offset+int(labelLen)])
		offset += int(labelLen)

		entry := &types.SessionEntry{
			SessionID: sessionID,
			Label:     label,
			CreatedAt: time.Now(),
			Status:    status,
		}
		c.entries[sessionID] = entry
		c.labels[label] = sessionID

		if sessionID >= c.nextID {
			c.nextID = sessionID + 1
		}
	}

	c.logger.Info("session catalog loaded: %d entries", len(c.entries))
	return nil
}

// Create appends a new session entry and returns its allocated id. label
// may be empty; a non-empty label must be unique among entries.
func (c *Catalog) Create(label string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ValidateLabel(label); err != nil {
		return 0, ErrInvalidLabel
	}

	if label != "" {
		if _, exists := c.labels[label]; exists {
			return 0, ErrSessionExists
		}
	}

	id := c.nextID
	c.nextID++

	entry := &types.SessionEntry{
		SessionID: id,
		Label:     label,
		CreatedAt: time.Now(),
		Status:    types.SessionActive,
	}

	if err := c.writeEntry(entry); err != nil {
		c.nextID--
		return 0, err
	}

	c.entries[id] = entry
	if label != "" {
		c.labels[label] = id
	}

	c.logger.Info("session opened: id=%d label=%q", id, label)
	return id, nil
}

// Close marks a session entry closed. It does not remove it: the catalog
// is a history, not a live-session index.
func (c *Catalog) Close(sessionID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[sessionID]
	if !exists {
		return ErrSessionNotFound
	}

	prev := entry.Status
	entry.Status = types.SessionClosed
	if err := c.writeEntry(entry); err != nil {
		entry.Status = prev
		return err
	}

	c.logger.Info("session closed: id=%d label=%q", sessionID, entry.Label)
	return nil
}

func (c *Catalog) Get(sessionID uint64) (*types.SessionEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}

func (c *Catalog) List() []*types.SessionEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := make([]*types.SessionEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		list = append(list, entry)
	}
	return list
}

func (c *Catalog) CloseFile() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file != nil {
		return c.file.Close()
	}
	return nil
}

func (c *Catalog) writeEntry(entry *types.SessionEntry) error {
	buf := make([]byte, EntryHeader+len(entry.Label))

	offset := 0
	binary.LittleEndian.PutUint64(buf[offset:], entry.SessionID)
	offset += SessionIDSize

	binary.LittleEndian.PutUint16(buf[offset:], uint16(len(entry.Label)))
	offset += LabelLenSize

	buf[offset] = byte(entry.Status)
	offset += StatusSize

	copy(buf[offset:], entry.Label)

	if _, err := c.file.Write(buf); err != nil {
		return ErrCatalogWrite
	}
	return nil
}
