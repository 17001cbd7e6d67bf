package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"tipvault/core/events"
	"tipvault/core/types"
	"tipvault/storage"
)

const (
	pausesKey     = "system/pauses"
	eventCountKey = "events/count"
	eventPrefix   = "events/"
	accountPrefix = "account/"
	rolePrefix    = "role/"
)

// Manager layers a journaled write overlay on top of a storage.Database.
// Engines mutate through typed accessors; Snapshot and RevertToSnapshot give
// every unit of work all-or-nothing semantics, and Commit flushes the overlay
// to the backend. All operations are serialized by the caller: units of work
// never run concurrently.
type Manager struct {
	db storage.Database
	mu sync.Mutex

	overlay map[string][]byte
	journal []journalEntry
	pending []types.Event
}

type journalEntry struct {
	key     string
	prev    []byte
	existed bool
	isEvent bool
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		overlay: make(map[string][]byte),
	}
}

func (m *Manager) get(key string) ([]byte, bool, error) {
	if value, ok := m.overlay[key]; ok {
		buf := make([]byte, len(value))
		copy(buf, value)
		return buf, true, nil
	}
	value, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) set(key string, value []byte) error {
	prev, existed, err := m.get(key)
	if err != nil {
		return err
	}
	m.journal = append(m.journal, journalEntry{key: key, prev: prev, existed: existed})
	buf := make([]byte, len(value))
	copy(buf, value)
	m.overlay[key] = buf
	return nil
}

// Snapshot marks the current journal position. The returned revision is only
// valid until the next Commit.
func (m *Manager) Snapshot() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.journal)
}

// RevertToSnapshot undoes every write and event recorded after the revision.
func (m *Manager) RevertToSnapshot(revision int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if revision < 0 || revision > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= revision; i-- {
		entry := m.journal[i]
		if entry.isEvent {
			if len(m.pending) > 0 {
				m.pending = m.pending[:len(m.pending)-1]
			}
			continue
		}
		if entry.existed {
			m.overlay[entry.key] = entry.prev
		} else {
			delete(m.overlay, entry.key)
		}
	}
	m.journal = m.journal[:revision]
}

// Commit flushes the overlay and the pending event log to the backend and
// resets the journal. Events are written once under sequential keys and never
// rewritten.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	count, err := m.eventCountLocked()
	if err != nil {
		return err
	}
	for _, evt := range m.pending {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("state: encode event: %w", err)
		}
		key := eventPrefix + strconv.FormatUint(count, 10)
		if err := m.db.Put([]byte(key), payload); err != nil {
			return err
		}
		count++
	}
	if len(m.pending) > 0 {
		if err := m.db.Put([]byte(eventCountKey), []byte(strconv.FormatUint(count, 10))); err != nil {
			return err
		}
	}
	for key, value := range m.overlay {
		if err := m.db.Put([]byte(key), value); err != nil {
			return err
		}
	}
	m.overlay = make(map[string][]byte)
	m.journal = m.journal[:0]
	m.pending = m.pending[:0]
	return nil
}

func (m *Manager) eventCountLocked() (uint64, error) {
	raw, err := m.db.Get([]byte(eventCountKey))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(raw), 10, 64)
}

type eventCarrier interface {
	Event() *types.Event
}

// Emit appends an engine event to the pending log. The append is journaled so
// a revert drops events emitted inside the reverted window.
func (m *Manager) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	carrier, ok := evt.(eventCarrier)
	if !ok || carrier.Event() == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journal = append(m.journal, journalEntry{isEvent: true})
	m.pending = append(m.pending, *carrier.Event())
}

// PendingCount reports the number of uncommitted events.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// PendingEvents returns a copy of the uncommitted event log.
func (m *Manager) PendingEvents() []types.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Event, len(m.pending))
	copy(out, m.pending)
	return out
}

func (m *Manager) getJSON(key string, out interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok, err := m.get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set(key, payload)
}

// GetAccount returns the stored account for an address, or nil if the address
// has never been touched.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	acc := new(types.Account)
	ok, err := m.getJSON(accountPrefix+hex.EncodeToString(addr), acc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return acc, nil
}

// PutAccount stores the account for an address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	return m.putJSON(accountPrefix+hex.EncodeToString(addr), account)
}

// SetRole grants a role to an address.
func (m *Manager) SetRole(role string, addr []byte) error {
	return m.putJSON(rolePrefix+role+"/"+hex.EncodeToString(addr), true)
}

// HasRole reports whether the address holds the role.
func (m *Manager) HasRole(role string, addr []byte) bool {
	var granted bool
	ok, err := m.getJSON(rolePrefix+role+"/"+hex.EncodeToString(addr), &granted)
	if err != nil || !ok {
		return false
	}
	return granted
}

// SetPaused toggles a module pause flag. The toggle is persisted so a restart
// keeps a paused module paused.
func (m *Manager) SetPaused(module string, paused bool) error {
	toggles := map[string]bool{}
	if _, err := m.getJSON(pausesKey, &toggles); err != nil {
		return err
	}
	toggles[module] = paused
	return m.putJSON(pausesKey, toggles)
}

// IsPaused implements the pause view engines guard on.
func (m *Manager) IsPaused(module string) bool {
	toggles := map[string]bool{}
	ok, err := m.getJSON(pausesKey, &toggles)
	if err != nil || !ok {
		return false
	}
	return toggles[module]
}
