// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/wikirc/lib/atomicfile"
)

// ErrUnknownIdentity is returned when a mutation names a user the store
// does not know.
var ErrUnknownIdentity = errors.New("permission: unknown identity")

// Identity is a snapshot of one user's record.
type Identity struct {
	Name    string
	Groups  []string
	Origins []string
}

// record is the on-disk shape of one user. The "hostmasks" key is kept
// so existing permission files load unchanged.
type record struct {
	Groups    []string `json:"groups"`
	Hostmasks []string `json:"hostmasks"`
}

// entry is never modified after it is installed in the map; mutations
// build a new entry so a rollback can reinstall the old pointer.
type entry struct {
	groups  []string
	origins []string
}

// Store is the permission store. It is safe for concurrent use.
type Store struct {
	path      string
	logger    *slog.Logger
	writeFile func(path string, data []byte, perm os.FileMode) error

	mu         sync.RWMutex
	identities map[string]*entry
}

// Open loads the store at path. A missing file is an empty store and is
// not created until the first mutation. A file that does not parse is
// an error: silently starting empty would drop every operator's access.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	store := &Store{
		path:       path,
		logger:     logger,
		writeFile:  atomicfile.WriteFile,
		identities: make(map[string]*entry),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("permission file not found, starting empty", "path", path)
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("permission: reading %s: %w", path, err)
	}

	var records map[string]record
	if err := json.Unmarshal(jsonc.ToJSON(data), &records); err != nil {
		return nil, fmt.Errorf("permission: parsing %s: %w", path, err)
	}
	for name, rec := range records {
		key := canonicalName(name)
		existing := store.identities[key]
		if existing == nil {
			existing = &entry{}
		}
		store.identities[key] = &entry{
			groups:  appendUnique(existing.groups, lowerAll(rec.Groups)...),
			origins: appendUnique(existing.origins, rec.Hostmasks...),
		}
	}
	logger.Info("permission file loaded", "path", path, "identities", len(store.identities))
	return store, nil
}

// AddUser creates name with exactly one group and one trusted origin,
// replacing any existing record.
func (s *Store) AddUser(name, origin, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(canonicalName(name), &entry{
		groups:  []string{canonicalGroup(group)},
		origins: []string{origin},
	})
}

// AddGroup adds group to an existing user.
func (s *Store) AddGroup(name, group string) error {
	return s.modify(name, func(current *entry) *entry {
		return &entry{groups: appendUnique(current.groups, canonicalGroup(group)), origins: current.origins}
	})
}

// AddOrigin trusts origin for an existing user.
func (s *Store) AddOrigin(name, origin string) error {
	return s.modify(name, func(current *entry) *entry {
		return &entry{groups: current.groups, origins: appendUnique(current.origins, origin)}
	})
}

// RemoveGroup drops group from an existing user. Removing a group the
// user does not have is not an error.
func (s *Store) RemoveGroup(name, group string) error {
	return s.modify(name, func(current *entry) *entry {
		return &entry{groups: without(current.groups, canonicalGroup(group)), origins: current.origins}
	})
}

// RemoveOrigin stops trusting origin for an existing user. Removing an
// origin that was not trusted is not an error.
func (s *Store) RemoveOrigin(name, origin string) error {
	return s.modify(name, func(current *entry) *entry {
		return &entry{groups: current.groups, origins: without(current.origins, origin)}
	})
}

// RemoveUser deletes the user's record.
func (s *Store) RemoveUser(name string) error {
	key := canonicalName(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIdentity, key)
	}
	return s.commitLocked(key, nil)
}

// AuthorizedGroups returns the user's groups when origin is one of the
// user's trusted origins. The origin comparison is exact. The second
// result is false for an unknown user or an untrusted origin.
func (s *Store) AuthorizedGroups(name, origin string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current, ok := s.identities[canonicalName(name)]
	if !ok || !slices.Contains(current.origins, origin) {
		return nil, false
	}
	return slices.Clone(current.groups), true
}

// Identities returns every record, sorted by name.
func (s *Store) Identities() []Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identities := make([]Identity, 0, len(s.identities))
	for _, name := range slices.Sorted(maps.Keys(s.identities)) {
		current := s.identities[name]
		identities = append(identities, Identity{
			Name:    name,
			Groups:  slices.Clone(current.groups),
			Origins: slices.Clone(current.origins),
		})
	}
	return identities
}

// modify applies change to an existing user and persists the result
// unless change produced an identical record.
func (s *Store) modify(name string, change func(*entry) *entry) error {
	key := canonicalName(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.identities[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIdentity, key)
	}
	next := change(current)
	if slices.Equal(next.groups, current.groups) && slices.Equal(next.origins, current.origins) {
		return nil
	}
	return s.commitLocked(key, next)
}

// commitLocked installs next for key (nil deletes), writes the store,
// and reinstates the previous value if the write fails.
func (s *Store) commitLocked(key string, next *entry) error {
	previous, existed := s.identities[key]
	if next == nil {
		delete(s.identities, key)
	} else {
		s.identities[key] = next
	}

	if err := s.persistLocked(); err != nil {
		if existed {
			s.identities[key] = previous
		} else {
			delete(s.identities, key)
		}
		s.logger.Error("permission store write failed, change rolled back",
			"path", s.path,
			"identity", key,
			"error", err,
		)
		return err
	}
	return nil
}

func (s *Store) persistLocked() error {
	records := make(map[string]record, len(s.identities))
	for name, current := range s.identities {
		records[name] = record{
			Groups:    nonNil(current.groups),
			Hostmasks: nonNil(current.origins),
		}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("permission: encoding store: %w", err)
	}
	data = append(data, '\n')
	if err := s.writeFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("permission: writing %s: %w", s.path, err)
	}
	return nil
}

func canonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func canonicalGroup(group string) string {
	return strings.ToLower(strings.TrimSpace(group))
}

func lowerAll(values []string) []string {
	lowered := make([]string, len(values))
	for index, value := range values {
		lowered[index] = canonicalGroup(value)
	}
	return lowered
}

// appendUnique returns a new slice holding base followed by the values
// not already present.
func appendUnique(base []string, values ...string) []string {
	result := slices.Clone(base)
	for _, value := range values {
		if !slices.Contains(result, value) {
			result = append(result, value)
		}
	}
	return result
}

func without(values []string, remove string) []string {
	return slices.DeleteFunc(slices.Clone(values), func(value string) bool { return value == remove })
}

// nonNil keeps empty sets as [] rather than null in the file.
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
