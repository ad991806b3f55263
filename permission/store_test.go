// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "permissions.json")
	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store, path
}

func readRecords(t *testing.T, path string) map[string]record {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading store file: %v", err)
	}
	var records map[string]record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("store file is not JSON: %v\n%s", err, data)
	}
	return records
}

func TestAddUserRoundTrip(t *testing.T) {
	store, _ := openTestStore(t)

	if err := store.AddUser("bob", "bob@host", "ops"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	groups, ok := store.AuthorizedGroups("bob", "bob@host")
	if !ok || !slices.Equal(groups, []string{"ops"}) {
		t.Fatalf("AuthorizedGroups = %v, %v; want [ops], true", groups, ok)
	}

	if err := store.RemoveUser("bob"); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}
	if groups, ok := store.AuthorizedGroups("bob", "bob@host"); ok {
		t.Fatalf("AuthorizedGroups after RemoveUser = %v, want none", groups)
	}
}

func TestAuthorizedGroupsFailsClosed(t *testing.T) {
	store, _ := openTestStore(t)
	if err := store.AddUser("alice", "alice@example.com", "admin"); err != nil {
		t.Fatal(err)
	}

	if groups, ok := store.AuthorizedGroups("alice", "someone@evil.com"); ok || groups != nil {
		t.Errorf("untrusted origin: got %v, %v; want nil, false", groups, ok)
	}
	if _, ok := store.AuthorizedGroups("mallory", "alice@example.com"); ok {
		t.Error("unknown identity was authorized")
	}
	if _, ok := store.AuthorizedGroups("alice", "ALICE@example.com"); ok {
		t.Error("origin comparison is not exact")
	}
}

func TestNamesAreCaseInsensitive(t *testing.T) {
	store, path := openTestStore(t)
	if err := store.AddUser("Alice", "alice@host", "Admin"); err != nil {
		t.Fatal(err)
	}

	groups, ok := store.AuthorizedGroups("ALICE", "alice@host")
	if !ok || !slices.Equal(groups, []string{"admin"}) {
		t.Fatalf("AuthorizedGroups(ALICE) = %v, %v; want [admin], true", groups, ok)
	}
	if err := store.AddGroup("aLiCe", "ops"); err != nil {
		t.Fatalf("AddGroup with mixed case: %v", err)
	}
	if _, ok := readRecords(t, path)["alice"]; !ok {
		t.Error("record not stored under the lower-cased name")
	}
}

func TestAddUserOverwrites(t *testing.T) {
	store, _ := openTestStore(t)
	if err := store.AddUser("carol", "carol@old", "admin"); err != nil {
		t.Fatal(err)
	}
	if err := store.AddGroup("carol", "ops"); err != nil {
		t.Fatal(err)
	}
	if err := store.AddUser("carol", "carol@new", "patroller"); err != nil {
		t.Fatalf("AddUser overwrite: %v", err)
	}

	if _, ok := store.AuthorizedGroups("carol", "carol@old"); ok {
		t.Error("old origin still trusted after overwrite")
	}
	groups, ok := store.AuthorizedGroups("carol", "carol@new")
	if !ok || !slices.Equal(groups, []string{"patroller"}) {
		t.Errorf("groups after overwrite = %v, want [patroller]", groups)
	}
}

func TestSetSemantics(t *testing.T) {
	store, path := openTestStore(t)
	if err := store.AddUser("dave", "dave@a", "admin"); err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if err := store.AddGroup("dave", "ops"); err != nil {
			t.Fatal(err)
		}
		if err := store.AddOrigin("dave", "dave@b"); err != nil {
			t.Fatal(err)
		}
	}

	want := record{Groups: []string{"admin", "ops"}, Hostmasks: []string{"dave@a", "dave@b"}}
	got := readRecords(t, path)["dave"]
	if !slices.Equal(got.Groups, want.Groups) || !slices.Equal(got.Hostmasks, want.Hostmasks) {
		t.Errorf("record = %+v, want %+v", got, want)
	}

	if err := store.RemoveGroup("dave", "ops"); err != nil {
		t.Fatal(err)
	}
	if err := store.RemoveGroup("dave", "ops"); err != nil {
		t.Errorf("removing an absent group: %v", err)
	}
	if err := store.RemoveOrigin("dave", "dave@a"); err != nil {
		t.Fatal(err)
	}
	if err := store.RemoveOrigin("dave", "dave@nowhere"); err != nil {
		t.Errorf("removing an absent origin: %v", err)
	}

	if _, ok := store.AuthorizedGroups("dave", "dave@a"); ok {
		t.Error("removed origin still trusted")
	}
	groups, ok := store.AuthorizedGroups("dave", "dave@b")
	if !ok || !slices.Equal(groups, []string{"admin"}) {
		t.Errorf("groups = %v, want [admin]", groups)
	}
}

func TestUnknownIdentity(t *testing.T) {
	store, path := openTestStore(t)

	operations := map[string]func() error{
		"AddGroup":     func() error { return store.AddGroup("ghost", "admin") },
		"AddOrigin":    func() error { return store.AddOrigin("ghost", "ghost@host") },
		"RemoveGroup":  func() error { return store.RemoveGroup("ghost", "admin") },
		"RemoveOrigin": func() error { return store.RemoveOrigin("ghost", "ghost@host") },
		"RemoveUser":   func() error { return store.RemoveUser("ghost") },
	}
	for name, operation := range operations {
		if err := operation(); !errors.Is(err, ErrUnknownIdentity) {
			t.Errorf("%s: error = %v, want ErrUnknownIdentity", name, err)
		}
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("failed mutations created the store file")
	}
}

func TestPersistenceAcrossOpen(t *testing.T) {
	store, path := openTestStore(t)
	if err := store.AddUser("erin", "erin@host", "admin"); err != nil {
		t.Fatal(err)
	}
	if err := store.AddOrigin("erin", "erin@laptop"); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	groups, ok := reopened.AuthorizedGroups("erin", "erin@laptop")
	if !ok || !slices.Equal(groups, []string{"admin"}) {
		t.Errorf("reopened store: %v, %v; want [admin], true", groups, ok)
	}
}

func TestOpenHandEditedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	content := `{
    // operators
    "Frank": {
        "groups": ["Admin", "admin"],
        "hostmasks": ["frank@host",],
    },
}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	identities := store.Identities()
	if len(identities) != 1 || identities[0].Name != "frank" {
		t.Fatalf("Identities = %+v, want one identity named frank", identities)
	}
	if !slices.Equal(identities[0].Groups, []string{"admin"}) {
		t.Errorf("groups = %v, want [admin]", identities[0].Groups)
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	if err := os.WriteFile(path, []byte(`{"frank": [`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, nil); err == nil {
		t.Fatal("Open accepted a corrupt store")
	}
}

func TestFailedWriteRollsBack(t *testing.T) {
	store, path := openTestStore(t)
	if err := store.AddUser("grace", "grace@host", "admin"); err != nil {
		t.Fatal(err)
	}

	store.writeFile = func(string, []byte, os.FileMode) error { return fmt.Errorf("disk full") }

	if err := store.AddGroup("grace", "ops"); err == nil {
		t.Fatal("AddGroup succeeded with a failing disk")
	}
	if err := store.AddUser("heidi", "heidi@host", "admin"); err == nil {
		t.Fatal("AddUser succeeded with a failing disk")
	}
	if err := store.RemoveUser("grace"); err == nil {
		t.Fatal("RemoveUser succeeded with a failing disk")
	}

	groups, ok := store.AuthorizedGroups("grace", "grace@host")
	if !ok || !slices.Equal(groups, []string{"admin"}) {
		t.Errorf("grace after failed writes = %v, %v; want [admin], true", groups, ok)
	}
	if _, ok := store.AuthorizedGroups("heidi", "heidi@host"); ok {
		t.Error("heidi exists in memory although her record was never written")
	}
	if records := readRecords(t, path); len(records) != 1 {
		t.Errorf("file has %d records, want 1", len(records))
	}
}

func TestConcurrentMutations(t *testing.T) {
	store, path := openTestStore(t)

	var waitGroup sync.WaitGroup
	for index := range 16 {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			name := fmt.Sprintf("user%02d", index)
			if err := store.AddUser(name, name+"@host", "admin"); err != nil {
				t.Errorf("AddUser(%s): %v", name, err)
			}
			store.AuthorizedGroups(name, name+"@host")
		}()
	}
	waitGroup.Wait()

	if got := len(store.Identities()); got != 16 {
		t.Errorf("Identities() has %d entries, want 16", got)
	}
	if got := len(readRecords(t, path)); got != 16 {
		t.Errorf("file has %d records, want 16", got)
	}
}
