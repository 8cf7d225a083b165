// Package settings persists the broker's on-disk state (spec §6): one
// flat key/value blob per user holding media-file associations,
// default-endpoint choices, and format-to-encoding-id mappings. The
// original's bespoke magic/length-prefixed-string binary format is
// replaced with a github.com/dgraph-io/badger/v4 database; the logical
// schema it round-trips is unchanged.
package settings

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	mberrors "github.com/alxayo/mediabroker/internal/errors"
)

// Key namespace, one prefix per logical section of the settings blob:
//
//	Media-file association  "assoc:" assoc:<category>:<name>   Association (JSON)
//	Default-endpoint choice  "deflt:" deflt:<slot>              DefaultChoice (JSON)
//	Format encoding mapping  "enc:"   enc:<name>                int64 encoding id (JSON)
const (
	prefixAssociation = "assoc:"
	prefixDefault     = "deflt:"
	prefixEncoding    = "enc:"
)

func keyAssociation(category, name string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixAssociation, category, name))
}

func keyDefault(slot string) []byte {
	return []byte(prefixDefault + slot)
}

func keyEncoding(name string) []byte {
	return []byte(prefixEncoding + name)
}

// Association is one category->name media-file entry: a reference path
// to the producing add-on/flavor plus a playback gain.
type Association struct {
	Category  string  `json:"category"`
	Name      string  `json:"name"`
	Reference string  `json:"reference"`
	Gain      float64 `json:"gain"`
}

// DefaultChoice is a persisted default-endpoint binding: a slot name to
// the add-on file reference and flavor name that should back it, not a
// live node id (node ids aren't stable across broker restarts).
type DefaultChoice struct {
	Slot      string `json:"slot"`
	Reference string `json:"reference"`
	Flavor    string `json:"flavor"`
}

// Store is one user's settings blob, backed by an embedded badger
// database. The zero value is not usable; construct with Open.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) the settings database rooted at
// path — conventionally one directory per user, per spec §6's "one
// file per user".
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, mberrors.NewState("settings.Open", fmt.Errorf("open settings database at %q: %w", path, err))
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) set(key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return mberrors.NewArgument("settings.set", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, b)
	})
}

func get[T any](s *Store, key []byte) (T, error) {
	var out T
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return mberrors.NewNotFound("settings.get", fmt.Errorf("key %q not set", key))
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	return out, err
}

// SetAssociation records a media-file association under category/name.
func (s *Store) SetAssociation(a Association) error {
	return s.set(keyAssociation(a.Category, a.Name), a)
}

// Association returns the association stored under category/name.
func (s *Store) Association(category, name string) (Association, error) {
	return get[Association](s, keyAssociation(category, name))
}

// ListAssociations returns every association in category, sorted by
// name, for enumerating one category's entries end to end.
func (s *Store) ListAssociations(category string) ([]Association, error) {
	prefix := []byte(prefixAssociation + category + ":")
	var out []Association
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var a Association
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			}); err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	return out, err
}

// SetDefault records a default-endpoint choice for slot.
func (s *Store) SetDefault(d DefaultChoice) error {
	return s.set(keyDefault(d.Slot), d)
}

// Default returns the default-endpoint choice recorded for slot.
func (s *Store) Default(slot string) (DefaultChoice, error) {
	return get[DefaultChoice](s, keyDefault(slot))
}

// SetEncoding records the stable encoding id minted for a format name.
func (s *Store) SetEncoding(name string, encodingID int64) error {
	return s.set(keyEncoding(name), encodingID)
}

// Encoding returns the encoding id recorded for a format name.
func (s *Store) Encoding(name string) (int64, error) {
	return get[int64](s, keyEncoding(name))
}
