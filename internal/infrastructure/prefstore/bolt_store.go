// Package prefstore persists adaptive user preference profiles.
package prefstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/pkg/filesystem"
	"github.com/doeshing/vocmd/internal/ports"
)

var profilesBucket = []byte("profiles")

// BoltStore keeps one JSON document per (user, context) in a bbolt file.
type BoltStore struct {
	db *bolt.DB
}

// DefaultPath is ~/.vocmd/preferences.db.
func DefaultPath() string {
	return filesystem.AppPath("preferences.db")
}

// Open creates or opens the store at path.
func Open(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("create preference dir: %w", err)
	}
	db, err := bolt.Open(path, domain.SecureFilePermissions, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open preference db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(profilesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close releases the file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Load returns the stored profile, if any.
func (s *BoltStore) Load(userID string, ct domain.ContextType) (domain.UserPreferenceProfile, bool, error) {
	var profile domain.UserPreferenceProfile
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(profilesBucket).Get(key(userID, ct))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &profile)
	})
	if err != nil {
		return domain.UserPreferenceProfile{}, false, fmt.Errorf("load profile %s/%s: %w", userID, ct, err)
	}
	if found && profile.Usage == nil {
		profile.Usage = map[string]domain.UsagePattern{}
	}
	return profile, found, nil
}

// Save writes the profile.
func (s *BoltStore) Save(p domain.UserPreferenceProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(profilesBucket).Put(key(p.UserID, p.Context), data)
	})
}

// Profiles lists every stored profile for a user.
func (s *BoltStore) Profiles(userID string) ([]domain.UserPreferenceProfile, error) {
	var out []domain.UserPreferenceProfile
	prefix := []byte(userID + "|")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(profilesBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var p domain.UserPreferenceProfile
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func key(userID string, ct domain.ContextType) []byte {
	return []byte(userID + "|" + string(ct))
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}

var _ ports.PreferenceStore = (*BoltStore)(nil)
