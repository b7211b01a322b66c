// Package store persists the watch position and recent notification keys
// between runs, so a restart resumes where the previous process stopped
// instead of re-notifying the whole mailbox.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creativeprojects/mailwatch/lib"
	bolt "go.etcd.io/bbolt"
)

const (
	metadataBucket  = "metadata"
	cursorBucket    = "cursor"
	ledgerBucket    = "ledger"
	versionKey      = "version"
	boltFileVersion = 1
)

// Cursor is the watch position in one mailbox: the highest UID already
// processed, scoped by the UIDVALIDITY it was observed under.
type Cursor struct {
	UidValidity uint32
	Uid         uint32
	UpdatedAt   time.Time
}

type BoltStore struct {
	dbFile string
	db     *bolt.DB
	log    lib.Logger
	// tag identifies the account and folder being watched
	tag string
}

func NewBoltStore(filename, tag string) (*BoltStore, error) {
	return NewBoltStoreWithLogger(filename, tag, nil)
}

func NewBoltStoreWithLogger(filename, tag string, logger lib.Logger) (*BoltStore, error) {
	if logger == nil {
		logger = &lib.NoLog{}
	}
	options := bolt.DefaultOptions
	options.Timeout = 10 * time.Second

	err := os.MkdirAll(filepath.Dir(filename), 0700)
	if err != nil {
		return nil, fmt.Errorf("cannot open %q: %w", filename, err)
	}

	db, err := bolt.Open(filename, 0600, options)
	if err != nil {
		return nil, err
	}

	store := &BoltStore{
		dbFile: filename,
		db:     db,
		log:    logger,
		tag:    tag,
	}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *BoltStore) init() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		if data := bucket.Get([]byte(versionKey)); data != nil {
			version, err := DeserializeInt(data)
			if err != nil {
				return fmt.Errorf("cannot read version of file %q: %w", s.dbFile, err)
			}
			if version != boltFileVersion {
				return fmt.Errorf("file %q was created by a different version (file version %d, supported version %d)", s.dbFile, version, boltFileVersion)
			}
		} else {
			version, err := SerializeInt(boltFileVersion)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(versionKey), version); err != nil {
				return err
			}
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(cursorBucket)); err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists([]byte(ledgerBucket))
		return err
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Cursor returns the persisted watch position, or a zero cursor when none
// was saved yet. A corrupted entry is treated as absent.
func (s *BoltStore) Cursor() (uint32, uint32) {
	cursor := &Cursor{}
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(cursorBucket))
		if bucket == nil {
			return nil
		}
		data := bucket.Get([]byte(s.tag))
		if data == nil {
			return nil
		}
		loaded, err := DeserializeObject[Cursor](data)
		if err != nil {
			return err
		}
		cursor = loaded
		return nil
	})
	if err != nil {
		s.log.Printf("Cannot read cursor: %s", err)
		return 0, 0
	}
	return cursor.UidValidity, cursor.Uid
}

// SetCursor saves the watch position. Errors are logged, not returned: a
// failed save only costs some duplicate work after a restart.
func (s *BoltStore) SetCursor(uidValidity, uid uint32) {
	cursor := &Cursor{
		UidValidity: uidValidity,
		Uid:         uid,
		UpdatedAt:   time.Now(),
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(cursorBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %q not found", cursorBucket)
		}
		data, err := SerializeObject(cursor)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(s.tag), data)
	})
	if err != nil {
		s.log.Printf("Cannot save cursor: %s", err)
		return
	}
	s.log.Printf("Cursor saved: uidvalidity=%d uid=%d", uidValidity, uid)
}

// LedgerKeys returns the persisted notification keys, oldest first.
func (s *BoltStore) LedgerKeys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(ledgerBucket))
		if bucket == nil {
			return nil
		}
		data := bucket.Get([]byte(s.tag))
		if data == nil {
			return nil
		}
		loaded, err := DeserializeObject[[]string](data)
		if err != nil {
			return err
		}
		keys = *loaded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot read ledger: %w", err)
	}
	return keys, nil
}

// SaveLedgerKeys persists a snapshot of the notification keys.
func (s *BoltStore) SaveLedgerKeys(keys []string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(ledgerBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %q not found", ledgerBucket)
		}
		data, err := SerializeObject(&keys)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(s.tag), data)
	})
	if err != nil {
		return fmt.Errorf("cannot save ledger: %w", err)
	}
	s.log.Printf("Ledger saved: %d key(s)", len(keys))
	return nil
}
