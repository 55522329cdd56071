package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketPartitionMetadata = []byte("partition-metadata")

// BoltStore is the reference PartitionMetadataStore: a single-file
// embedded key-value store (bbolt), one bucket, keyed by partition ID.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a bbolt database at
// <dataDir>/partitionkit.db.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "partitionkit.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPartitionMetadata)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create metadata bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) LoadPaused(partitionID uint32) (processingPaused, exportingPaused bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPartitionMetadata)
		data := b.Get(partitionKey(partitionID))
		if data == nil {
			return nil
		}
		var flags pausedFlags
		if err := json.Unmarshal(data, &flags); err != nil {
			return fmt.Errorf("decode partition %d metadata: %w", partitionID, err)
		}
		processingPaused = flags.ProcessingPaused
		exportingPaused = flags.ExportingPaused
		return nil
	})
	return processingPaused, exportingPaused, err
}

func (s *BoltStore) SavePaused(partitionID uint32, processingPaused, exportingPaused bool) error {
	data, err := json.Marshal(pausedFlags{ProcessingPaused: processingPaused, ExportingPaused: exportingPaused})
	if err != nil {
		return fmt.Errorf("encode partition %d metadata: %w", partitionID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPartitionMetadata)
		return b.Put(partitionKey(partitionID), data)
	})
}

func partitionKey(partitionID uint32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, partitionID)
	return key
}
