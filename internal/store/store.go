package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/quizdeck/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketMeta     = []byte("meta")
	bucketProgress = []byte("progress")
	bucketItems    = []byte("items")
	bucketChat     = []byte("chat")
)

var allBuckets = [][]byte{bucketMeta, bucketProgress, bucketItems, bucketChat}

const (
	keyInstallID   = "install_id"
	keyCatalogInfo = "catalog_info"
)

// catalogInfoRecord is the serialized form of domain.CatalogInfo
type catalogInfoRecord struct {
	Version int       `json:"version"`
	Size    int       `json:"size"`
	SavedAt time.Time `json:"savedAt"`
}

// BoltStore implements domain.Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access).
	// In memory-only mode it is the only copy.
	cache map[string][]byte
}

var _ domain.Store = (*BoltStore)(nil)

// NewBoltStore opens (or creates) the database under baseDir. Data for
// different catalog URLs lives in separate subdirectories. An empty baseDir
// gives a memory-only store.
func NewBoltStore(baseDir, catalogURL string) (*BoltStore, error) {
	if baseDir == "" {
		// Memory-only mode (no persistence)
		return &BoltStore{cache: make(map[string][]byte)}, nil
	}

	dir := baseDir
	if catalogURL != "" {
		dir = filepath.Join(baseDir, hashCatalogURL(catalogURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "quizdeck.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, cache: make(map[string][]byte)}, nil
}

func hashCatalogURL(catalogURL string) string {
	normalized := strings.TrimRight(strings.ToLower(catalogURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func cacheKey(bucket []byte, key string) string {
	return string(bucket) + ":" + key
}

func (s *BoltStore) get(bucket []byte, key string, dest interface{}) bool {
	ck := cacheKey(bucket, key)

	// Check memory cache first
	s.mu.RLock()
	if data, ok := s.cache[ck]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[ck] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *BoltStore) set(bucket []byte, key string, value interface{}) error {
	return s.setMany(bucket, map[string]interface{}{key: value})
}

// setMany writes several keys of one bucket in a single transaction
func (s *BoltStore) setMany(bucket []byte, values map[string]interface{}) error {
	encoded := make(map[string][]byte, len(values))
	for key, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		encoded[key] = data
	}

	if s.db != nil {
		err := s.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucket)
			for key, data := range encoded {
				if err := b.Put([]byte(key), data); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	// Update memory cache only after the durable write succeeded
	s.mu.Lock()
	for key, data := range encoded {
		s.cache[cacheKey(bucket, key)] = data
	}
	s.mu.Unlock()

	return nil
}

func (s *BoltStore) delete(bucket []byte, key string) {
	s.mu.Lock()
	delete(s.cache, cacheKey(bucket, key))
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b != nil {
			b.Delete([]byte(key))
		}
		return nil
	})
}

func (s *BoltStore) clearBucket(bucket []byte) {
	s.mu.Lock()
	prefix := string(bucket) + ":"
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucket) != nil {
			if err := tx.DeleteBucket(bucket); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(bucket)
		return err
	})
}

// scan visits every raw value of a bucket. Memory-only stores scan the cache.
func (s *BoltStore) scan(bucket []byte, visit func(data []byte)) {
	if s.db == nil {
		s.mu.RLock()
		prefix := string(bucket) + ":"
		var values [][]byte
		for k, v := range s.cache {
			if strings.HasPrefix(k, prefix) {
				values = append(values, v)
			}
		}
		s.mu.RUnlock()
		for _, v := range values {
			visit(v)
		}
		return
	}

	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			visit(v)
			return nil
		})
	})
}

// === Installation ===

func (s *BoltStore) InstallationID() (string, error) {
	var id string
	if s.get(bucketMeta, keyInstallID, &id) && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := s.set(bucketMeta, keyInstallID, id); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return id, nil
}

// === Progress ===

func (s *BoltStore) LoadProgress(installID string) (domain.ProgressState, bool, error) {
	var state domain.ProgressState
	if !s.get(bucketProgress, installID, &state) {
		return domain.NewProgressState(), false, nil
	}
	state.Normalize()
	return state, true, nil
}

func (s *BoltStore) SaveProgress(installID string, state domain.ProgressState) error {
	if err := s.set(bucketProgress, installID, state); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

// === Catalog snapshot ===

func itemKey(globalIndex int) string {
	// Zero padded so cursor order equals index order
	return fmt.Sprintf("%010d", globalIndex)
}

func (s *BoltStore) GetCatalogInfo() (domain.CatalogInfo, bool) {
	var rec catalogInfoRecord
	if !s.get(bucketMeta, keyCatalogInfo, &rec) {
		return domain.CatalogInfo{}, false
	}
	return domain.CatalogInfo{Version: rec.Version, Size: rec.Size, FromCache: true}, true
}

func (s *BoltStore) SaveCatalogInfo(info domain.CatalogInfo) error {
	return s.set(bucketMeta, keyCatalogInfo, catalogInfoRecord{
		Version: info.Version,
		Size:    info.Size,
		SavedAt: time.Now(),
	})
}

func (s *BoltStore) GetItems(indices []int) ([]domain.Item, []int) {
	items := make([]domain.Item, 0, len(indices))
	var missing []int
	for _, idx := range indices {
		var item domain.Item
		if s.get(bucketItems, itemKey(idx), &item) {
			items = append(items, item)
		} else {
			missing = append(missing, idx)
		}
	}
	return items, missing
}

func (s *BoltStore) GetAllItems() []domain.Item {
	var items []domain.Item
	s.scan(bucketItems, func(data []byte) {
		var item domain.Item
		if json.Unmarshal(data, &item) == nil {
			items = append(items, item)
		}
	})
	sort.Slice(items, func(i, j int) bool { return items[i].GlobalIndex < items[j].GlobalIndex })
	return items
}

func (s *BoltStore) SaveItems(items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(items))
	for _, item := range items {
		values[itemKey(item.GlobalIndex)] = item
	}
	return s.setMany(bucketItems, values)
}

func (s *BoltStore) InvalidateItems() {
	s.clearBucket(bucketItems)
}

// === Chat history ===

func chatKey(globalIndex int) string {
	return "card:" + strconv.Itoa(globalIndex)
}

func (s *BoltStore) GetChatHistory(globalIndex int) ([]domain.ChatMessage, bool) {
	var messages []domain.ChatMessage
	ok := s.get(bucketChat, chatKey(globalIndex), &messages)
	return messages, ok
}

func (s *BoltStore) SaveChatHistory(globalIndex int, messages []domain.ChatMessage) error {
	return s.set(bucketChat, chatKey(globalIndex), messages)
}

func (s *BoltStore) DeleteChatHistory(globalIndex int) {
	s.delete(bucketChat, chatKey(globalIndex))
}

// === Invalidation ===

func (s *BoltStore) InvalidateAll() {
	var installID string
	s.get(bucketMeta, keyInstallID, &installID)

	for _, bucket := range allBuckets {
		s.clearBucket(bucket)
	}

	if installID != "" {
		s.set(bucketMeta, keyInstallID, installID)
	}
}
