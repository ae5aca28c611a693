// Package dedup maps content digests of uploaded payloads to previously
// issued mxc:// URIs, so re-importing a pack never uploads the same bytes
// twice.
//
// The durable form is an append-only log with one JSON record per line:
//
//	{"hash":[...64 bytes...],"url":"mxc://..."}
//
// An in-memory index is rebuilt from the log at startup. Malformed lines
// are warned about and skipped; a single corrupted line must not make
// re-imports impossible.
package dedup

import (
	"bufio"
	"crypto/sha512"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// Hash is the content digest of an uploaded payload. Digest equality is
// treated as content equality.
type Hash [sha512.Size]byte

// Sum computes the content digest over the exact bytes of a payload.
func Sum(data []byte) Hash {
	return sha512.Sum512(data)
}

// Store maps content digests to target media references. A nil Store means
// deduplication is disabled.
type Store interface {
	// Get returns the media reference recorded for hash, if any.
	// Safe for unlimited concurrent callers.
	Get(hash Hash) (string, bool)
	// Add records a digest/reference pair durably and in memory.
	Add(hash Hash, url string) error
}

// record is one line of the append-only log.
type record struct {
	Hash Hash   `json:"hash"`
	URL  string `json:"url"`
}

// FileStore is a Store backed by an append-only JSONL file.
type FileStore struct {
	mu    sync.RWMutex
	index map[Hash]string
	file  *os.File
}

var _ Store = (*FileStore)(nil)

// OpenFileStore opens or creates the backing log at path and rebuilds the
// in-memory index from it. Lines that fail to parse are logged as warnings
// and skipped; the store still starts with whatever it could parse.
// Duplicate hashes are last-write-wins. The directory containing path must
// already exist.
func OpenFileStore(path string) (*FileStore, error) {
	index := make(map[Hash]string)

	existing, err := os.Open(path)
	switch {
	case err == nil:
		scanner := bufio.NewScanner(existing)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			var rec record
			if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
				log.Warn().
					Str("path", path).
					Int("line", lineNo).
					Err(err).
					Msg("Skipping unreadable dedup record")
				continue
			}
			index[rec.Hash] = rec.URL
		}
		scanErr := scanner.Err()
		existing.Close()
		if scanErr != nil {
			return nil, fmt.Errorf("read dedup log %s: %w", path, scanErr)
		}
	case os.IsNotExist(err):
		log.Debug().Str("path", path).Msg("Dedup log not found, starting a new one")
	default:
		return nil, fmt.Errorf("open dedup log %s: %w", path, err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dedup log %s for append: %w", path, err)
	}

	log.Debug().Str("path", path).Int("entries", len(index)).Msg("Dedup store loaded")
	return &FileStore{index: index, file: file}, nil
}

// Get returns the media reference recorded for hash, if any.
func (s *FileStore) Get(hash Hash) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	url, ok := s.index[hash]
	return url, ok
}

// Add appends one record to the durable log and updates the in-memory
// index. The log append and index insert happen under a single write lock
// so concurrent Adds can never interleave their log writes.
func (s *FileStore) Add(hash Hash, url string) error {
	line, err := json.Marshal(record{Hash: hash, URL: url})
	if err != nil {
		return fmt.Errorf("encode dedup record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append dedup record: %w", err)
	}
	s.index[hash] = url
	return nil
}

// Len returns the number of entries in the in-memory index.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Close closes the backing log file.
func (s *FileStore) Close() error {
	return s.file.Close()
}
