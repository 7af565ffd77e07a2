package cache

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tierstore/tierstore/internal/circuit"
	"github.com/tierstore/tierstore/pkg/errors"
	"github.com/tierstore/tierstore/pkg/retry"
	"github.com/tierstore/tierstore/pkg/types"
)

// Blob frame layout: magic (4) | version (1) | flags (1) | xxhash64 of the
// payload (8, big endian) | payload. The payload is the codec output,
// gzip-compressed when the flag bit is set. The frame makes the persistence
// format explicit and versioned; anything that does not parse is treated as
// corruption and healed by deletion.
const (
	blobMagic   = "TSB1"
	blobVersion = 0x01
	blobExt     = ".blob"

	flagCompressed = 0x01

	blobHeaderLen = 14
)

// PersistentStoreConfig configures the disk-backed tier.
type PersistentStoreConfig struct {
	// Directory is the root of the shard tree.
	Directory string

	// Compression gzips payloads before framing.
	Compression bool

	// Retry bounds the write path before a failure is swallowed.
	Retry retry.Config

	// Breaker guards all disk I/O. Zero value uses breaker defaults.
	Breaker circuit.Config

	Logger   *zap.Logger
	Recorder types.Recorder
}

// PersistentStore is the L3 tier: a content-addressed blob store on local
// disk. Files are named by the sha256 of the logical key and sharded into
// two-hex-character prefix directories to bound directory fan-out.
//
// The store never returns errors from Get or Set: corruption self-heals by
// deletion and surfaces as a miss, write failures are swallowed after the
// retry budget and counted through the Recorder. L3 is never evicted by
// capacity; entries leave only through Delete, Clear, or corruption.
type PersistentStore[V any] struct {
	mu       sync.Mutex
	dir      string
	codec    types.Codec[V]
	compress bool
	retryer  *retry.Retryer
	breaker  *circuit.Breaker
	logger   *zap.Logger
	recorder types.Recorder
}

// NewPersistentStore creates the store and its root directory.
func NewPersistentStore[V any](codec types.Codec[V], config PersistentStoreConfig) (*PersistentStore[V], error) {
	if config.Directory == "" {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "persistent store directory is required").
			WithComponent("persistent")
	}
	if err := os.MkdirAll(config.Directory, 0750); err != nil {
		return nil, errors.WrapError(errors.ErrCodeInvalidConfig, "failed to create store directory", err).
			WithComponent("persistent").WithContext("directory", config.Directory)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := config.Recorder
	if recorder == nil {
		recorder = types.NopRecorder{}
	}

	return &PersistentStore[V]{
		dir:      config.Directory,
		codec:    codec,
		compress: config.Compression,
		retryer:  retry.New(config.Retry),
		breaker:  circuit.NewBreaker("l3-disk", config.Breaker),
		logger:   logger,
		recorder: recorder,
	}, nil
}

// Get returns the stored value for key, or absent. An unreadable or
// unparseable blob is deleted so the same failure does not repeat, and the
// access reports a miss.
func (s *PersistentStore[V]) Get(key string) (V, bool) {
	var zero V

	path := s.blobPath(key)

	var data []byte
	err := s.breaker.Execute(func() error {
		var readErr error
		data, readErr = os.ReadFile(path)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				// Absence is not a disk failure.
				data = nil
				return nil
			}
			return errors.WrapError(errors.ErrCodeBlobRead, "failed to read blob", readErr).
				WithComponent("persistent").WithContext("key", key)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("persistent tier read failed",
			zap.String("key", key), zap.Error(err))
		return zero, false
	}
	if data == nil {
		return zero, false
	}

	value, decodeErr := s.decodeBlob(data)
	if decodeErr != nil {
		// Corrupt blob: heal by deletion so future gets do not repeat the
		// identical failure.
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			s.logger.Warn("failed to remove corrupt blob",
				zap.String("path", path), zap.Error(removeErr))
		}
		s.recorder.RecordCorruptionRepair()
		s.logger.Warn("corrupt blob removed",
			zap.String("key", key), zap.Error(decodeErr))
		return zero, false
	}

	return value, true
}

// Set serializes and writes the value for key, creating shard directories
// as needed. Failures are retried, then swallowed: a Set that returns does
// not guarantee the blob reached disk.
func (s *PersistentStore[V]) Set(key string, value V) {
	frame, err := s.encodeBlob(value)
	if err != nil {
		s.recorder.RecordDroppedWrite()
		s.logger.Warn("failed to encode value for persistent tier",
			zap.String("key", key), zap.Error(err))
		return
	}

	path := s.blobPath(key)

	err = s.retryer.Do(func() error {
		return s.breaker.Execute(func() error {
			if writeErr := s.writeBlob(path, frame); writeErr != nil {
				return errors.WrapError(errors.ErrCodeBlobWrite, "failed to write blob", writeErr).
					WithComponent("persistent").WithContext("key", key)
			}
			return nil
		})
	})
	if err != nil {
		s.recorder.RecordDroppedWrite()
		s.logger.Warn("persistent tier write dropped",
			zap.String("key", key), zap.Error(err))
	}
}

// Delete removes the blob for key. It reports whether a blob existed.
func (s *PersistentStore[V]) Delete(key string) bool {
	path := s.blobPath(key)
	err := os.Remove(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to delete blob",
				zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return true
}

// Clear removes the entire backing tree and recreates an empty root.
func (s *PersistentStore[V]) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(s.dir, 0750)
		}
		return errors.WrapError(errors.ErrCodeStoreClear, "failed to list store directory", err).
			WithComponent("persistent")
	}

	var clearErr error
	for _, entry := range entries {
		if removeErr := os.RemoveAll(filepath.Join(s.dir, entry.Name())); removeErr != nil {
			clearErr = multierr.Append(clearErr, removeErr)
		}
	}
	if clearErr != nil {
		return errors.WrapError(errors.ErrCodeStoreClear, "failed to clear store", clearErr).
			WithComponent("persistent")
	}
	return nil
}

// Len counts the backing blob files. Cost is proportional to the file
// count; not for hot paths.
func (s *PersistentStore[V]) Len() int {
	count := 0
	_ = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable subtrees
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), blobExt) {
			count++
		}
		return nil
	})
	return count
}

// BreakerState exposes the disk breaker state for health reporting.
func (s *PersistentStore[V]) BreakerState() circuit.State {
	return s.breaker.GetState()
}

// blobPath maps a logical key to its shard path:
// <root>/<sha256(key)[0:2]>/<sha256(key)>.blob. The hash names the file;
// it is not a content hash of the value.
func (s *PersistentStore[V]) blobPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(s.dir, name[:2], name+blobExt)
}

func (s *PersistentStore[V]) encodeBlob(value V) ([]byte, error) {
	payload, err := s.codec.Encode(value)
	if err != nil {
		return nil, errors.WrapError(errors.ErrCodeEncodeFailed, "codec encode failed", err).
			WithComponent("persistent")
	}

	var flags byte
	if s.compress {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(payload); err == nil {
			if err := gz.Close(); err == nil {
				payload = buf.Bytes()
				flags |= flagCompressed
			}
		}
	}

	frame := make([]byte, blobHeaderLen, blobHeaderLen+len(payload))
	copy(frame[0:4], blobMagic)
	frame[4] = blobVersion
	frame[5] = flags
	binary.BigEndian.PutUint64(frame[6:14], xxhash.Sum64(payload))
	return append(frame, payload...), nil
}

func (s *PersistentStore[V]) decodeBlob(frame []byte) (V, error) {
	var zero V

	if len(frame) < blobHeaderLen || string(frame[0:4]) != blobMagic {
		return zero, errors.NewError(errors.ErrCodeBlobCorrupt, "bad blob header")
	}
	if frame[4] != blobVersion {
		return zero, errors.NewError(errors.ErrCodeBlobCorrupt, "unsupported blob version").
			WithContext("version", strconv.Itoa(int(frame[4])))
	}

	flags := frame[5]
	payload := frame[blobHeaderLen:]

	if binary.BigEndian.Uint64(frame[6:14]) != xxhash.Sum64(payload) {
		return zero, errors.NewError(errors.ErrCodeBlobCorrupt, "blob checksum mismatch")
	}

	if flags&flagCompressed != 0 {
		gz, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return zero, errors.WrapError(errors.ErrCodeBlobCorrupt, "bad gzip stream", err)
		}
		decompressed, err := io.ReadAll(gz)
		closeErr := gz.Close()
		if err != nil {
			return zero, errors.WrapError(errors.ErrCodeBlobCorrupt, "gzip decompress failed", err)
		}
		if closeErr != nil {
			return zero, errors.WrapError(errors.ErrCodeBlobCorrupt, "gzip close failed", closeErr)
		}
		payload = decompressed
	}

	value, err := s.codec.Decode(payload)
	if err != nil {
		return zero, errors.WrapError(errors.ErrCodeDecodeFailed, "codec decode failed", err)
	}
	return value, nil
}

// writeBlob writes atomically: temp file in the shard directory, then
// rename. Shard directory creation tolerates concurrent creators.
func (s *PersistentStore[V]) writeBlob(path string, frame []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(frame); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
