// Package cache provides the durable, file-backed entity cache and the
// in-memory and Redis layers placed in front of it.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/lolfu/winrate-engine/internal/models"
)

// Buckets partition the store by resource. A player id addresses both its
// match list and its tier, so the bucket is part of the address.
const (
	BucketMatch     = "match"
	BucketMatchList = "matchlist"
	BucketTier      = "tier"
	BucketSummoner  = "summoner"
)

const fileExt = ".json"

var ErrInvalidPayload = errors.New("payload is not valid JSON")

// Record is one cached payload.
type Record struct {
	Key       models.EntityKey
	Bucket    string
	Payload   []byte
	FetchedAt time.Time
}

type envelope struct {
	Key       string          `json:"key"`
	FetchedAt time.Time       `json:"fetched_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Store is a content-addressed file cache. Files live under
// root/bucket/NN/MM/<id>.json where NN and MM are the last two pairs of
// decimal digits of the id, bounding every directory to 100 children.
//
// Write is create-only: the record is staged in a temporary file and hard
// linked into place, so concurrent writers, including other processes, either
// create the record or observe that it already exists.
type Store struct {
	root   string
	now    func() time.Time
	logger *zap.SugaredLogger
}

func NewStore(root string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{root: root, now: time.Now, logger: logger.Sugar()}, nil
}

func (s *Store) Root() string { return s.root }

// Path returns the file location of key within bucket.
func (s *Store) Path(bucket string, key models.EntityKey) string {
	var shard uint64
	var name string
	if key.Numeric() {
		id := key.ID
		if id < 0 {
			id = -id
		}
		shard = uint64(id)
		name = strconv.FormatInt(key.ID, 10)
	} else {
		shard = xxhash.Sum64String(key.Name)
		name = url.PathEscape(key.Name)
	}
	return filepath.Join(s.root, bucket,
		fmt.Sprintf("%02d", shard%100),
		fmt.Sprintf("%02d", (shard/100)%100),
		name+fileExt)
}

// Read returns the record for key, or ok=false when absent.
func (s *Store) Read(bucket string, key models.EntityKey) (Record, bool, error) {
	data, err := os.ReadFile(s.Path(bucket, key))
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("read %s/%s: %w", bucket, key, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Record{}, false, fmt.Errorf("decode %s/%s: %w", bucket, key, err)
	}
	return Record{Key: key, Bucket: bucket, Payload: env.Payload, FetchedAt: env.FetchedAt}, true, nil
}

// ReadFresh is Read for refresh-on-expiry entities: records older than ttl
// are reported absent.
func (s *Store) ReadFresh(bucket string, key models.EntityKey, ttl time.Duration) (Record, bool, error) {
	rec, ok, err := s.Read(bucket, key)
	if err != nil || !ok {
		return rec, ok, err
	}
	if s.now().Sub(rec.FetchedAt) > ttl {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Write creates the record for an immutable entity. When the record already
// exists it is left untouched and created is false; that is not an error.
func (s *Store) Write(bucket string, key models.EntityKey, payload []byte) (created bool, err error) {
	_, created, err = s.create(bucket, key, payload)
	return created, err
}

// create is Write, also returning the fetch time stamped on a created record.
func (s *Store) create(bucket string, key models.EntityKey, payload []byte) (time.Time, bool, error) {
	path := s.Path(bucket, key)
	if _, err := os.Stat(path); err == nil {
		return time.Time{}, false, nil
	}

	at := s.now().UTC()
	tmp, err := s.stage(path, key, payload, at)
	if err != nil {
		return time.Time{}, false, err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("link %s/%s: %w", bucket, key, err)
	}
	return at, true, nil
}

// Replace atomically overwrites the record of a refresh-on-expiry entity.
func (s *Store) Replace(bucket string, key models.EntityKey, payload []byte) error {
	path := s.Path(bucket, key)
	tmp, err := s.stage(path, key, payload, s.now().UTC())
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *Store) stage(path string, key models.EntityKey, payload []byte, at time.Time) (string, error) {
	if !json.Valid(payload) {
		return "", fmt.Errorf("%s: %w", key, ErrInvalidPayload)
	}
	data, err := json.Marshal(envelope{Key: key.String(), FetchedAt: at, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", key, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create shard %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", key, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("stage %s: %w", key, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("sync %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	return f.Name(), nil
}

// Walk calls fn for every key stored in bucket. Staging files are skipped.
func (s *Store) Walk(bucket string, kind models.EntityKind, fn func(models.EntityKey) error) error {
	dir := filepath.Join(s.root, bucket)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		name := d.Name()
		if d.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			return nil
		}
		base := strings.TrimSuffix(name, fileExt)

		var key models.EntityKey
		switch kind {
		case models.KindMatch, models.KindPlayer:
			id, err := strconv.ParseInt(base, 10, 64)
			if err != nil {
				s.logger.Warnw("Skipping unrecognized cache file", "path", path)
				return nil
			}
			key = models.EntityKey{Kind: kind, ID: id}
		default:
			n, err := url.PathUnescape(base)
			if err != nil {
				s.logger.Warnw("Skipping unrecognized cache file", "path", path)
				return nil
			}
			key = models.EntityKey{Kind: kind, Name: n}
		}
		return fn(key)
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", bucket, err)
	}
	return nil
}
