package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"go.uber.org/zap"

	"github.com/FairForge/recoverd/internal/catalog"
	"github.com/FairForge/recoverd/internal/drivers"
	"github.com/FairForge/recoverd/internal/pipeline"
)

// StoreUnavailableError reports that artifact store I/O exhausted its
// retries with no usable fallback.
type StoreUnavailableError struct {
	Op    string
	Key   string
	Cause error
}

func (e StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %s %s: %v", e.Op, e.Key, e.Cause)
}

func (e StoreUnavailableError) Unwrap() error { return e.Cause }

// CorruptArtifactError reports a stored artifact whose bytes no
// longer decode: the blob at rest does not match what Put wrote.
type CorruptArtifactError struct {
	Key   string
	Cause error
}

func (e CorruptArtifactError) Error() string {
	return fmt.Sprintf("corrupt artifact %s: %v", e.Key, e.Cause)
}

func (e CorruptArtifactError) Unwrap() error { return e.Cause }

// Store provides put/get/list/delete over a durable remote blob store
// with an optional local filesystem mirror. Compression and
// encryption are applied transparently by the pipeline; Get reverses
// exactly the transform applied by the matching Put.
type Store struct {
	remote   drivers.Driver
	local    *drivers.LocalDriver // nil = no mirror
	pipeline *pipeline.Pipeline
	retry    *drivers.RetryPolicy
	prefix   string
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLocalMirror mirrors writes to a local driver and falls back to
// it when the remote store is unreachable.
func WithLocalMirror(local *drivers.LocalDriver) Option {
	return func(s *Store) { s.local = local }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy *drivers.RetryPolicy) Option {
	return func(s *Store) { s.retry = policy }
}

// WithPrefix overrides the default "backups" key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// NewStore creates an artifact store over the given remote driver.
func NewStore(remote drivers.Driver, p *pipeline.Pipeline, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		remote:   remote,
		pipeline: p,
		retry:    drivers.NewRetryPolicy(drivers.WithLogger(logger)),
		prefix:   "backups",
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the remote key for a recovery point id:
// <prefix>/<id>.<ext>, where the extension reflects the compression
// state.
func (s *Store) Key(recoveryPointID string) string {
	return path.Join(s.prefix, recoveryPointID+"."+s.pipeline.Extension())
}

// Put encodes and stores a payload for the given recovery point,
// returning where the artifact lives. The remote store is written
// first; a configured local mirror gets a copy for fast restores. A
// mirror failure is logged, not fatal: the remote copy satisfies the
// durability contract.
func (s *Store) Put(ctx context.Context, recoveryPointID string, payload []byte) (catalog.Location, error) {
	key := s.Key(recoveryPointID)

	blob, err := s.pipeline.Encode(payload)
	if err != nil {
		return catalog.Location{}, fmt.Errorf("encode artifact %s: %w", recoveryPointID, err)
	}

	err = s.retry.Execute(ctx, func() error {
		return s.remote.Put(ctx, key, bytes.NewReader(blob))
	})
	if err != nil {
		return catalog.Location{}, StoreUnavailableError{Op: "put", Key: key, Cause: err}
	}

	loc := catalog.Location{RemoteKey: key}

	if s.local != nil {
		if err := s.local.Put(ctx, key, bytes.NewReader(blob)); err != nil {
			s.logger.Warn("local mirror write failed",
				zap.String("key", key),
				zap.Error(err))
		} else {
			loc.LocalPath = key
		}
	}

	return loc, nil
}

// Get fetches and decodes the artifact at the given location, falling
// back to the local mirror when the remote store is unreachable.
func (s *Store) Get(ctx context.Context, loc catalog.Location) ([]byte, error) {
	blob, remoteErr := s.fetch(ctx, s.remote, loc.RemoteKey)
	if remoteErr == nil {
		return s.decode(loc.RemoteKey, blob)
	}

	if s.local != nil && loc.LocalPath != "" {
		s.logger.Warn("remote fetch failed, falling back to local mirror",
			zap.String("key", loc.RemoteKey),
			zap.Error(remoteErr))

		blob, localErr := s.fetch(ctx, s.local, loc.LocalPath)
		if localErr == nil {
			return s.decode(loc.LocalPath, blob)
		}
		return nil, StoreUnavailableError{Op: "get", Key: loc.RemoteKey,
			Cause: fmt.Errorf("remote: %v, local: %w", remoteErr, localErr)}
	}

	return nil, StoreUnavailableError{Op: "get", Key: loc.RemoteKey, Cause: remoteErr}
}

// List returns the remote keys of all stored artifacts.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.retry.Execute(ctx, func() error {
		var err error
		keys, err = s.remote.List(ctx, s.prefix)
		return err
	})
	if err != nil {
		return nil, StoreUnavailableError{Op: "list", Key: s.prefix, Cause: err}
	}
	return keys, nil
}

// Delete removes the artifact from the remote store and any local
// mirror copy. Partial deletions surface as errors so the caller can
// retry on the next pass.
func (s *Store) Delete(ctx context.Context, loc catalog.Location) error {
	err := s.retry.Execute(ctx, func() error {
		return s.remote.Delete(ctx, loc.RemoteKey)
	})
	if err != nil {
		return StoreUnavailableError{Op: "delete", Key: loc.RemoteKey, Cause: err}
	}

	if s.local != nil && loc.LocalPath != "" {
		if err := s.local.Delete(ctx, loc.LocalPath); err != nil {
			return fmt.Errorf("delete local mirror %s: %w", loc.LocalPath, err)
		}
	}
	return nil
}

func (s *Store) fetch(ctx context.Context, driver drivers.Driver, key string) ([]byte, error) {
	var blob []byte
	err := s.retry.Execute(ctx, func() error {
		reader, err := driver.Get(ctx, key)
		if err != nil {
			return err
		}
		defer func() { _ = reader.Close() }()

		blob, err = io.ReadAll(reader)
		return err
	})
	return blob, err
}

func (s *Store) decode(key string, blob []byte) ([]byte, error) {
	payload, err := s.pipeline.Decode(blob)
	if err != nil {
		return nil, CorruptArtifactError{Key: key, Cause: err}
	}
	return payload, nil
}
