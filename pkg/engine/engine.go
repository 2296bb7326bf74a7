// Package engine orchestrates record writes: versioning, owner-aware
// merging, ledger promotion, persistence, and event emission.
package engine

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmphub/dmpsync/pkg/engine/comparator"
	"github.com/dmphub/dmpsync/pkg/engine/ledger"
	"github.com/dmphub/dmpsync/pkg/engine/merger"
	"github.com/dmphub/dmpsync/pkg/engine/notifier"
	"github.com/dmphub/dmpsync/pkg/engine/versioner"
	"github.com/dmphub/dmpsync/pkg/plan"
	"github.com/dmphub/dmpsync/pkg/storage"
	"github.com/dmphub/dmpsync/pkg/telemetry"
	"github.com/dmphub/dmpsync/pkg/version"
)

// Write-boundary errors. Resolved locally and returned typed to the
// caller; nothing here retries network calls.
var (
	// ErrForbidden: the writer is unidentified, or a non-owner writer's
	// proposal does not target the record it claims to.
	ErrForbidden = errors.New("writer is not permitted to perform this write")

	// ErrNoChange: the proposed state is semantically identical to the
	// current state. A non-fatal rejection; callers short-circuit
	// without writing.
	ErrNoChange = errors.New("proposed state matches current state")

	// ErrAllocExhausted: the identifier collision retry budget ran out.
	ErrAllocExhausted = errors.New("identifier allocation attempts exhausted")
)

// allocAttempts bounds the identifier collision retry loop.
const allocAttempts = 10

const suffixAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ0123456789"

// Config holds engine settings.
type Config struct {
	// Shoulder is the DOI shoulder new identifiers are minted under.
	Shoulder string

	// EventBus names the EventBridge bus; empty disables emission.
	EventBus string

	// Debounce overrides the same-owner version debounce window.
	Debounce time.Duration

	// SnapshotArchiveDir mirrors snapshots to a local directory when no
	// S3 archive is wired in.
	SnapshotArchiveDir string

	JsonLogs bool

	// Telemetry config.
	OtelEndpoint  string
	SkipTelemetry bool

	// Dependencies.
	Logger *slog.Logger
}

// Engine is the runtime core.
type Engine struct {
	Store      storage.RecordStore
	Versioner  *versioner.Versioner
	Merger     *merger.Merger
	Ledger     *ledger.Ledger
	Comparator *comparator.Comparator
	Publisher  notifier.Publisher
	Logger     *slog.Logger
	Tracer     trace.Tracer

	config  Config
	archive storage.BlobStore
	now     func() time.Time
}

// Option defines a functional configuration override.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.Logger = l }
}

// WithPublisher wires the event collaborator.
func WithPublisher(p notifier.Publisher) Option {
	return func(e *Engine) { e.Publisher = p }
}

// WithArchive mirrors snapshots to the given blob store.
func WithArchive(a storage.BlobStore) Option {
	return func(e *Engine) { e.archive = a }
}

// WithClock overrides the time source across the engine. Tests only.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithConfig sets raw config.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.config = cfg
		if cfg.Logger != nil {
			e.Logger = cfg.Logger
		}
	}
}

// New initializes the Engine against the given record store. Components
// are assembled after the options settle so archive, debounce, and clock
// overrides compose in any order.
func New(ctx context.Context, store storage.RecordStore, opts ...Option) (*Engine, error) {
	e := &Engine{
		Store:      store,
		Comparator: comparator.New(),
		Tracer:     otel.Tracer("dmpsync/engine"),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.Logger == nil {
		var handler slog.Handler = slog.NewJSONHandler(os.Stdout, nil)
		if !e.config.JsonLogs {
			handler = slog.NewTextHandler(os.Stderr, nil)
		}
		e.Logger = slog.New(handler)
	}

	if e.archive == nil && e.config.SnapshotArchiveDir != "" {
		e.archive = storage.NewLocalBlobStore(e.config.SnapshotArchiveDir)
	}

	vOpts := []versioner.Option{
		versioner.WithDebounce(e.config.Debounce),
		versioner.WithClock(e.now),
	}
	if e.archive != nil {
		vOpts = append(vOpts, versioner.WithArchive(e.archive))
	}
	e.Versioner = versioner.New(store, vOpts...)
	e.Merger = merger.New(merger.WithClock(e.now))
	e.Ledger = ledger.New(ledger.WithClock(e.now))

	slog.SetDefault(e.Logger)

	if !e.config.SkipTelemetry {
		if _, err := telemetry.Init(ctx, version.AppName, version.Current, e.config.OtelEndpoint); err != nil {
			e.Logger.Warn("Telemetry failed", "error", err)
		}
	}

	return e, nil
}

// CreateRecord mints an identifier when the proposal carries none and
// persists the first authoritative state. The writer becomes the record's
// owner.
func (e *Engine) CreateRecord(ctx context.Context, writerID string, proposed *plan.Record) (*plan.Record, error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.CreateRecord")
	defer span.End()

	if strings.TrimSpace(writerID) == "" {
		return nil, fmt.Errorf("%w: missing writer identity", ErrForbidden)
	}
	if err := proposed.Validate(); err != nil {
		return nil, err
	}

	rec := proposed.Clone()
	if rec.ID == "" {
		id, err := e.allocateIdentifier(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		rec.ID = id
	} else {
		exists, err := e.Store.Exists(ctx, rec.ID, storage.VersionLatest)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: %s already exists", ErrForbidden, rec.ID)
		}
	}

	now := e.now().UTC()
	rec.OwnerID = writerID
	rec.UpdaterID = writerID
	rec.Created = now
	rec.Modified = now
	for i := range rec.Funding {
		rec.Funding[i].ProvenanceID = ""
	}
	for i := range rec.RelatedIdentifiers {
		rec.RelatedIdentifiers[i].ProvenanceID = ""
	}

	if err := e.Store.Put(ctx, rec.ID, storage.VersionLatest, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("authoritative write failed: %w", err)
	}

	span.SetAttributes(attribute.String("dmp.id", rec.ID))
	e.Logger.Info("Record created", "dmp_id", rec.ID, "owner", writerID)
	e.emitEvents(ctx, rec, writerID)
	return rec, nil
}

// UpdateRecord reconciles a writer's proposed state against the current
// authoritative state and persists the result. Owner writes also promote
// approved ledger candidates.
func (e *Engine) UpdateRecord(ctx context.Context, writerID, id string, proposed *plan.Record) (*plan.Record, error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.UpdateRecord",
		trace.WithAttributes(attribute.String("dmp.id", id)))
	defer span.End()

	if strings.TrimSpace(writerID) == "" {
		return nil, fmt.Errorf("%w: missing writer identity", ErrForbidden)
	}
	if err := proposed.Validate(); err != nil {
		return nil, err
	}

	current, err := e.Store.Get(ctx, id, storage.VersionLatest)
	if err != nil {
		return nil, err
	}
	if current.Tombstoned() {
		return nil, fmt.Errorf("%w: record is tombstoned", ErrForbidden)
	}
	if writerID != current.OwnerID && proposed.ID != "" && proposed.ID != id {
		return nil, fmt.Errorf("%w: proposal targets %s", ErrForbidden, proposed.ID)
	}

	merged := e.Merger.Reconcile(current.OwnerID, writerID, current, proposed)
	if writerID == current.OwnerID {
		if n := e.Ledger.Promote(merged); n > 0 {
			e.Logger.Info("Promoted approved candidates", "dmp_id", id, "count", n)
		}
	}

	if plan.Equivalent(current, merged) {
		span.SetAttributes(attribute.Bool("write.noop", true))
		return nil, ErrNoChange
	}

	// Snapshot before mutating anything. A failure here aborts the write
	// so no version-less state change can land.
	if e.Versioner.ShouldSnapshot(current, writerID) {
		if _, err := e.Versioner.Snapshot(ctx, current); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	if err := e.Store.Put(ctx, id, storage.VersionLatest, merged); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("authoritative write failed: %w", err)
	}

	e.Logger.Info("Record updated", "dmp_id", id, "writer", writerID, "owner", current.OwnerID)
	e.emitEvents(ctx, merged, writerID)
	return merged, nil
}

// TombstoneRecord retires a record: the latest state is frozen under the
// tombstone key with its title prefixed. Owner only, and only against the
// latest state the caller has seen.
func (e *Engine) TombstoneRecord(ctx context.Context, writerID, id string, lastSeen time.Time) (*plan.Record, error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.TombstoneRecord",
		trace.WithAttributes(attribute.String("dmp.id", id)))
	defer span.End()

	if strings.TrimSpace(writerID) == "" {
		return nil, fmt.Errorf("%w: missing writer identity", ErrForbidden)
	}

	current, err := e.Store.Get(ctx, id, storage.VersionLatest)
	if err != nil {
		return nil, err
	}
	if writerID != current.OwnerID {
		return nil, fmt.Errorf("%w: only the owner may tombstone", ErrForbidden)
	}
	if !lastSeen.IsZero() && !lastSeen.Equal(current.Modified) {
		// The caller is not holding the latest version.
		return nil, storage.ErrNotFound
	}
	if current.Tombstoned() {
		return nil, ErrNoChange
	}

	tomb := current.Clone()
	tomb.Title = plan.TombstoneTitlePrefix + tomb.Title
	tomb.Modified = e.now().UTC()
	tomb.UpdaterID = writerID

	if err := e.Store.Put(ctx, id, storage.VersionTombstone, tomb); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("tombstone write failed: %w", err)
	}
	if err := e.Store.Put(ctx, id, storage.VersionLatest, tomb); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("authoritative write failed: %w", err)
	}

	e.Logger.Info("Record tombstoned", "dmp_id", id)
	return tomb, nil
}

// GetRecord fetches a record state by identifier and version selector.
func (e *Engine) GetRecord(ctx context.Context, id, versionSelector string) (*plan.Record, error) {
	if versionSelector == "" {
		versionSelector = storage.VersionLatest
	}
	return e.Store.Get(ctx, id, versionSelector)
}

// ListVersions returns the record's snapshot refs ascending by timestamp.
func (e *Engine) ListVersions(ctx context.Context, id string) ([]storage.VersionRef, error) {
	return e.Versioner.ListVersions(ctx, id)
}

// allocateIdentifier mints a DOI-shaped identifier, retrying on collision
// up to the bounded attempt budget.
func (e *Engine) allocateIdentifier(ctx context.Context) (string, error) {
	shoulder := e.config.Shoulder
	if shoulder == "" {
		shoulder = "10.48321"
	}

	for attempt := 0; attempt < allocAttempts; attempt++ {
		id := fmt.Sprintf("doi.org/%s/D1%s", shoulder, randomSuffix(6))
		exists, err := e.Store.Exists(ctx, id, storage.VersionLatest)
		if err != nil {
			return "", fmt.Errorf("identifier existence check failed: %w", err)
		}
		if !exists {
			return id, nil
		}
		e.Logger.Warn("Identifier collision", "dmp_id", id, "attempt", attempt+1)
	}
	return "", ErrAllocExhausted
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i := range buf {
		buf[i] = suffixAlphabet[int(buf[i])%len(suffixAlphabet)]
	}
	return string(buf)
}

// emitEvents publishes the post-write notifications. Failures are logged
// and never fatal.
func (e *Engine) emitEvents(ctx context.Context, rec *plan.Record, writerID string) {
	if e.Publisher == nil {
		return
	}

	if writerID == rec.OwnerID {
		err := e.Publisher.Publish(ctx, notifier.DetailTypeRegistrationUpdate, notifier.RegistrationDetail{
			DMPID:      rec.ID,
			Provenance: writerID,
		})
		if err != nil {
			e.Logger.Warn("Event publish failed", "detail_type", notifier.DetailTypeRegistrationUpdate, "error", err)
		}
	}

	if ids := notifier.CitationCandidates(rec); len(ids) > 0 {
		err := e.Publisher.Publish(ctx, notifier.DetailTypeCitationFetch, notifier.CitationDetail{
			DMPID:       rec.ID,
			Identifiers: ids,
		})
		if err != nil {
			e.Logger.Warn("Event publish failed", "detail_type", notifier.DetailTypeCitationFetch, "error", err)
		}
	}
}
