package loom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/internal/validator"
	loamAdapter "github.com/aretw0/loom/pkg/adapters/loam"
	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/document"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/flow"
	"github.com/aretw0/loom/pkg/observability"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/registry"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/aretw0/loom/pkg/session"
)

// Workspace is the high-level entry point: stored documents, the operator
// library they reference, and live graphs built on demand to answer
// questions about them. It implements ports.Editor.
type Workspace struct {
	sessions *session.Manager
	library  ports.LibraryLoader
	registry *registry.Registry
	changes  *changeHub
	metrics  *observability.Metrics
	logger   *slog.Logger

	store   ports.DocumentStore
	locker  ports.DistributedLocker
	lockTTL time.Duration
	Name    string
}

var _ ports.Editor = (*Workspace)(nil)

// Option defines a functional option for configuring the Workspace.
type Option func(*Workspace)

// WithStore sets where documents are kept. Defaults to memory.
func WithStore(store ports.DocumentStore) Option {
	return func(w *Workspace) {
		w.store = store
	}
}

// WithLibrary injects a custom LibraryLoader, bypassing the default Loam
// initialization.
func WithLibrary(l ports.LibraryLoader) Option {
	return func(w *Workspace) {
		w.library = l
	}
}

// WithDefinitions serves a fixed in-memory library.
func WithDefinitions(defs ...domain.Definition) Option {
	return func(w *Workspace) {
		w.library = memory.NewLibrary(defs...)
	}
}

// WithLocker coordinates edits with other replicas sharing the store.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(w *Workspace) {
		w.locker = locker
		w.lockTTL = ttl
	}
}

// WithMetrics records activity in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(w *Workspace) {
		w.metrics = m
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		w.logger = logger
	}
}

// New initializes a Workspace. By default the operator library is a Loam
// repository at libraryPath. If WithLibrary or WithDefinitions is given,
// libraryPath may be empty and Loam is skipped.
func New(libraryPath string, opts ...Option) (*Workspace, error) {
	w := &Workspace{}
	for _, opt := range opts {
		opt(w)
	}

	if w.library == nil {
		if libraryPath == "" {
			return nil, fmt.Errorf("libraryPath is required when no custom library is provided")
		}
		absPath, err := filepath.Abs(libraryPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		w.Name = filepath.Base(absPath)

		loader, err := loamAdapter.Open(absPath)
		if err != nil {
			return nil, err
		}
		w.library = loader
	} else if libraryPath != "" {
		w.Name = filepath.Base(libraryPath)
	}

	if w.logger == nil {
		w.logger = logging.NewNop()
	}
	if w.Name != "" {
		w.logger = w.logger.With("library", w.Name)
	}
	if w.store == nil {
		w.store = memory.NewStore()
	}

	sessionOpts := []session.Option{session.WithLogger(w.logger)}
	if w.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(w.locker), session.WithLockTTL(w.lockTTL))
	}
	w.sessions = session.NewManager(w.store, sessionOpts...)
	w.registry = registry.NewRegistry()
	w.changes = newChangeHub(w.logger, w.metrics)

	if err := w.Reload(context.Background()); err != nil {
		return nil, err
	}
	return w, nil
}

// Reload reads the library again and publishes what changed.
func (w *Workspace) Reload(ctx context.Context) error {
	defs, err := w.library.Definitions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}
	diff := w.registry.Replace(defs)
	w.metrics.SetLibrarySize(w.registry.Len())
	if !diff.IsEmpty() {
		w.logger.Info("Library changed", "added", len(diff.Added), "removed", len(diff.Removed), "changed", len(diff.Changed))
		w.changes.Publish(domain.Change{Library: &diff})
	}
	return nil
}

// Watch reloads the library whenever it changes, until ctx is done.
// Returns error if the library does not support watching.
func (w *Workspace) Watch(ctx context.Context) error {
	watchable, ok := w.library.(ports.Watchable)
	if !ok {
		return fmt.Errorf("current library does not support watching")
	}
	events, err := watchable.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for range events {
			if err := w.Reload(ctx); err != nil {
				w.logger.Error("Library reload failed", "err", err)
			}
		}
	}()
	return nil
}

// Close ends every change subscription.
func (w *Workspace) Close() {
	w.changes.Close()
}

// Registry returns the loaded operator library.
func (w *Workspace) Registry() *registry.Registry {
	return w.registry
}

// Build imports doc into a live graph against the current library.
func (w *Workspace) Build(doc *domain.Document) (*flow.Graph, error) {
	start := time.Now()
	g, err := document.Import(doc, document.WithLibrary(w.registry), document.WithLogger(w.logger))
	w.metrics.RecordImport(time.Since(start), err)
	return g, err
}

// Documents lists the stored document IDs.
func (w *Workspace) Documents(ctx context.Context) ([]string, error) {
	return w.sessions.List(ctx)
}

// Document loads a stored document with resolved generics filled in. A
// document that no longer imports cleanly is returned as stored.
func (w *Workspace) Document(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := w.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	g, err := w.Build(doc)
	if err != nil {
		w.logger.Debug("Stored document does not import cleanly", "document_id", id, "err", err)
		return doc, nil
	}
	return document.Refresh(g, doc), nil
}

// SaveDocument validates and stores doc, assigning an ID if it has none.
func (w *Workspace) SaveDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	document.EnsureID(doc)
	g, err := w.Build(doc)
	if err != nil {
		return nil, err
	}
	stored := document.Refresh(g, doc)

	var prev *domain.Document
	err = w.sessions.WithLock(ctx, doc.ID, func(ctx context.Context) error {
		var err error
		prev, err = w.store.Load(ctx, doc.ID)
		if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
			return err
		}
		return w.store.Save(ctx, stored)
	})
	if err != nil {
		return nil, err
	}

	w.metrics.RecordWrite("save")
	w.publish(prev, stored)
	return stored, nil
}

// DeleteDocument removes a stored document.
func (w *Workspace) DeleteDocument(ctx context.Context, id string) error {
	if err := w.sessions.Delete(ctx, id); err != nil {
		return err
	}
	w.metrics.RecordWrite("delete")
	w.changes.Publish(domain.Change{DocumentID: id})
	return nil
}

// Validate imports doc without storing it. Import failures come first as
// errors, followed by lint warnings on whatever did import.
func (w *Workspace) Validate(ctx context.Context, doc *domain.Document) ([]domain.Issue, error) {
	g, err := w.Build(doc)
	issues := document.Issues(err)
	return append(issues, validator.Lint(g)...), nil
}

// Check tells whether the connection could be made, without making it.
func (w *Workspace) Check(ctx context.Context, id string, req domain.ConnectionRequest) (domain.CheckResult, error) {
	doc, err := w.sessions.Load(ctx, id)
	if err != nil {
		return domain.CheckResult{}, err
	}
	g, err := w.Build(doc)
	if err != nil {
		return domain.CheckResult{}, err
	}
	bp, err := blueprint(g, req.Blueprint)
	if err != nil {
		return domain.CheckResult{}, err
	}
	src, dst, err := endpoints(bp, req)
	if err != nil {
		return domain.CheckResult{}, err
	}

	res := domain.CheckResult{Allowed: true}
	if err := g.Checker().Check(src, dst, req.Expand); err != nil {
		res = domain.CheckResult{Reason: string(flow.RejectionReason(err)), Message: err.Error()}
	}
	w.metrics.RecordCheck(res)
	return res, nil
}

// Connect makes the connection and stores the updated document.
func (w *Workspace) Connect(ctx context.Context, id string, req domain.ConnectionRequest) (*domain.Document, error) {
	return w.edit(ctx, id, "connect", req, func(src, dst *flow.Port) error {
		return src.Connect(dst, req.Expand)
	})
}

// Disconnect removes the connection and stores the updated document.
func (w *Workspace) Disconnect(ctx context.Context, id string, req domain.ConnectionRequest) (*domain.Document, error) {
	req.Expand = false
	return w.edit(ctx, id, "disconnect", req, func(src, dst *flow.Port) error {
		if !src.ConnectedTo(dst) {
			return fmt.Errorf("no connection %s -> %s: %w", req.From, req.To, flow.ErrNotFound)
		}
		src.DisconnectFrom(dst)
		return nil
	})
}

// edit applies fn to the live graph of a stored document and stores the
// result, under the document's lock.
func (w *Workspace) edit(ctx context.Context, id, operation string, req domain.ConnectionRequest, fn func(src, dst *flow.Port) error) (*domain.Document, error) {
	before, after, err := w.sessions.Update(ctx, id, func(doc *domain.Document) (*domain.Document, error) {
		g, err := w.Build(doc)
		if err != nil {
			return nil, err
		}
		stop := w.metrics.ObserveGraph(g)
		defer stop()

		bp, err := blueprint(g, req.Blueprint)
		if err != nil {
			return nil, err
		}
		src, dst, err := endpoints(bp, req)
		if err != nil {
			return nil, err
		}
		if err := fn(src, dst); err != nil {
			return nil, err
		}
		return document.Refresh(g, doc), nil
	})
	if err != nil {
		return nil, err
	}

	w.logger.Debug("Document edited", "document_id", id, "operation", operation, "from", req.From, "to", req.To)
	w.metrics.RecordWrite(operation)
	w.publish(before, after)
	return after, nil
}

// InspectPort describes the port at a blueprint-relative path.
func (w *Workspace) InspectPort(ctx context.Context, id, blueprintName, path string) (domain.PortInfo, error) {
	doc, err := w.sessions.Load(ctx, id)
	if err != nil {
		return domain.PortInfo{}, err
	}
	g, err := w.Build(doc)
	if err != nil {
		return domain.PortInfo{}, err
	}
	bp, err := blueprint(g, blueprintName)
	if err != nil {
		return domain.PortInfo{}, err
	}
	p, err := bp.FindPort(path)
	if err != nil {
		return domain.PortInfo{}, err
	}
	return Describe(bp, p), nil
}

// Definitions lists the operator library.
func (w *Workspace) Definitions(ctx context.Context) []domain.Definition {
	return w.registry.List()
}

// Subscribe receives changes until the returned cancel function is called.
func (w *Workspace) Subscribe() (<-chan domain.Change, func()) {
	return w.changes.Subscribe()
}

func (w *Workspace) publish(before, after *domain.Document) {
	diff := domain.DiffDocuments(before, after)
	if diff == nil {
		return
	}
	w.changes.Publish(domain.Change{DocumentID: after.ID, Diff: diff})
}

func blueprint(g *flow.Graph, name string) (*flow.Blackbox, error) {
	bp, ok := g.Blueprint(name)
	if !ok {
		return nil, fmt.Errorf("blueprint %q: %w", name, flow.ErrNotFound)
	}
	return bp, nil
}

func endpoints(bp *flow.Blackbox, req domain.ConnectionRequest) (*flow.Port, *flow.Port, error) {
	src, err := document.ResolvePort(bp, req.From, req.Expand)
	if err != nil {
		return nil, nil, err
	}
	dst, err := document.ResolvePort(bp, req.To, req.Expand)
	if err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

// Describe reports the live state of p, with paths relative to bp.
func Describe(bp *flow.Blackbox, p *flow.Port) domain.PortInfo {
	info := domain.PortInfo{
		Path:      bp.Rel(p),
		Direction: p.Direction().String(),
		Type:      typeString(p.Type()),
		Source:    p.IsSource(),
	}
	if ct := p.ConnectedType(); ct != nil && typeString(ct) != info.Type {
		info.ConnectedType = ct.String()
	}
	if id, ok := p.Generic(); ok {
		info.Generic = id
	}
	if n, err := p.Stream(); err == nil {
		info.StreamDepth = n.Depth()
	}
	for _, q := range p.Connections() {
		info.Connections = append(info.Connections, bp.Rel(q))
	}
	for _, c := range p.Children() {
		info.Children = append(info.Children, Describe(bp, c))
	}
	return info
}

func typeString(t schema.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}
