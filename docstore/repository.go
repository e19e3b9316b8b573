// ABOUTME: Tenant-scoped generic repository over a document Backend
// ABOUTME: Enforces tenant isolation, soft delete, unique checks and pagination
package docstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultScanLimit bounds Search and Stats scans.
const DefaultScanLimit = 100

// Persistable constrains PT to a pointer to T that embeds Meta.
type Persistable[T any] interface {
	*T
	Entity
}

// Repository provides tenant-scoped CRUD for one collection. Every read
// re-verifies the stored tenantId against the requested tenant; a mismatch
// is ErrUnauthorized, never another tenant's data.
type Repository[T any, PT Persistable[T]] struct {
	be        Backend
	name      string
	parent    []string
	grouped   bool
	scanLimit int
	log       *logrus.Logger
}

type repoConfig struct {
	grouped   bool
	scanLimit int
	log       *logrus.Logger
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*repoConfig)

// WithGroupReads makes tenant-wide reads use a collection-group scan, for
// collections nested below other documents (opportunities, deals).
func WithGroupReads() RepositoryOption {
	return func(c *repoConfig) { c.grouped = true }
}

// WithScanLimit overrides the bounded-scan size used by Search and Stats.
func WithScanLimit(n int) RepositoryOption {
	return func(c *repoConfig) { c.scanLimit = n }
}

// WithLogger sets the logger used for isolation warnings.
func WithLogger(l *logrus.Logger) RepositoryOption {
	return func(c *repoConfig) { c.log = l }
}

// NewRepository creates a repository for the named collection.
func NewRepository[T any, PT Persistable[T]](be Backend, name string, opts ...RepositoryOption) *Repository[T, PT] {
	cfg := repoConfig{scanLimit: DefaultScanLimit, log: logrus.StandardLogger()}
	for _, o := range opts {
		o(&cfg)
	}
	return &Repository[T, PT]{
		be:        be,
		name:      name,
		grouped:   cfg.grouped,
		scanLimit: cfg.scanLimit,
		log:       cfg.log,
	}
}

// Under returns a view of the repository rooted below the given parent
// segments, e.g. Under("clients", clientID) for a client's opportunities.
// Writes always go through a fully-specified parent path.
func (r *Repository[T, PT]) Under(segments ...string) *Repository[T, PT] {
	cp := *r
	cp.parent = segments
	return &cp
}

// CollectionPath returns the tenant-rooted path of this collection.
func (r *Repository[T, PT]) CollectionPath(tenantID string) string {
	parts := append([]string{TenantRoot(tenantID)}, r.parent...)
	parts = append(parts, r.name)
	return strings.Join(parts, "/")
}

// DocPath returns the full path of one document, for transactional writes.
func (r *Repository[T, PT]) DocPath(tenantID, id string) string {
	return r.CollectionPath(tenantID) + "/" + id
}

func (r *Repository[T, PT]) readCollection(tenantID string) Collection {
	if r.grouped && len(r.parent) == 0 {
		return Collection{Group: r.name, Prefix: TenantRoot(tenantID)}
	}
	return Collection{Path: r.CollectionPath(tenantID)}
}

// CreateOptions tune Create behavior.
type CreateOptions struct {
	// UniqueFields are checked against existing non-deleted documents before
	// insert. The check-then-write pair is not atomic; the race window is
	// accepted, matching the store's lack of unique indexes.
	UniqueFields []string
	CreatedBy    string
}

// Create stamps metadata and persists the entity. The entity's ID is
// assigned if empty.
func (r *Repository[T, PT]) Create(ctx context.Context, tenantID string, entity PT, opts CreateOptions) error {
	meta := entity.DocMeta()
	if meta.ID == "" {
		meta.ID = NewID()
	}
	now := time.Now().UTC()
	meta.TenantID = tenantID
	meta.CreatedAt = now
	meta.UpdatedAt = now
	meta.CreatedBy = opts.CreatedBy
	meta.IsDeleted = false
	meta.DeletedAt = nil

	doc, err := Encode(entity)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.name, err)
	}

	for _, field := range opts.UniqueFields {
		val, ok := doc[field]
		if !ok || val == nil || val == "" {
			continue
		}
		existing, err := r.be.Find(ctx, r.readCollection(tenantID), Query{
			Filters: r.withTenantFilter(tenantID, []Filter{
				{Field: field, Op: "==", Value: val},
				{Field: "isDeleted", Op: "==", Value: false},
			}),
			Limit: 1,
		})
		if err != nil {
			return fmt.Errorf("unique check on %s: %w", field, err)
		}
		if len(existing) > 0 {
			return &DuplicateError{Field: field, Value: val, Existing: existing[0]}
		}
	}

	if err := r.be.Set(ctx, r.DocPath(tenantID, meta.ID), doc); err != nil {
		return fmt.Errorf("create %s: %w", r.name, err)
	}
	return nil
}

// BatchCreate persists several entities in one transaction. No unique
// checks are applied.
func (r *Repository[T, PT]) BatchCreate(ctx context.Context, tenantID string, entities []PT) error {
	now := time.Now().UTC()
	return r.be.RunTransaction(ctx, func(tx Tx) error {
		for _, e := range entities {
			meta := e.DocMeta()
			if meta.ID == "" {
				meta.ID = NewID()
			}
			meta.TenantID = tenantID
			meta.CreatedAt = now
			meta.UpdatedAt = now
			meta.IsDeleted = false
			meta.DeletedAt = nil
			doc, err := Encode(e)
			if err != nil {
				return err
			}
			if err := tx.Set(r.DocPath(tenantID, meta.ID), doc); err != nil {
				return err
			}
		}
		return nil
	})
}

// fetch loads a raw document by id, resolving nested documents through a
// collection-group lookup when the parent path is unknown.
func (r *Repository[T, PT]) fetch(ctx context.Context, tenantID, id string) (Document, string, error) {
	if !r.grouped || len(r.parent) > 0 {
		path := r.DocPath(tenantID, id)
		doc, err := r.be.Get(ctx, path)
		if err != nil {
			return nil, "", err
		}
		return doc, path, nil
	}
	docs, err := r.be.Find(ctx, r.readCollection(tenantID), Query{
		Filters: r.withTenantFilter(tenantID, []Filter{{Field: "id", Op: "==", Value: id}}),
		Limit:   1,
	})
	if err != nil {
		return nil, "", err
	}
	if len(docs) == 0 {
		return nil, "", ErrNotFound
	}
	path, _ := docs[0][PathKey].(string)
	return docs[0], path, nil
}

// Path resolves the stored path of a document by id, for transactional
// writes that span documents.
func (r *Repository[T, PT]) Path(ctx context.Context, tenantID, id string) (string, error) {
	doc, path, err := r.fetch(ctx, tenantID, id)
	if err != nil {
		return "", err
	}
	if owner, _ := doc["tenantId"].(string); owner != tenantID {
		return "", ErrUnauthorized
	}
	return path, nil
}

// GetByID fetches one entity. The stored tenantId is re-checked even though
// the path already scopes the read; a mismatch is reported as unauthorized.
func (r *Repository[T, PT]) GetByID(ctx context.Context, tenantID, id string) (PT, error) {
	doc, _, err := r.fetch(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	entity, err := r.decode(doc)
	if err != nil {
		return nil, err
	}
	if entity.DocMeta().TenantID != tenantID {
		r.log.WithFields(logrus.Fields{"collection": r.name, "id": id}).
			Warn("tenant mismatch on direct read")
		return nil, ErrUnauthorized
	}
	return entity, nil
}

// Update patches a document after re-verifying ownership. Immutable fields
// are stripped from the patch. Returns the updated entity.
func (r *Repository[T, PT]) Update(ctx context.Context, tenantID, id string, patch map[string]any) (PT, error) {
	doc, path, err := r.fetch(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if owner, _ := doc["tenantId"].(string); owner != tenantID {
		return nil, ErrUnauthorized
	}

	clean := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		switch k {
		case "id", "tenantId", "createdAt", "createdBy", PathKey:
			continue
		}
		clean[k] = v
	}
	clean["updatedAt"] = time.Now().UTC()

	if err := r.be.Update(ctx, path, clean); err != nil {
		return nil, fmt.Errorf("update %s %s: %w", r.name, id, err)
	}
	updated, err := r.be.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return r.decode(updated)
}

// SoftDelete marks the document deleted. Deleting an already-deleted
// document is a no-op.
func (r *Repository[T, PT]) SoftDelete(ctx context.Context, tenantID, id string) error {
	doc, path, err := r.fetch(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if owner, _ := doc["tenantId"].(string); owner != tenantID {
		return ErrUnauthorized
	}
	if deleted, _ := doc["isDeleted"].(bool); deleted {
		return nil
	}
	now := time.Now().UTC()
	return r.be.Update(ctx, path, map[string]any{
		"isDeleted": true,
		"deletedAt": now,
		"updatedAt": now,
	})
}

// HardDelete permanently removes the document. Soft delete is the default
// path; this exists for data-subject erasure.
func (r *Repository[T, PT]) HardDelete(ctx context.Context, tenantID, id string) error {
	doc, path, err := r.fetch(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if owner, _ := doc["tenantId"].(string); owner != tenantID {
		return ErrUnauthorized
	}
	return r.be.Delete(ctx, path)
}

// ListOptions carry filters, ordering and cursor paging for List.
type ListOptions struct {
	Filters        []Filter
	OrderBy        []Order
	PageSize       int
	Cursor         string
	IncludeDeleted bool
}

// Page is one page of results. NextCursor is empty on the last page.
type Page[T any] struct {
	Items      []*T
	NextCursor string
}

// List returns a page of non-deleted entities (unless IncludeDeleted),
// re-checking tenantId on every returned document.
func (r *Repository[T, PT]) List(ctx context.Context, tenantID string, opts ListOptions) (*Page[T], error) {
	q := Query{
		Filters: r.withTenantFilter(tenantID, opts.Filters),
		OrderBy: opts.OrderBy,
		Cursor:  opts.Cursor,
	}
	if !opts.IncludeDeleted {
		q.Filters = append(q.Filters, Filter{Field: "isDeleted", Op: "==", Value: false})
	}
	if opts.PageSize > 0 {
		q.Limit = opts.PageSize + 1
	}
	docs, err := r.be.Find(ctx, r.readCollection(tenantID), q)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.name, err)
	}

	page := &Page[T]{}
	more := false
	if opts.PageSize > 0 && len(docs) > opts.PageSize {
		docs = docs[:opts.PageSize]
		more = true
	}
	// The cursor follows the last scanned document, kept or not, so a
	// trailing dropped document cannot rewind or truncate pagination.
	var lastPath string
	for _, doc := range docs {
		lastPath, _ = doc[PathKey].(string)
		entity, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		if entity.DocMeta().TenantID != tenantID {
			r.log.WithFields(logrus.Fields{"collection": r.name, "id": entity.DocMeta().ID}).
				Warn("dropping document with mismatched tenant from list")
			continue
		}
		page.Items = append(page.Items, (*T)(entity))
	}
	if more {
		page.NextCursor = lastPath
	}
	return page, nil
}

// Count counts non-deleted documents matching the filters.
func (r *Repository[T, PT]) Count(ctx context.Context, tenantID string, filters []Filter) (int, error) {
	q := Query{
		Filters: append(r.withTenantFilter(tenantID, filters),
			Filter{Field: "isDeleted", Op: "==", Value: false}),
	}
	docs, err := r.be.Find(ctx, r.readCollection(tenantID), q)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, doc := range docs {
		if owner, _ := doc["tenantId"].(string); owner == tenantID {
			n++
		}
	}
	return n, nil
}

// Search does a case-insensitive substring match over the given string
// fields. It scans only the first scanLimit documents of the collection;
// this is a bounded scan, not a real search index.
func (r *Repository[T, PT]) Search(ctx context.Context, tenantID, term string, fields []string) ([]*T, error) {
	docs, err := r.be.Find(ctx, r.readCollection(tenantID), Query{
		Filters: r.withTenantFilter(tenantID, []Filter{{Field: "isDeleted", Op: "==", Value: false}}),
		Limit:   r.scanLimit,
	})
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return nil, nil
	}
	var out []*T
	for _, doc := range docs {
		if owner, _ := doc["tenantId"].(string); owner != tenantID {
			continue
		}
		for _, f := range fields {
			s, _ := doc[f].(string)
			if s != "" && strings.Contains(strings.ToLower(s), needle) {
				entity, err := r.decode(doc)
				if err != nil {
					return nil, err
				}
				out = append(out, (*T)(entity))
				break
			}
		}
	}
	return out, nil
}

// Subscribe pushes the current matching result set on every change, under
// the same tenant and soft-delete rules as List.
func (r *Repository[T, PT]) Subscribe(ctx context.Context, tenantID string, opts ListOptions, fn func(items []*T)) (func(), error) {
	q := Query{
		Filters: r.withTenantFilter(tenantID, opts.Filters),
		OrderBy: opts.OrderBy,
		Limit:   opts.PageSize,
	}
	if !opts.IncludeDeleted {
		q.Filters = append(q.Filters, Filter{Field: "isDeleted", Op: "==", Value: false})
	}
	return r.be.Watch(ctx, r.readCollection(tenantID), q, func(docs []Document) {
		items := make([]*T, 0, len(docs))
		for _, doc := range docs {
			entity, err := r.decode(doc)
			if err != nil {
				continue
			}
			if entity.DocMeta().TenantID != tenantID {
				continue
			}
			items = append(items, (*T)(entity))
		}
		fn(items)
	})
}

// CollectionStats summarizes a collection, from a bounded scan.
type CollectionStats struct {
	Total         int `json:"total"`
	Active        int `json:"active"`
	Deleted       int `json:"deleted"`
	CreatedLast30 int `json:"createdLast30"`
}

// Stats counts active, deleted and recently created documents.
func (r *Repository[T, PT]) Stats(ctx context.Context, tenantID string) (*CollectionStats, error) {
	docs, err := r.be.Find(ctx, r.readCollection(tenantID), Query{
		Filters: r.withTenantFilter(tenantID, nil),
	})
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -30).Format(time.RFC3339)
	stats := &CollectionStats{}
	for _, doc := range docs {
		if owner, _ := doc["tenantId"].(string); owner != tenantID {
			continue
		}
		stats.Total++
		if deleted, _ := doc["isDeleted"].(bool); deleted {
			stats.Deleted++
		} else {
			stats.Active++
		}
		if created, _ := doc["createdAt"].(string); created >= cutoff {
			stats.CreatedLast30++
		}
	}
	return stats, nil
}

// Backend exposes the underlying store for transactional multi-document
// flows owned by the service layer.
func (r *Repository[T, PT]) Backend() Backend {
	return r.be
}

func (r *Repository[T, PT]) withTenantFilter(tenantID string, filters []Filter) []Filter {
	out := make([]Filter, 0, len(filters)+1)
	if r.grouped && len(r.parent) == 0 {
		// Group scans cannot be path-restricted on Firestore; the tenantId
		// field carries the scoping instead.
		out = append(out, Filter{Field: "tenantId", Op: "==", Value: tenantID})
	}
	return append(out, filters...)
}

func (r *Repository[T, PT]) decode(doc Document) (PT, error) {
	entity := PT(new(T))
	if err := Decode(doc, entity); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.name, err)
	}
	return entity, nil
}
