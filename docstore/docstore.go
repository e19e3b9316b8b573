// ABOUTME: Document store abstraction over tenant-rooted collections
// ABOUTME: Defines Document, Backend, Tx and the shared entity metadata
package docstore

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Document is the wire form of a persisted entity: what you get back from a
// JSON round-trip (numbers are float64, timestamps are RFC 3339 strings).
type Document map[string]any

// PathKey is a reserved document key carrying the document's full path in
// query results. It is stripped before decoding into an entity.
const PathKey = "_path"

// Filter is a single field predicate. Op is one of
// "==", "!=", "<", "<=", ">", ">=", "in", "array-contains".
type Filter struct {
	Field string
	Op    string
	Value any
}

// Order is a sort directive applied server-side where possible.
type Order struct {
	Field string
	Desc  bool
}

// Query bundles predicates, ordering and pagination for a Find call.
// Cursor is the path of the last document of the previous page.
type Query struct {
	Filters []Filter
	OrderBy []Order
	Limit   int
	Cursor  string
}

// Collection addresses either one exact collection (Path) or every
// collection named Group below Prefix (a collection-group scan, used for
// nested layouts like opportunities under clients).
type Collection struct {
	Path   string
	Group  string
	Prefix string
}

// Tx is the transactional view handed to RunTransaction callbacks.
type Tx interface {
	Get(path string) (Document, error)
	Set(path string, doc Document) error
	Update(path string, fields map[string]any) error
	Delete(path string) error
}

// Backend is the document database client the core is written against.
// Implementations: Firestore, Badger (embedded), and an in-memory store.
type Backend interface {
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, doc Document) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	Find(ctx context.Context, col Collection, q Query) ([]Document, error)
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	Watch(ctx context.Context, col Collection, q Query, fn func(docs []Document)) (stop func(), err error)
	Close() error
}

// Meta is embedded by every persisted entity. The repository stamps these
// fields; tenantId is re-verified on every read.
type Meta struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenantId"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	CreatedBy string     `json:"createdBy,omitempty"`
	IsDeleted bool       `json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// DocMeta returns the embedded metadata, satisfying Entity.
func (m *Meta) DocMeta() *Meta { return m }

// Entity is anything that embeds Meta.
type Entity interface {
	DocMeta() *Meta
}

// Encode converts an entity to its Document form via a JSON round-trip.
func Encode(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	delete(doc, PathKey)
	return doc, nil
}

// Decode populates v from a Document, ignoring the reserved path key.
func Decode(doc Document, v any) error {
	if _, ok := doc[PathKey]; ok {
		clean := make(Document, len(doc))
		for k, val := range doc {
			if k != PathKey {
				clean[k] = val
			}
		}
		doc = clean
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// EncodeValue pushes one value through the JSON round-trip. Patch values
// that are structs or slices go through this so every backend stores the
// same shapes a full Encode would produce.
func EncodeValue(v any) any {
	return normalize(v)
}

// TenantRoot returns the path prefix owning all of a tenant's documents.
func TenantRoot(tenantID string) string {
	return "tenants/" + tenantID
}

func collectionOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

func lastSegment(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return path
	}
	return path[i+1:]
}

// matches reports whether a document path belongs to the addressed
// collection, either exactly or as part of a collection group.
func (c Collection) matches(path string) bool {
	col := collectionOf(path)
	if c.Path != "" {
		return col == c.Path
	}
	if c.Group == "" {
		return false
	}
	if lastSegment(col) != c.Group {
		return false
	}
	return c.Prefix == "" || strings.HasPrefix(path, c.Prefix+"/")
}
