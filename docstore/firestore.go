// ABOUTME: Firestore Backend implementation
// ABOUTME: Maps paths, queries, transactions and snapshot listeners onto the GCP SDK
package docstore

import (
	"context"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreBackend is the production store. Collection-group reads rely on
// the tenantId filter the repository adds, since Firestore group queries
// cannot be restricted by path prefix.
type FirestoreBackend struct {
	client *firestore.Client
}

// OpenFirestore connects to the project's default Firestore database using
// ambient credentials.
func OpenFirestore(ctx context.Context, projectID string) (*FirestoreBackend, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &FirestoreBackend{client: client}, nil
}

func (f *FirestoreBackend) Get(ctx context.Context, path string) (Document, error) {
	snap, err := f.client.Doc(path).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc := Document(snap.Data())
	doc[PathKey] = path
	return doc, nil
}

func (f *FirestoreBackend) Set(ctx context.Context, path string, doc Document) error {
	_, err := f.client.Doc(path).Set(ctx, map[string]any(copyDoc(doc)))
	return err
}

func (f *FirestoreBackend) Update(ctx context.Context, path string, fields map[string]any) error {
	_, err := f.client.Doc(path).Update(ctx, toUpdates(fields))
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

func (f *FirestoreBackend) Delete(ctx context.Context, path string) error {
	_, err := f.client.Doc(path).Delete(ctx)
	return err
}

func (f *FirestoreBackend) Find(ctx context.Context, col Collection, q Query) ([]Document, error) {
	fq, err := f.buildQuery(ctx, col, q)
	if err != nil {
		return nil, err
	}
	iter := fq.Documents(ctx)
	defer iter.Stop()

	var docs []Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		doc := Document(snap.Data())
		doc[PathKey] = relPath(snap.Ref.Path)
		docs = append(docs, doc)
	}
	return docs, nil
}

func (f *FirestoreBackend) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return f.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		return fn(&firestoreTx{client: f.client, tx: t})
	})
}

func (f *FirestoreBackend) Watch(ctx context.Context, col Collection, q Query, fn func(docs []Document)) (func(), error) {
	fq, err := f.buildQuery(ctx, col, q)
	if err != nil {
		return nil, err
	}
	snaps := fq.Snapshots(ctx)
	go func() {
		for {
			qs, err := snaps.Next()
			if err != nil {
				return
			}
			var docs []Document
			for {
				snap, err := qs.Documents.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					return
				}
				doc := Document(snap.Data())
				doc[PathKey] = relPath(snap.Ref.Path)
				docs = append(docs, doc)
			}
			fn(docs)
		}
	}()
	return snaps.Stop, nil
}

func (f *FirestoreBackend) Close() error {
	return f.client.Close()
}

func (f *FirestoreBackend) buildQuery(ctx context.Context, col Collection, q Query) (firestore.Query, error) {
	var fq firestore.Query
	if col.Group != "" {
		fq = f.client.CollectionGroup(col.Group).Query
	} else {
		fq = f.client.Collection(col.Path).Query
	}
	for _, flt := range q.Filters {
		fq = fq.Where(flt.Field, flt.Op, flt.Value)
	}
	for _, o := range q.OrderBy {
		dir := firestore.Asc
		if o.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(o.Field, dir)
	}
	if q.Cursor != "" {
		snap, err := f.client.Doc(q.Cursor).Get(ctx)
		if err != nil {
			return fq, err
		}
		fq = fq.StartAfter(snap)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq, nil
}

type firestoreTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func (t *firestoreTx) Get(path string) (Document, error) {
	snap, err := t.tx.Get(t.client.Doc(path))
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc := Document(snap.Data())
	doc[PathKey] = path
	return doc, nil
}

func (t *firestoreTx) Set(path string, doc Document) error {
	return t.tx.Set(t.client.Doc(path), map[string]any(copyDoc(doc)))
}

func (t *firestoreTx) Update(path string, fields map[string]any) error {
	err := t.tx.Update(t.client.Doc(path), toUpdates(fields))
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

func (t *firestoreTx) Delete(path string) error {
	return t.tx.Delete(t.client.Doc(path))
}

// toUpdates normalizes patch values so fields written via Update hold the
// same JSON shapes as Set-path documents (RFC 3339 strings for times, not
// native timestamps).
func toUpdates(fields map[string]any) []firestore.Update {
	ups := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		ups = append(ups, firestore.Update{Path: k, Value: normalize(v)})
	}
	return ups
}

// relPath strips the projects/{p}/databases/{d}/documents/ prefix from an
// absolute Firestore reference path.
func relPath(full string) string {
	const marker = "/documents/"
	if i := strings.Index(full, marker); i >= 0 {
		return full[i+len(marker):]
	}
	return full
}
