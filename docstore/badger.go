// ABOUTME: Embedded Backend implementation on BadgerDB
// ABOUTME: Local single-node mode; document paths are keys, values are JSON
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	badger "github.com/dgraph-io/badger/v3"
)

// BadgerBackend persists documents in an embedded Badger database. Watch is
// served by the in-process hub, so it only observes writes made through this
// backend instance.
type BadgerBackend struct {
	db  *badger.DB
	hub *watchHub
}

// OpenBadger opens (or creates) an embedded store at dir.
func OpenBadger(dir string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerBackend{db: db, hub: newWatchHub()}, nil
}

func (b *BadgerBackend) Get(_ context.Context, path string) (Document, error) {
	var doc Document
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc[PathKey] = path
	return doc, nil
}

func (b *BadgerBackend) Set(_ context.Context, path string, doc Document) error {
	val, err := json.Marshal(copyDoc(doc))
	if err != nil {
		return err
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), val)
	}); err != nil {
		return err
	}
	b.hub.broadcast(path)
	return nil
}

func (b *BadgerBackend) Update(ctx context.Context, path string, fields map[string]any) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var doc Document
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		}); err != nil {
			return err
		}
		for k, v := range fields {
			doc[k] = normalize(v)
		}
		val, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return txn.Set([]byte(path), val)
	})
	if err != nil {
		return err
	}
	b.hub.broadcast(path)
	return nil
}

func (b *BadgerBackend) Delete(_ context.Context, path string) error {
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(path))
	}); err != nil {
		return err
	}
	b.hub.broadcast(path)
	return nil
}

func (b *BadgerBackend) Find(_ context.Context, col Collection, q Query) ([]Document, error) {
	prefix := col.Path + "/"
	if col.Path == "" {
		prefix = col.Prefix + "/"
	}
	var docs []Document
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			path := string(item.Key())
			if col.Path != "" && strings.Contains(path[len(prefix):], "/") {
				continue // document of a nested subcollection
			}
			if !col.matches(path) {
				continue
			}
			var doc Document
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			}); err != nil {
				return err
			}
			doc[PathKey] = path
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return evalQuery(docs, q), nil
}

func (b *BadgerBackend) RunTransaction(_ context.Context, fn func(tx Tx) error) error {
	var changed []string
	err := b.db.Update(func(txn *badger.Txn) error {
		t := &badgerTx{txn: txn}
		if err := fn(t); err != nil {
			return err
		}
		changed = t.changed
		return nil
	})
	if err != nil {
		return err
	}
	b.hub.broadcast(changed...)
	return nil
}

func (b *BadgerBackend) Watch(ctx context.Context, col Collection, q Query, fn func(docs []Document)) (func(), error) {
	stop := b.hub.subscribe(col, func() {
		docs, err := b.Find(ctx, col, q)
		if err != nil {
			return
		}
		fn(docs)
	})
	return stop, nil
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

type badgerTx struct {
	txn     *badger.Txn
	changed []string
}

func (t *badgerTx) Get(path string) (Document, error) {
	item, err := t.txn.Get([]byte(path))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	}); err != nil {
		return nil, err
	}
	doc[PathKey] = path
	return doc, nil
}

func (t *badgerTx) Set(path string, doc Document) error {
	val, err := json.Marshal(copyDoc(doc))
	if err != nil {
		return err
	}
	if err := t.txn.Set([]byte(path), val); err != nil {
		return err
	}
	t.changed = append(t.changed, path)
	return nil
}

func (t *badgerTx) Update(path string, fields map[string]any) error {
	doc, err := t.Get(path)
	if err != nil {
		return err
	}
	delete(doc, PathKey)
	for k, v := range fields {
		doc[k] = normalize(v)
	}
	val, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := t.txn.Set([]byte(path), val); err != nil {
		return err
	}
	t.changed = append(t.changed, path)
	return nil
}

func (t *badgerTx) Delete(path string) error {
	if err := t.txn.Delete([]byte(path)); err != nil {
		return err
	}
	t.changed = append(t.changed, path)
	return nil
}
