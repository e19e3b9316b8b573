// ABOUTME: Front door of the CRM core: opens the store and wires services
// ABOUTME: UI layers depend on this package only
package imob

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/openimob/imob/agents"
	"github.com/openimob/imob/clients"
	"github.com/openimob/imob/config"
	"github.com/openimob/imob/deals"
	"github.com/openimob/imob/docstore"
	"github.com/openimob/imob/pipeline"
)

// CRM bundles the core services over one document store. All service
// operations take the tenant id per call; the CRM itself is tenant-free.
type CRM struct {
	Clients  *clients.Service
	Pipeline *pipeline.Service
	Deals    *deals.Service
	Agents   *agents.Service

	store docstore.Backend
	log   *logrus.Logger
}

// Open connects the configured document store and wires the services.
func Open(ctx context.Context, cfg config.Config) (*CRM, error) {
	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var opts []docstore.RepositoryOption
	if cfg.SearchScanLimit > 0 {
		opts = append(opts, docstore.WithScanLimit(cfg.SearchScanLimit))
	}
	return New(store, log, opts...), nil
}

// New wires the services on an existing backend. Useful for tests and for
// callers managing the store themselves. Options are forwarded to every
// repository the services open.
func New(store docstore.Backend, log *logrus.Logger, opts ...docstore.RepositoryOption) *CRM {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CRM{
		Clients:  clients.NewService(store, log, opts...),
		Pipeline: pipeline.NewService(store, log, opts...),
		Deals:    deals.NewService(store, log, opts...),
		Agents:   agents.NewService(store, log, opts...),
		store:    store,
		log:      log,
	}
}

// Store exposes the underlying backend.
func (c *CRM) Store() docstore.Backend {
	return c.store
}

// Close releases the underlying store.
func (c *CRM) Close() error {
	return c.store.Close()
}

func openStore(ctx context.Context, cfg config.Config) (docstore.Backend, error) {
	switch cfg.Store {
	case config.StoreMemory, "":
		return docstore.NewMemoryBackend(), nil
	case config.StoreBadger:
		return docstore.OpenBadger(cfg.BadgerDir)
	case config.StoreFirestore:
		if cfg.FirestoreProject == "" {
			return nil, fmt.Errorf("firestore backend requires IMOB_FIRESTORE_PROJECT")
		}
		return docstore.OpenFirestore(ctx, cfg.FirestoreProject)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
}
