// ABOUTME: Tests for the embedded Badger backend
// ABOUTME: Same behavioral contract as the memory backend, on disk
package docstore

import (
	"context"
	"errors"
	"testing"
)

func openTestBadger(t *testing.T) *BadgerBackend {
	t.Helper()
	be, err := OpenBadger(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadger failed: %v", err)
	}
	t.Cleanup(func() { be.Close() })
	return be
}

func TestBadgerBackendRoundTrip(t *testing.T) {
	be := openTestBadger(t)
	ctx := context.Background()

	doc := Document{"id": "c1", "name": "Maria", "annualIncome": 50000.0}
	if err := be.Set(ctx, "tenants/t1/clients/c1", doc); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := be.Get(ctx, "tenants/t1/clients/c1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got["name"] != "Maria" {
		t.Errorf("Expected name Maria, got %v", got["name"])
	}
	if got["annualIncome"] != 50000.0 {
		t.Errorf("Expected numeric round trip, got %v (%T)", got["annualIncome"], got["annualIncome"])
	}

	if _, err := be.Get(ctx, "tenants/t1/clients/nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBadgerBackendUpdateAndDelete(t *testing.T) {
	be := openTestBadger(t)
	ctx := context.Background()

	if err := be.Set(ctx, "tenants/t1/clients/c1", Document{"id": "c1", "name": "Maria"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := be.Update(ctx, "tenants/t1/clients/c1", map[string]any{"phone": "+351912345678"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ := be.Get(ctx, "tenants/t1/clients/c1")
	if got["phone"] != "+351912345678" || got["name"] != "Maria" {
		t.Errorf("Update did not merge fields: %v", got)
	}

	if err := be.Update(ctx, "tenants/t1/clients/missing", map[string]any{"x": 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := be.Delete(ctx, "tenants/t1/clients/c1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := be.Get(ctx, "tenants/t1/clients/c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestBadgerBackendFindExcludesNestedDocs(t *testing.T) {
	be := openTestBadger(t)
	ctx := context.Background()

	if err := be.Set(ctx, "tenants/t1/clients/c1", Document{"id": "c1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	// nested below a client: not part of the clients collection itself
	if err := be.Set(ctx, "tenants/t1/clients/c1/opportunities/o1", Document{"id": "o1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	docs, err := be.Find(ctx, Collection{Path: "tenants/t1/clients"}, Query{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Expected only the client doc, got %d", len(docs))
	}
	if docs[0]["id"] != "c1" {
		t.Errorf("Expected c1, got %v", docs[0]["id"])
	}

	docs, err = be.Find(ctx, Collection{Group: "opportunities", Prefix: "tenants/t1"}, Query{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 1 || docs[0]["id"] != "o1" {
		t.Errorf("Expected the nested opportunity from the group scan, got %v", docs)
	}
}

func TestBadgerBackendTransaction(t *testing.T) {
	be := openTestBadger(t)
	ctx := context.Background()

	if err := be.Set(ctx, "tenants/t1/counters/usage", Document{"clientCount": 1.0}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	err := be.RunTransaction(ctx, func(tx Tx) error {
		if err := tx.Set("tenants/t1/clients/c1", Document{"id": "c1"}); err != nil {
			return err
		}
		return tx.Update("tenants/t1/counters/usage", map[string]any{"clientCount": 2})
	})
	if err != nil {
		t.Fatalf("RunTransaction failed: %v", err)
	}
	counter, _ := be.Get(ctx, "tenants/t1/counters/usage")
	if counter["clientCount"] != 2.0 {
		t.Errorf("Expected committed counter 2, got %v", counter["clientCount"])
	}

	boom := errors.New("boom")
	err = be.RunTransaction(ctx, func(tx Tx) error {
		if err := tx.Set("tenants/t1/clients/c2", Document{"id": "c2"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected callback error, got %v", err)
	}
	if _, err := be.Get(ctx, "tenants/t1/clients/c2"); !errors.Is(err, ErrNotFound) {
		t.Error("Failed transaction leaked a write")
	}
}

func TestBadgerBackendWithRepository(t *testing.T) {
	be := openTestBadger(t)
	repo := NewRepository[testRecord, *testRecord](be, "records")
	ctx := context.Background()

	rec := &testRecord{Name: "Maria"}
	if err := repo.Create(ctx, "t1", rec, CreateOptions{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	got, err := repo.GetByID(ctx, "t1", rec.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "Maria" {
		t.Errorf("Expected round-tripped entity, got %+v", got)
	}
	if err := repo.SoftDelete(ctx, "t1", rec.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	page, err := repo.List(ctx, "t1", ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Items) != 0 {
		t.Errorf("Expected deleted doc excluded, got %d items", len(page.Items))
	}
}
