package storage

import (
	"testing"

	"docquiz/internal/domain"
)

func TestBatchLifecycle(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	batch, err := store.CreateBatch("vs_abc", []string{"a.pdf", "b.pdf"}, []string{"file_1", "file_2"}, domain.BatchStatusInProgress)
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if batch.ID == "" {
		t.Fatalf("expected generated batch id")
	}

	got, err := store.GetBatch(batch.ID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if got.StoreID != "vs_abc" || len(got.FileNames) != 2 {
		t.Fatalf("unexpected batch: %+v", got)
	}

	if _, err := store.UpdateBatchStatus(batch.ID, domain.BatchStatusCompleted); err != nil {
		t.Fatalf("update status: %v", err)
	}

	// A fresh store over the same directory sees the persisted state.
	reloaded, err := NewStore(dir)
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}

	batches := reloaded.ListBatches()
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch after reload, got %d", len(batches))
	}
	if batches[0].Status != domain.BatchStatusCompleted {
		t.Fatalf("expected completed status, got %q", batches[0].Status)
	}

	if err := reloaded.DeleteBatch(batch.ID); err != nil {
		t.Fatalf("delete batch: %v", err)
	}
	if _, err := reloaded.GetBatch(batch.ID); err == nil {
		t.Fatalf("expected missing batch after delete")
	}
}

func TestGetUnknownBatch(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.GetBatch("nope"); err == nil {
		t.Fatalf("expected error for unknown batch")
	}
}
