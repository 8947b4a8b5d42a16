package memory

import (
	"context"
	"errors"
	"testing"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/storage"
)

func TestRedemptionStore_UpdateStatus(t *testing.T) {
	store := NewRedemptionStore()
	ctx := context.Background()

	r := &domain.Redemption{ID: "r1", CustomerID: "c1", RewardID: "reward-a", Status: domain.RedemptionPending, CreatedAt: 100}
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.UpdateStatus(ctx, "r1", domain.RedemptionApplied, 250); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, err := store.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.RedemptionApplied {
		t.Errorf("Expected applied status, got %s", got.Status)
	}
	if got.UpdatedAt == nil || *got.UpdatedAt != 250 {
		t.Errorf("Expected updated_at=250, got %v", got.UpdatedAt)
	}

	if err := store.UpdateStatus(ctx, "missing", domain.RedemptionApplied, 250); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRedemptionStore_ListByCustomer_Pagination(t *testing.T) {
	store := NewRedemptionStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r := &domain.Redemption{
			ID:         "r" + string(rune('a'+i)),
			CustomerID: "c1",
			RewardID:   "reward-a",
			Status:     domain.RedemptionApplied,
			CreatedAt:  int64(100 + i*100),
		}
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	page1, next, err := store.ListByCustomer(ctx, storage.RedemptionQuery{CustomerID: "c1", Limit: 2})
	if err != nil {
		t.Fatalf("ListByCustomer failed: %v", err)
	}
	if len(page1) != 2 || next == nil {
		t.Fatalf("Expected 2 items with next cursor, got %d", len(page1))
	}
	if page1[0].CreatedAt != 300 || page1[1].CreatedAt != 200 {
		t.Errorf("Expected newest-first, got %d then %d", page1[0].CreatedAt, page1[1].CreatedAt)
	}

	page2, next, err := store.ListByCustomer(ctx, storage.RedemptionQuery{CustomerID: "c1", Cursor: next, Limit: 2})
	if err != nil {
		t.Fatalf("Second page failed: %v", err)
	}
	if len(page2) != 1 || next != nil {
		t.Errorf("Expected final page of 1, got %d next=%v", len(page2), next)
	}
	if page2[0].CreatedAt != 100 {
		t.Errorf("Expected the oldest redemption last, got %d", page2[0].CreatedAt)
	}
}
