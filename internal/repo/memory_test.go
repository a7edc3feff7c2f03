package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"

	"go.uber.org/zap"
)

func TestGetOrCreateIsIdempotentUnderConcurrency(t *testing.T) {
	repo := NewMemoryConversationRepository()
	ctx := context.Background()

	const callers = 10
	ids := make([]string, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := repo.GetOrCreate(ctx, "booking-77", "customer-1", "worker-1")
			if err != nil {
				t.Errorf("GetOrCreate failed: %v", err)
				return
			}
			ids[i] = conv.ID.Hex()
		}(i)
	}
	wg.Wait()

	if repo.Count() != 1 {
		t.Fatalf("expected exactly 1 conversation, got %d", repo.Count())
	}
	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("caller %d observed conversation %s, caller 0 observed %s", i, ids[i], ids[0])
		}
	}
}

func TestNextSeqHasNoGaps(t *testing.T) {
	repo := NewMemoryConversationRepository()
	ctx := context.Background()

	conv, err := repo.GetOrCreate(ctx, "booking-1", "c1", "w1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	const n = 50
	seen := make([]bool, n+1)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := repo.NextSeq(ctx, conv.ID.Hex())
			if err != nil {
				t.Errorf("NextSeq failed: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seq < 1 || seq > n {
				t.Errorf("sequence %d out of range", seq)
				return
			}
			if seen[seq] {
				t.Errorf("sequence %d issued twice", seq)
			}
			seen[seq] = true
		}()
	}
	wg.Wait()

	for seq := 1; seq <= n; seq++ {
		if !seen[seq] {
			t.Fatalf("sequence %d was never issued", seq)
		}
	}
}

func TestUpdateSummaryIsMonotonic(t *testing.T) {
	repo := NewMemoryConversationRepository()
	ctx := context.Background()

	conv, err := repo.GetOrCreate(ctx, "booking-2", "c1", "w1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	id := conv.ID.Hex()

	newer := time.Now().UTC()
	older := newer.Add(-time.Minute)

	if err := repo.UpdateSummary(ctx, id, model.LastMessage{MessageID: "m2", Snippet: "newer", SentAt: newer}); err != nil {
		t.Fatalf("UpdateSummary failed: %v", err)
	}
	// A stale writer racing in after the fact must not win.
	if err := repo.UpdateSummary(ctx, id, model.LastMessage{MessageID: "m1", Snippet: "older", SentAt: older}); err != nil {
		t.Fatalf("stale UpdateSummary returned error: %v", err)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.LastMessage == nil || got.LastMessage.Snippet != "newer" {
		t.Fatalf("expected summary to stay at the newer message, got %+v", got.LastMessage)
	}
}

func TestListMessagesOrderAndCursor(t *testing.T) {
	convRepo := NewMemoryConversationRepository()
	msgRepo := NewMemoryMessageRepository()
	ctx := context.Background()

	conv, err := convRepo.GetOrCreate(ctx, "booking-3", "c1", "w1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	base := time.Now().UTC()
	shared := base.Add(time.Second)
	stamps := []struct {
		at  time.Time
		seq int64
	}{
		{base, 1},
		{shared, 2}, // same timestamp as seq 3; seq breaks the tie
		{shared, 3},
		{base.Add(2 * time.Second), 4},
	}
	for _, s := range stamps {
		msg := &model.Message{ConversationID: conv.ID, SenderID: "c1", Text: "hi", Seq: s.seq, CreatedAt: s.at}
		if _, err := msgRepo.Insert(ctx, msg); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := msgRepo.List(ctx, conv.ID.Hex(), Cursor{}, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(all))
	}
	for i, want := range []int64{1, 2, 3, 4} {
		if all[i].Seq != want {
			t.Fatalf("position %d: expected seq %d, got %d", i, want, all[i].Seq)
		}
	}

	// Cursor at (shared, 2) must return seq 3 (same timestamp, higher seq)
	// and seq 4, in that order.
	after, err := msgRepo.List(ctx, conv.ID.Hex(), Cursor{After: shared, AfterSeq: 2}, 0)
	if err != nil {
		t.Fatalf("List after cursor failed: %v", err)
	}
	if len(after) != 2 || after[0].Seq != 3 || after[1].Seq != 4 {
		t.Fatalf("unexpected page after cursor: %+v", after)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	convRepo := NewMemoryConversationRepository()
	msgRepo := NewMemoryMessageRepository()
	ctx := context.Background()

	conv, err := convRepo.GetOrCreate(ctx, "booking-4", "c1", "w1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	msg := &model.Message{ConversationID: conv.ID, SenderID: "c1", Text: "hello", Seq: 1, CreatedAt: time.Now().UTC()}
	id, err := msgRepo.Insert(ctx, msg)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := msgRepo.MarkRead(ctx, id); err != nil {
			t.Fatalf("MarkRead attempt %d failed: %v", i+1, err)
		}
	}
	got, err := msgRepo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Read {
		t.Fatal("expected message to be marked read")
	}

	if err := msgRepo.MarkRead(ctx, "aaaaaaaaaaaaaaaaaaaaaaaa"); !errors.Is(err, model.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound for unknown id, got %v", err)
	}
}

func TestMalformedIDsAreRejectedNotFatal(t *testing.T) {
	ctx := context.Background()

	// The mongo repositories validate the id before touching the driver, so
	// a malformed path parameter surfaces as a domain error, never as a
	// storage failure.
	convRepo := NewConversationRepository(nil, zap.NewNop())
	for _, id := range []string{"", "not-hex", "zzzzzzzzzzzzzzzzzzzzzzzz"} {
		if _, err := convRepo.GetByID(ctx, id); !errors.Is(err, ErrInvalidConversationID) {
			t.Fatalf("GetByID(%q): expected ErrInvalidConversationID, got %v", id, err)
		}
	}

	msgRepo := NewMessageRepository(nil, zap.NewNop())
	if _, err := msgRepo.Get(ctx, "not-hex"); !errors.Is(err, model.ErrMessageNotFound) {
		t.Fatalf("Get: expected ErrMessageNotFound for malformed id, got %v", err)
	}
	if err := msgRepo.MarkRead(ctx, "not-hex"); !errors.Is(err, model.ErrMessageNotFound) {
		t.Fatalf("MarkRead: expected ErrMessageNotFound for malformed id, got %v", err)
	}

	memConvRepo := NewMemoryConversationRepository()
	if _, err := memConvRepo.GetByID(ctx, "not-hex"); !errors.Is(err, ErrInvalidConversationID) {
		t.Fatalf("memory GetByID: expected ErrInvalidConversationID, got %v", err)
	}
}

func TestInsertFailsWhenStoreUnavailable(t *testing.T) {
	msgRepo := NewMemoryMessageRepository()
	msgRepo.FailWrites = true

	convRepo := NewMemoryConversationRepository()
	conv, err := convRepo.GetOrCreate(context.Background(), "booking-5", "c1", "w1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	msg := &model.Message{ConversationID: conv.ID, SenderID: "c1", Text: "hello", Seq: 1, CreatedAt: time.Now().UTC()}
	if _, err := msgRepo.Insert(context.Background(), msg); !errors.Is(err, model.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
