package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
)

func newIdle(identity string) CreateFunc {
	return func() *models.Session {
		return models.NewSession(identity, models.ChannelWeb, models.StageIdle)
	}
}

func TestLocalStoreCreatesOnce(t *testing.T) {
	store := NewLocalStore(0)
	ctx := context.Background()

	var created int32
	create := func() *models.Session {
		atomic.AddInt32(&created, 1)
		return models.NewSession("U1", models.ChannelWeb, models.StageIdle)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.GetOrCreate(ctx, "U1", create); err != nil {
				t.Errorf("GetOrCreate: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("expected a single creation, got %d", created)
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Fatalf("expected 1 session, got %d", n)
	}
}

func TestLocalStoreSerializesSameIdentity(t *testing.T) {
	store := NewLocalStore(0)
	ctx := context.Background()

	const workers = 100
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "U1", newIdle("U1"), func(s *models.Session) error {
				// read-modify-write that would lose increments without the lock
				n := s.Nights
				time.Sleep(time.Microsecond)
				s.Nights = n + 1
				return nil
			})
			if err != nil {
				t.Errorf("Update: %v", err)
			}
		}()
	}
	wg.Wait()

	sess, err := store.GetOrCreate(ctx, "U1", newIdle("U1"))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if sess.Nights != workers {
		t.Fatalf("expected %d increments, got %d", workers, sess.Nights)
	}
}

func TestLocalStoreDoesNotBlockOtherIdentities(t *testing.T) {
	store := NewLocalStore(0)
	ctx := context.Background()

	release := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_, _ = store.Update(ctx, "slow", newIdle("slow"), func(s *models.Session) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan struct{})
	go func() {
		_, _ = store.Update(ctx, "fast", newIdle("fast"), func(s *models.Session) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("update for another identity blocked behind a slow session")
	}
	close(release)
}

func TestLocalStoreDiscardsFailedUpdate(t *testing.T) {
	store := NewLocalStore(0)
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := store.Update(ctx, "U1", newIdle("U1"), func(s *models.Session) error {
		s.Stage = models.StageConfirmation
		s.Nights = 4
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	sess, _ := store.GetOrCreate(ctx, "U1", newIdle("U1"))
	if sess.Stage != models.StageIdle || sess.Nights != 0 {
		t.Fatalf("failed update leaked into the store: %+v", sess)
	}
}

func TestLocalStoreSnapshotsAreCopies(t *testing.T) {
	store := NewLocalStore(0)
	ctx := context.Background()

	sess, _ := store.Update(ctx, "U1", newIdle("U1"), func(s *models.Session) error {
		s.Addons = []string{"juice"}
		return nil
	})
	sess.Addons[0] = "cocktail"
	sess.Stage = models.StageConfirmation

	again, _ := store.GetOrCreate(ctx, "U1", newIdle("U1"))
	if again.Addons[0] != "juice" || again.Stage != models.StageIdle {
		t.Fatalf("caller mutation reached the store: %+v", again)
	}
}

func TestLocalStoreExpiry(t *testing.T) {
	store := NewLocalStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = store.Update(ctx, "U1", newIdle("U1"), func(s *models.Session) error {
		s.Stage = models.StageNightsInput
		return nil
	})

	now = now.Add(2 * time.Minute)
	sess, _ := store.GetOrCreate(ctx, "U1", newIdle("U1"))
	if sess.Stage != models.StageIdle {
		t.Fatalf("expected stale session to be recreated, got %s", sess.Stage)
	}
}
