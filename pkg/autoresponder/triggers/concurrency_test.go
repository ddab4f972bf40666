package triggers

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// TestConcurrentMutationAndMatching exercises the store under the race
// detector: writers add, remove and reload while readers match.
func TestConcurrentMutationAndMatching(t *testing.T) {
	store, b := loadedStore(t, `{"triggers": {"base": {"responses": ["ok"]}}}`)
	admin := NewAdmin(store, discardLogger())
	engine := NewEngine(store, NewSelector(nil), discardLogger())
	ctx := context.Background()

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				key := fmt.Sprintf("w%d-%d", w, i)
				if err := admin.AddTrigger(ctx, key, []string{key}, MatchExact); err != nil {
					t.Errorf("AddTrigger(%s): %v", key, err)
					return
				}
			}
		}(w)
	}

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if m, ok := engine.CheckMessage("base"); !ok || m.Response != "ok" {
					t.Errorf("base trigger lost during mutation: %+v %v", m, ok)
					return
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	readers.Wait()

	// No lost updates.
	if got, want := store.Snapshot().Len(), 1+writers*perWriter; got != want {
		t.Fatalf("Len = %d, want %d", got, want)
	}
	if got, want := b.saveCount(), writers*perWriter; got != want {
		t.Errorf("saves = %d, want %d", got, want)
	}

	// The backend holds the last written state, so a reload is lossless.
	n, err := admin.Reload(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1+writers*perWriter {
		t.Errorf("Reload = %d", n)
	}
}

func TestReloadNeverObservedHalfSwapped(t *testing.T) {
	small := `{"triggers": {"a": {"responses": ["1"]}}}`
	large := `{"triggers": {"a": {"responses": ["1"]}, "b": {"responses": ["2"]}, "c": {"responses": ["3"]}}}`

	store, b := loadedStore(t, small)
	ctx := context.Background()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if n := store.Snapshot().Len(); n != 1 && n != 3 {
				t.Errorf("observed partial set of %d rules", n)
				return
			}
		}
	}()

	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			b.set(large)
		} else {
			b.set(small)
		}
		if _, err := store.Reload(ctx); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
}
