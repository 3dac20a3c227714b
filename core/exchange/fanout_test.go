package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestFanoutResolvesWhenAllSlotsDo(t *testing.T) {
	f := newFanout(uuid.New(), 3)
	f.resolve(0, Outcome{FacilityUID: "a"})
	f.resolve(2, Outcome{FacilityUID: "c", Err: errors.New("down")})

	select {
	case <-f.Done():
		t.Fatal("resolved with a slot outstanding")
	case <-time.After(20 * time.Millisecond):
	}

	f.resolve(1, Outcome{FacilityUID: "b"})
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("did not resolve")
	}

	outs := f.Outcomes()
	if outs[0].FacilityUID != "a" || outs[1].FacilityUID != "b" || outs[2].FacilityUID != "c" {
		t.Fatalf("outcomes: %+v", outs)
	}
	if outs[2].Err == nil {
		t.Fatal("slot error lost")
	}
}

func TestFanoutWaitHonorsContext(t *testing.T) {
	f := newFanout(uuid.New(), 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err: %v", err)
	}
	// The fan-out itself is unaffected by the abandoned wait.
	f.resolve(0, Outcome{FacilityUID: "a"})
	outs, err := f.Wait(context.Background())
	if err != nil || len(outs) != 1 {
		t.Fatalf("outs %v err %v", outs, err)
	}
}

func TestOutboxCommitReleasesStaged(t *testing.T) {
	var o Outbox
	ran := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		o.Stage(func() { ran <- i })
	}
	select {
	case <-ran:
		t.Fatal("staged dispatch ran before commit")
	case <-time.After(20 * time.Millisecond):
	}

	o.Commit()
	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		select {
		case n := <-ran:
			seen[n] = true
		case <-time.After(time.Second):
			t.Fatal("dispatch missing after commit")
		}
	}
	if len(seen) != 3 {
		t.Fatalf("seen: %v", seen)
	}

	// After commit, new stages run immediately.
	o.Stage(func() { ran <- 99 })
	select {
	case n := <-ran:
		if n != 99 {
			t.Fatalf("got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("post-commit stage did not run")
	}
}

func TestOutboxDiscardDropsStaged(t *testing.T) {
	var o Outbox
	ran := make(chan struct{}, 1)
	o.Stage(func() { ran <- struct{}{} })
	o.Discard()
	o.Commit()
	select {
	case <-ran:
		t.Fatal("discarded dispatch ran")
	case <-time.After(50 * time.Millisecond):
	}
}
