package job

import "testing"

func TestCreateThenGet(t *testing.T) {
	m := New()
	m.Create("job-1", KindFile, "doc.txt")

	status, ok := m.Get("job-1")
	if !ok {
		t.Fatal("expected job to exist")
	}
	if status.State != StatePending {
		t.Errorf("state = %q, want pending", status.State)
	}
}

func TestSubscriberDropNeverBlocksProducer(t *testing.T) {
	m := New()
	m.Create("job-1", KindFile, "doc.txt")
	ch := m.Subscribe("job-1")

	// Drain the initial snapshot seeded by Subscribe.
	<-ch

	// Produce twice the queue capacity so the channel fills and later
	// notifications are dropped.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 2*subscriberQueueSize; i++ {
			m.IncrementChunks("job-1", 1)
		}
		close(done)
	}()
	<-done // producer must return without blocking on the full channel

	var received int
	first := true
	var firstVal, lastVal Status
drain:
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				break drain
			}
			received++
			if first {
				firstVal = v
				first = false
			}
			lastVal = v
		default:
			break drain
		}
	}

	if received == 0 {
		t.Fatal("expected at least one notification to be received")
	}
	if received > subscriberQueueSize {
		t.Fatalf("received %d, want <= %d", received, subscriberQueueSize)
	}
	if firstVal.ProcessedChunks > lastVal.ProcessedChunks {
		t.Errorf("notifications out of order: first=%d last=%d", firstVal.ProcessedChunks, lastVal.ProcessedChunks)
	}
}

func TestListSortedByCreatedAtDescending(t *testing.T) {
	m := New()
	m.Create("job-1", KindFile, "a.txt")
	m.Create("job-2", KindFile, "b.txt")
	m.Create("job-3", KindFile, "c.txt")

	jobs := m.List()
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	for i := 0; i < len(jobs)-1; i++ {
		if jobs[i].CreatedAt.Before(jobs[i+1].CreatedAt) {
			t.Errorf("jobs not sorted descending at index %d", i)
		}
	}
}

func TestFailRequiresErrorEntry(t *testing.T) {
	m := New()
	m.Create("job-1", KindFile, "a.txt")
	status, ok := m.Fail("job-1", "boom")
	if !ok {
		t.Fatal("expected job to exist")
	}
	if status.State != StateFailed {
		t.Errorf("state = %q, want failed", status.State)
	}
	if len(status.Errors) == 0 {
		t.Error("expected at least one error recorded")
	}
}

func TestUnsubscribeRemovesQueue(t *testing.T) {
	m := New()
	m.Create("job-1", KindFile, "a.txt")
	ch := m.Subscribe("job-1")
	<-ch // initial snapshot

	m.Unsubscribe("job-1", ch)
	m.IncrementChunks("job-1", 1)

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
}
