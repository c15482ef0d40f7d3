package memory

import (
	"context"
	"testing"
	"time"

	"github.com/JakeFAU/archive-crawler/internal/publisher"
)

func TestPublisherRecordsEncodedNotices(t *testing.T) {
	t.Parallel()

	pub := New()
	notice := publisher.DatasetReady{
		Source:     "lenta",
		SHA256:     "abc",
		Days:       2,
		FinishedAt: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	id1, err := pub.Publish(context.Background(), "datasets", notice)
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "audit", map[string]int{"n": 1})
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 || string(msgs[1].Data) != `{"n":1}` {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	ready, err := pub.Datasets("datasets")
	if err != nil {
		t.Fatalf("decode datasets: %v", err)
	}
	if len(ready) != 1 || ready[0].Source != "lenta" || ready[0].SHA256 != "abc" ||
		ready[0].Days != 2 || !ready[0].FinishedAt.Equal(notice.FinishedAt) {
		t.Fatalf("dataset notice not recorded correctly: %+v", ready)
	}

	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}

func TestPublisherRejectsBadInput(t *testing.T) {
	t.Parallel()

	pub := New()
	if _, err := pub.Publish(context.Background(), "", publisher.DatasetReady{}); err == nil {
		t.Fatal("expected an error for an empty topic")
	}
	if _, err := pub.Publish(context.Background(), "datasets", make(chan int)); err == nil {
		t.Fatal("expected an error for an unencodable payload")
	}
	if got := pub.Messages(); len(got) != 0 {
		t.Fatalf("expected nothing recorded, got %+v", got)
	}
}
