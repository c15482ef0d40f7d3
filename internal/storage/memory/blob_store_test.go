package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "datasets/lenta.csv", "text/csv", bytes.NewReader([]byte("content")))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://datasets/lenta.csv" {
		t.Fatalf("unexpected uri %s", uri)
	}
	got, ok := store.Object("datasets/lenta.csv")
	if !ok || string(got) != "content" {
		t.Fatalf("unexpected stored object %q", got)
	}
	got[0] = 'C'
	again, _ := store.Object("datasets/lenta.csv")
	if string(again) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", again)
	}
	if _, ok := store.Object("missing"); ok {
		t.Fatalf("expected missing object")
	}
}
