package archive

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func testStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndRecent(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	rec := Record{
		ImageURL:       "file:/tmp/avatar_1.png",
		Prompt:         "android girl, happy",
		NegativePrompt: "lowres",
		Style:          "anime",
		Model:          "gemini-2.5-flash-image",
		Provider:       "gemini",
		RequestHash:    "abc123",
		Tags:           []string{"happy", "standing"},
	}
	if err := s.SaveImage(ctx, rec); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	got, err := s.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(got))
	}
	if got[0].ImageURL != rec.ImageURL || got[0].RequestHash != "abc123" {
		t.Errorf("Round-trip mismatch: %+v", got[0])
	}
	if len(got[0].Tags) != 2 || got[0].Tags[0] != "happy" {
		t.Errorf("Tags mismatch: %v", got[0].Tags)
	}
}

func TestCleanupOldImages(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rec := Record{
			ImageURL:  fmt.Sprintf("file:/tmp/avatar_%d.png", i),
			Prompt:    "p",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveImage(ctx, rec); err != nil {
			t.Fatalf("SaveImage failed: %v", err)
		}
	}

	released, err := s.CleanupOldImages(ctx, 2)
	if err != nil {
		t.Fatalf("CleanupOldImages failed: %v", err)
	}
	if len(released) != 3 {
		t.Fatalf("Expected 3 released URLs, got %d: %v", len(released), released)
	}
	// Oldest rows go first out the door; the two newest stay.
	for _, url := range released {
		if url == "file:/tmp/avatar_4.png" || url == "file:/tmp/avatar_3.png" {
			t.Errorf("Newest records must be kept, released %v", released)
		}
	}

	remaining, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(remaining) != 2 {
		t.Errorf("Expected 2 remaining records, got %d", len(remaining))
	}
}

func TestCleanupOldImages_NothingToDo(t *testing.T) {
	s := testStorage(t)
	released, err := s.CleanupOldImages(context.Background(), 10)
	if err != nil {
		t.Fatalf("CleanupOldImages failed: %v", err)
	}
	if released != nil {
		t.Errorf("Expected no released URLs, got %v", released)
	}
}
