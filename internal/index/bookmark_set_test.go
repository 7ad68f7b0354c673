package index

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/watchlist/internal/domain"
)

func movie(key string) domain.Movie {
	return domain.Movie{Key: key, Title: "Title " + key, Year: "2010"}
}

func TestNewBookmarkSet(t *testing.T) {
	set := NewBookmarkSet()
	if set == nil {
		t.Fatal("NewBookmarkSet() returned nil")
	}
	if set.Len() != 0 {
		t.Errorf("NewBookmarkSet() should start empty, got %v", set.Len())
	}
}

func TestToggleAddsThenRemoves(t *testing.T) {
	set := NewBookmarkSet()
	now := time.Now()

	if added := set.Toggle(movie("tt1"), now); !added {
		t.Fatal("first Toggle() should add")
	}
	if !set.Contains("tt1") {
		t.Error("Contains() = false after add")
	}

	if added := set.Toggle(movie("tt1"), now); added {
		t.Fatal("second Toggle() should remove")
	}
	if set.Contains("tt1") {
		t.Error("Contains() = true after remove")
	}
	if set.Len() != 0 {
		t.Errorf("Len() = %v, want 0", set.Len())
	}
}

func TestTogglePreservesInsertionOrder(t *testing.T) {
	set := NewBookmarkSet()
	now := time.Now()

	for _, k := range []string{"tt1", "tt2", "tt3", "tt4"} {
		set.Toggle(movie(k), now)
	}
	set.Toggle(movie("tt2"), now)
	set.Toggle(movie("tt5"), now)

	want := []string{"tt1", "tt3", "tt4", "tt5"}
	got := set.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	// index must still point at the shifted slots
	set.Toggle(movie("tt4"), now)
	if set.Contains("tt4") {
		t.Error("tt4 should be removed after shift")
	}
	if !set.Contains("tt5") {
		t.Error("tt5 should survive removal of tt4")
	}
}

func TestNewBookmarkSetFromDropsDuplicates(t *testing.T) {
	entries := []domain.BookmarkEntry{
		{Movie: movie("tt1")},
		{Movie: movie("tt2")},
		{Movie: domain.Movie{Key: "tt1", Title: "dup"}},
		{Movie: domain.Movie{}},
	}

	set := NewBookmarkSetFrom(entries)
	if set.Len() != 2 {
		t.Fatalf("Len() = %v, want 2", set.Len())
	}
	if got := set.Entries()[0].Movie.Title; got != "Title tt1" {
		t.Errorf("first entry title = %v, want the earliest tt1", got)
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	set := NewBookmarkSet()
	set.Toggle(movie("tt1"), time.Now())

	entries := set.Entries()
	entries[0].Movie.Title = "mutated"

	if set.Entries()[0].Movie.Title == "mutated" {
		t.Error("Entries() should return a copy")
	}
}

func TestRemoveMissingKey(t *testing.T) {
	set := NewBookmarkSet()
	if set.Remove("nope") {
		t.Error("Remove() on missing key should return false")
	}
}

func TestConcurrentAccess(t *testing.T) {
	set := NewBookmarkSet()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			set.Toggle(movie(fmt.Sprintf("tt%d", i)), time.Now())
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = set.Contains(fmt.Sprintf("tt%d", i))
			_ = set.Entries()
		}(i)
	}
	wg.Wait()

	if set.Len() != 50 {
		t.Errorf("Len() = %v, want 50", set.Len())
	}
}
