package framestore

import (
	"image"
	"sync"
	"testing"

	"github.com/shehryarbajwa/camdroid/pkg/models"
)

func testFrame(w, h int) *models.Frame {
	return &models.Frame{
		Image:  image.NewRGBA(image.Rect(0, 0, w, h)),
		Width:  w,
		Height: h,
	}
}

func TestStore_EmptyByDefault(t *testing.T) {
	s := New()
	if f, ok := s.TakeLatest(); ok || f != nil {
		t.Fatalf("TakeLatest() on new store = (%v, %v), want (nil, false)", f, ok)
	}
}

func TestStore_TakeLatestDoesNotConsume(t *testing.T) {
	s := New()
	want := testFrame(4, 4)
	s.Put(want)

	for i := 0; i < 5; i++ {
		got, ok := s.TakeLatest()
		if !ok {
			t.Fatalf("TakeLatest() call %d returned empty", i)
		}
		if got != want {
			t.Fatalf("TakeLatest() call %d returned a different frame", i)
		}
	}
}

func TestStore_PutReplaces(t *testing.T) {
	s := New()
	first := testFrame(2, 2)
	second := testFrame(3, 3)

	s.Put(first)
	s.Put(second)

	got, _ := s.TakeLatest()
	if got != second {
		t.Fatalf("TakeLatest() = %dx%d frame, want the second frame", got.Width, got.Height)
	}
	if second.Seq <= first.Seq {
		t.Errorf("Seq not increasing: first=%d second=%d", first.Seq, second.Seq)
	}
}

func TestStore_PutNilIgnored(t *testing.T) {
	s := New()
	f := testFrame(1, 1)
	s.Put(f)
	s.Put(nil)

	if got, _ := s.TakeLatest(); got != f {
		t.Fatal("Put(nil) replaced the stored frame")
	}
}

func TestStore_Clear(t *testing.T) {
	s := New()
	s.Put(testFrame(1, 1))
	s.Clear()
	s.Clear()

	if _, ok := s.TakeLatest(); ok {
		t.Fatal("TakeLatest() after Clear() returned a frame")
	}
}

func TestStore_ConcurrentPutAndRead(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s.Put(testFrame(8, 8))
			}
		}()
	}

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if f, ok := s.TakeLatest(); ok && (f.Width != 8 || f.Image == nil) {
					t.Errorf("observed incomplete frame: %+v", f)
					return
				}
			}
		}()
	}

	wg.Wait()

	f, ok := s.TakeLatest()
	if !ok {
		t.Fatal("store empty after concurrent writes")
	}
	if f.Seq == 0 || f.Seq > 2000 {
		t.Errorf("final Seq = %d, want 1..2000", f.Seq)
	}
}
