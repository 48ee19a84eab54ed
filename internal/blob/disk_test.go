package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"roadwatch.mg/internal/roads"
)

func TestPutOpenDelete(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1024)
	if err != nil {
		t.Fatalf("new disk: %v", err)
	}
	f, err := d.Put(context.Background(), "../../etc/Rapport RN7.PDF", "", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if f.Name != "Rapport RN7.PDF" || f.Size != 8 || f.ContentType != "application/pdf" {
		t.Fatalf("file = %+v", f)
	}
	if !strings.HasSuffix(f.Ref, ".pdf") {
		t.Fatalf("ref = %q", f.Ref)
	}
	if _, err := os.Stat(filepath.Join(dir, f.Ref)); err != nil {
		t.Fatalf("blob not stored under dir: %v", err)
	}

	rc, err := d.Open(f.Ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "%PDF-1.4" {
		t.Fatalf("body = %q", body)
	}

	if err := d.Delete(f.Ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := d.Delete(f.Ref); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := d.Open(f.Ref); !errors.Is(err, roads.ErrNotFound) {
		t.Fatalf("open deleted err = %v", err)
	}
}

func TestPutLimits(t *testing.T) {
	dir := t.TempDir()
	d, _ := NewDisk(dir, 4)
	if _, err := d.Put(context.Background(), "a.txt", "text/plain", strings.NewReader("12345")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("oversize err = %v", err)
	}
	if _, err := d.Put(context.Background(), "a.txt", "text/plain", strings.NewReader("")); !errors.Is(err, ErrEmpty) {
		t.Fatalf("empty err = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("rejected uploads left files behind: %v", entries)
	}
}

func TestRejectsTraversalRefs(t *testing.T) {
	d, _ := NewDisk(t.TempDir(), 0)
	for _, ref := range []string{"../secret", "/etc/passwd", "not-a-ulid.pdf", ""} {
		if _, err := d.Open(ref); !errors.Is(err, ErrInvalidRef) {
			t.Fatalf("Open(%q) err = %v", ref, err)
		}
	}
}
