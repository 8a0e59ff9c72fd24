package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"medconnect/internal/blob/core"
)

func TestStore_MissingHeadGet(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found head error, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found get error, got %v", err)
	}
	if ok, err := store.Delete(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected delete false")
	}
}

func TestStore_PutGetListDelete(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "documents/p1/a/scan.pdf", bytes.NewReader([]byte("pdf")), core.PutOptions{ContentType: "application/pdf", Metadata: map[string]string{"owner": "p1"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "documents/p1/a/scan.pdf", bytes.NewReader([]byte("v2")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected duplicate put error, got %v", err)
	}
	if _, err := store.Put(ctx, "documents/p2/b/x.png", bytes.NewReader([]byte("png")), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	info, rc, err := store.Get(ctx, "documents/p1/a/scan.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "pdf" || info.ContentType != "application/pdf" || info.Metadata["owner"] != "p1" {
		t.Fatalf("unexpected get result %+v %q", info, body)
	}
	if list, err := store.List(ctx, "documents/p1/"); err != nil || len(list) != 1 {
		t.Fatalf("list prefix: %v %d", err, len(list))
	}
	if list, err := store.List(ctx, ""); err != nil || len(list) != 2 || list[0].Key > list[1].Key {
		t.Fatalf("list all: %v %+v", err, list)
	}
	if ok, err := store.Delete(ctx, "documents/p1/a/scan.pdf"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, err := store.PresignURL(ctx, "documents/p2/b/x.png", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported presign")
	}
}

func TestStore_MaxBytes(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "big", strings.NewReader("12345"), core.PutOptions{MaxBytes: 4}); !errors.Is(err, core.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := store.Head(ctx, "big"); err == nil {
		t.Fatalf("oversized blob must not be stored")
	}
	if _, err := store.Put(ctx, "fits", strings.NewReader("1234"), core.PutOptions{MaxBytes: 4}); err != nil {
		t.Fatalf("put at limit: %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, fmt.Errorf("fail") }

func TestStore_PutReadErrorAndDriver(t *testing.T) {
	store := New()
	if store.Driver() != core.DriverMemory {
		t.Fatalf("expected memory driver")
	}
	if _, err := store.Put(context.Background(), "bad", failingReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected read error")
	}
	if _, err := store.Put(context.Background(), " ", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}
