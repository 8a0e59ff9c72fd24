package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"medconnect/internal/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		cfg  config.Blob
		want Driver
	}{
		{cfg: config.Blob{}, want: DriverMemory},
		{cfg: config.Blob{Driver: "memory"}, want: DriverMemory},
		{cfg: config.Blob{Driver: "fs", FSRoot: t.TempDir()}, want: DriverFilesystem},
		{cfg: config.Blob{Driver: "s3", S3: config.S3{Bucket: "docs", Region: "eu-west-1"}}, want: DriverS3},
	}
	for _, tc := range cases {
		store, err := Open(ctx, tc.cfg)
		if err != nil {
			t.Fatalf("open %q: %v", tc.cfg.Driver, err)
		}
		if store.Driver() != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, store.Driver())
		}
	}
}

func TestOpenRejectsUnknownAndIncompleteConfig(t *testing.T) {
	if _, err := Open(context.Background(), config.Blob{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(context.Background(), config.Blob{Driver: "s3"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestDriversShareSemantics(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	for _, store := range []Store{NewMemory(), fsStore, NewMockS3ForTests()} {
		t.Run(string(store.Driver()), func(t *testing.T) {
			if _, err := store.Put(ctx, "documents/p1/d1/a.pdf", bytes.NewReader([]byte("pdf")), PutOptions{ContentType: "application/pdf", MaxBytes: 3}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := store.Put(ctx, "documents/p1/d1/a.pdf", bytes.NewReader([]byte("pdf")), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			if _, err := store.Put(ctx, "documents/p1/d2/b.pdf", bytes.NewReader([]byte("toolong")), PutOptions{MaxBytes: 3}); !errors.Is(err, ErrTooLarge) {
				t.Fatalf("expected ErrTooLarge, got %v", err)
			}
			_, rc, err := store.Get(ctx, "documents/p1/d1/a.pdf")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			b, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(b) != "pdf" {
				t.Fatalf("unexpected body %q", b)
			}
			if ok, err := store.Delete(ctx, "documents/p1/d1/a.pdf"); err != nil || !ok {
				t.Fatalf("delete: %v %v", ok, err)
			}
			if _, err := store.Head(ctx, "documents/p1/d1/a.pdf"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}
