package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medconnect/internal/blob"
	"medconnect/internal/notify"
	"medconnect/pkg/domain"
)

const documentPrefix = "documents/"

// AllowedDocumentTypes lists the MIME types accepted for upload.
var AllowedDocumentTypes = []string{"image/jpeg", "image/jpg", "image/png", "application/pdf"}

// FileMeta describes an upload. Content may be nil for metadata-only uploads.
type FileMeta struct {
	Name        string
	ContentType string
	Size        int64
	Kind        string
	Content     io.Reader
}

func documentTypeAllowed(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, allowed := range AllowedDocumentTypes {
		if ct == allowed {
			return true
		}
	}
	return false
}

func documentKey(ownerID, id, name string) string {
	return fmt.Sprintf("%s%s/%s/%s", documentPrefix, ownerID, id, path.Base(name))
}

// UploadDocument validates meta, stores the content and records the document.
// Nothing is persisted when any step fails.
func (s *Service) UploadDocument(ctx context.Context, ownerID string, meta FileMeta) (domain.Document, domain.Result, error) {
	var created domain.Document
	ctx, done := s.instrument(ctx, "upload_document")
	res, err := s.uploadDocument(ctx, ownerID, meta, &created)
	done(err)
	return created, res, err
}

func (s *Service) uploadDocument(ctx context.Context, ownerID string, meta FileMeta, created *domain.Document) (domain.Result, error) {
	ownerID = strings.TrimSpace(ownerID)
	name := strings.TrimSpace(meta.Name)
	switch {
	case ownerID == "":
		return domain.Result{}, domain.ValidationError{Field: "owner_id", Message: "is required"}
	case name == "":
		return domain.Result{}, domain.ValidationError{Field: "name", Message: "is required"}
	case meta.Size < 0:
		return domain.Result{}, domain.ValidationError{Field: "size", Message: "must not be negative"}
	}
	if !documentTypeAllowed(meta.ContentType) {
		return domain.Result{}, domain.UnsupportedTypeError{ContentType: meta.ContentType}
	}
	if meta.Size > s.maxDocumentBytes {
		return domain.Result{}, domain.FileTooLargeError{Size: meta.Size, Limit: s.maxDocumentBytes}
	}

	id := uuid.NewString()
	key := documentKey(ownerID, id, name)
	content := meta.Content
	if content == nil {
		content = bytes.NewReader(nil)
	}
	info, err := s.blobs.Put(ctx, key, content, blob.PutOptions{
		ContentType: strings.ToLower(strings.TrimSpace(meta.ContentType)),
		Metadata:    map[string]string{"owner": ownerID, "document": id},
		MaxBytes:    s.maxDocumentBytes,
	})
	if err != nil {
		if errors.Is(err, blob.ErrTooLarge) {
			return domain.Result{}, domain.FileTooLargeError{Size: max(meta.Size, s.maxDocumentBytes+1), Limit: s.maxDocumentBytes}
		}
		return domain.Result{}, fmt.Errorf("store document content: %w", err)
	}

	size := meta.Size
	if meta.Content != nil {
		size = info.Size
	}
	url := info.URL
	if url == "" {
		url = s.presign(ctx, key)
	}
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		*created, err = tx.CreateDocument(domain.Document{
			Base:        domain.Base{ID: id},
			OwnerID:     ownerID,
			Name:        name,
			ContentType: strings.ToLower(strings.TrimSpace(meta.ContentType)),
			Size:        size,
			Kind:        strings.TrimSpace(meta.Kind),
			UploadedAt:  s.clock.Now(),
			Locator:     key,
			URL:         url,
		})
		return err
	})
	if err != nil {
		*created = domain.Document{}
		s.removeBlob(ctx, key)
		return res, err
	}
	return res, nil
}

// DeleteDocument removes the document record on behalf of requesterID and
// then its content. The owner is notified when someone else deletes it.
func (s *Service) DeleteDocument(ctx context.Context, requesterID, id string) (domain.Result, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		err := domain.ValidationError{Field: "requester_id", Message: "is required"}
		_, done := s.instrument(ctx, "delete_document")
		done(err)
		return domain.Result{}, err
	}
	var removed domain.Document
	res, err := s.run(ctx, "delete_document", func(tx domain.Transaction) error {
		doc, ok := tx.FindDocument(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityDocument, ID: id}
		}
		removed = doc
		return tx.DeleteDocument(id)
	})
	if err != nil {
		return res, err
	}
	s.logger.Info("document deleted",
		zap.String("document_id", removed.ID),
		zap.String("owner_id", removed.OwnerID),
		zap.String("deleted_by", requesterID),
	)
	s.removeBlob(ctx, removed.Locator)
	if requesterID != removed.OwnerID {
		s.publish(ctx, notify.Event{
			Type:     notify.EventDocumentDeleted,
			Audience: removed.OwnerID,
			Attributes: map[string]string{
				"document_id": removed.ID,
				"name":        removed.Name,
				"deleted_by":  requesterID,
			},
		})
	}
	return res, nil
}

func (s *Service) removeBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if _, err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn("document content cleanup failed", zap.String("key", key), zap.Error(err))
	}
}

// ListDocuments returns the documents owned by ownerID in upload order.
func (s *Service) ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error) {
	out := []domain.Document{}
	err := s.view(ctx, "list_documents", func(v domain.TransactionView) error {
		for _, d := range v.ListDocuments() {
			if d.OwnerID == ownerID {
				out = append(out, d)
			}
		}
		return nil
	})
	return out, err
}

// OpenDocument returns the document record and a reader over its content.
// The caller must close the reader.
func (s *Service) OpenDocument(ctx context.Context, id string) (domain.Document, io.ReadCloser, error) {
	ctx, done := s.instrument(ctx, "open_document")
	doc, ok := s.store.GetDocument(id)
	if !ok {
		err := domain.NotFoundError{Entity: domain.EntityDocument, ID: id}
		done(err)
		return domain.Document{}, nil, err
	}
	_, rc, err := s.blobs.Get(ctx, doc.Locator)
	if err != nil {
		err = fmt.Errorf("open document content %s: %w", id, err)
		done(err)
		return domain.Document{}, nil, err
	}
	done(nil)
	return doc, rc, nil
}

// DocumentURL returns a fresh time-limited download URL for the document.
// Drivers without URL support yield an error wrapping blob.ErrUnsupported.
func (s *Service) DocumentURL(ctx context.Context, id string) (string, error) {
	ctx, done := s.instrument(ctx, "document_url")
	doc, ok := s.store.GetDocument(id)
	if !ok {
		err := domain.NotFoundError{Entity: domain.EntityDocument, ID: id}
		done(err)
		return "", err
	}
	url, err := s.blobs.PresignURL(ctx, doc.Locator, blob.SignedURLOptions{Method: http.MethodGet})
	if err != nil {
		err = fmt.Errorf("presign document %s: %w", id, err)
		done(err)
		return "", err
	}
	done(nil)
	return url, nil
}

func (s *Service) presign(ctx context.Context, key string) string {
	url, err := s.blobs.PresignURL(ctx, key, blob.SignedURLOptions{Method: http.MethodGet})
	if err != nil {
		if !errors.Is(err, blob.ErrUnsupported) {
			s.logger.Warn("document url presign failed", zap.String("key", key), zap.Error(err))
		}
		return ""
	}
	return url
}

// SweepOrphanedContent deletes stored document content that no document
// record references, such as content left behind by a failed cleanup. It
// returns the number of blobs removed.
func (s *Service) SweepOrphanedContent(ctx context.Context) (int, error) {
	ctx, done := s.instrument(ctx, "sweep_orphaned_content")
	referenced := make(map[string]struct{})
	for _, d := range s.store.ListDocuments() {
		referenced[d.Locator] = struct{}{}
	}
	infos, err := s.blobs.List(ctx, documentPrefix)
	if err != nil {
		err = fmt.Errorf("list document content: %w", err)
		done(err)
		return 0, err
	}
	removed := 0
	for _, info := range infos {
		if _, ok := referenced[info.Key]; ok {
			continue
		}
		deleted, err := s.blobs.Delete(ctx, info.Key)
		if err != nil {
			err = fmt.Errorf("delete orphaned content %s: %w", info.Key, err)
			done(err)
			return removed, err
		}
		if deleted {
			removed++
		}
	}
	done(nil)
	return removed, nil
}
