package services

import (
	"context"
	"fmt"
	"log"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docquiz/internal/config"
	"docquiz/internal/domain"
	"docquiz/internal/storage"
)

const (
	batchStatusCompleted  = "completed"
	batchStatusFailed     = "failed"
	batchStatusCancelled  = "cancelled"
	batchStatusInProgress = "in_progress"
)

// UploadService is the upload gateway: it validates a staged batch locally,
// creates a provider vector store, uploads every document, binds them with a
// single batch-attach call and polls that attach to a terminal state.
type UploadService struct {
	client          StoreClient
	maxFiles        int
	maxFileBytes    int64
	maxTotalBytes   int64
	storeExpiryDays int
	pollInterval    time.Duration
	attachPollLimit int
}

func NewUploadService(cfg config.Config, client StoreClient) *UploadService {
	return &UploadService{
		client:          client,
		maxFiles:        cfg.MaxFiles,
		maxFileBytes:    cfg.MaxFileBytes,
		maxTotalBytes:   cfg.MaxTotalBytes,
		storeExpiryDays: cfg.StoreExpiryDays,
		pollInterval:    cfg.PollInterval,
		attachPollLimit: cfg.AttachPollLimit,
	}
}

// Upload runs the full batch hand-off. Local validation failures return a
// validation error before any provider call is made. A remote failure rolls
// back every resource already created, best effort, then surfaces an upload
// error. If the attach is still running after the polling ceiling the result
// comes back with Pending set and no rollback is performed.
func (s *UploadService) Upload(ctx context.Context, files []domain.StagedFile) (domain.UploadResult, error) {
	if err := s.validateBatch(files); err != nil {
		return domain.UploadResult{}, err
	}

	store, err := s.client.CreateVectorStore(ctx, openai.VectorStoreRequest{
		Name: fmt.Sprintf("docquiz-%d", time.Now().Unix()),
		ExpiresAfter: &openai.VectorStoreExpires{
			Anchor: "last_active_at",
			Days:   s.storeExpiryDays,
		},
	})
	if err != nil {
		return domain.UploadResult{}, categorizeRemoteError(err, domain.KindUploadFailed, "failed to create document store")
	}

	fileIDs := make([]string, 0, len(files))
	for _, f := range files {
		// Streamed from the staged path, never buffered in memory.
		uploaded, err := s.client.CreateFile(ctx, openai.FileRequest{
			FileName: f.Name,
			FilePath: f.Path,
			Purpose:  string(openai.PurposeAssistants),
		})
		if err != nil {
			s.rollback(ctx, store.ID, fileIDs)
			return domain.UploadResult{}, categorizeRemoteError(err, domain.KindUploadFailed, "failed to upload %s", f.Name)
		}
		fileIDs = append(fileIDs, uploaded.ID)
	}

	attach, err := s.client.CreateVectorStoreFileBatch(ctx, store.ID, openai.VectorStoreFileBatchRequest{
		FileIDs: fileIDs,
	})
	if err != nil {
		s.rollback(ctx, store.ID, fileIDs)
		return domain.UploadResult{}, categorizeRemoteError(err, domain.KindUploadFailed, "failed to attach files to document store")
	}

	status := attach.Status
	for attempt := 0; status != batchStatusCompleted && status != batchStatusFailed && status != batchStatusCancelled; attempt++ {
		if attempt >= s.attachPollLimit {
			// Non-terminal after the ceiling: hand the store back so the
			// caller can re-check, leaving the remote resources in place.
			return domain.UploadResult{
				StoreID:       store.ID,
				FileIDs:       fileIDs,
				AttachBatchID: attach.ID,
				Pending:       true,
			}, nil
		}

		select {
		case <-ctx.Done():
			return domain.UploadResult{}, domain.TimeoutError(ctx.Err(), "timed out waiting for document indexing")
		case <-time.After(s.pollInterval):
		}

		polled, err := s.client.RetrieveVectorStoreFileBatch(ctx, store.ID, attach.ID)
		if err != nil {
			s.rollback(ctx, store.ID, fileIDs)
			return domain.UploadResult{}, categorizeRemoteError(err, domain.KindUploadFailed, "failed to check indexing status")
		}
		status = polled.Status
	}

	if status != batchStatusCompleted {
		s.rollback(ctx, store.ID, fileIDs)
		return domain.UploadResult{}, domain.UploadFailedError(nil, "document indexing %s", status)
	}

	return domain.UploadResult{
		StoreID:       store.ID,
		FileIDs:       fileIDs,
		AttachBatchID: attach.ID,
	}, nil
}

func (s *UploadService) validateBatch(files []domain.StagedFile) error {
	if len(files) == 0 {
		return domain.ValidationErrorf("no files provided")
	}
	if len(files) > s.maxFiles {
		return domain.ValidationErrorf("too many files: %d (maximum is %d)", len(files), s.maxFiles)
	}

	total := int64(0)
	for _, f := range files {
		if !storage.HasPDFExtension(f.Name) {
			return domain.ValidationErrorf("file %s is not a PDF", f.Name)
		}
		if s.maxFileBytes > 0 && f.Size > s.maxFileBytes {
			return domain.ValidationErrorf("file %s exceeds the %d MB per-file limit", f.Name, s.maxFileBytes/(1024*1024))
		}
		total += f.Size
	}
	if s.maxTotalBytes > 0 && total > s.maxTotalBytes {
		return domain.ValidationErrorf("batch exceeds the %d MB total limit", s.maxTotalBytes/(1024*1024))
	}

	return nil
}

// rollback deletes every uploaded file and the store itself. Failures are
// logged, never surfaced.
func (s *UploadService) rollback(ctx context.Context, storeID string, fileIDs []string) {
	// Deletion should still run when the triggering call was cancelled.
	ctx = context.WithoutCancel(ctx)

	for _, id := range fileIDs {
		if err := s.client.DeleteFile(ctx, id); err != nil {
			log.Printf("rollback: delete file %s: %v", id, err)
		}
	}
	if _, err := s.client.DeleteVectorStore(ctx, storeID); err != nil {
		log.Printf("rollback: delete store %s: %v", storeID, err)
	}
}
