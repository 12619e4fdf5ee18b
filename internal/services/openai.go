package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"docquiz/internal/config"
	"docquiz/internal/domain"
)

// StoreClient is the slice of the provider API the upload gateway needs:
// vector store lifecycle, raw file upload and batch attachment.
// *openai.Client satisfies it.
type StoreClient interface {
	CreateVectorStore(ctx context.Context, request openai.VectorStoreRequest) (openai.VectorStore, error)
	RetrieveVectorStore(ctx context.Context, vectorStoreID string) (openai.VectorStore, error)
	DeleteVectorStore(ctx context.Context, vectorStoreID string) (openai.VectorStoreDeleteResponse, error)
	CreateFile(ctx context.Context, request openai.FileRequest) (openai.File, error)
	DeleteFile(ctx context.Context, fileID string) error
	CreateVectorStoreFileBatch(ctx context.Context, vectorStoreID string, request openai.VectorStoreFileBatchRequest) (openai.VectorStoreFileBatch, error)
	RetrieveVectorStoreFileBatch(ctx context.Context, vectorStoreID string, batchID string) (openai.VectorStoreFileBatch, error)
}

// AssistantClient is the slice of the provider API the generation gateway
// needs: a scoped assistant/thread/run conversation over a vector store.
// *openai.Client satisfies it.
type AssistantClient interface {
	RetrieveVectorStore(ctx context.Context, vectorStoreID string) (openai.VectorStore, error)
	CreateAssistant(ctx context.Context, request openai.AssistantRequest) (openai.Assistant, error)
	DeleteAssistant(ctx context.Context, assistantID string) (openai.AssistantDeleteResponse, error)
	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	DeleteThread(ctx context.Context, threadID string) (openai.ThreadDeleteResponse, error)
	CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error)
	ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error)
	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID string, runID string) (openai.Run, error)
}

// NewOpenAIClient builds the single long-lived provider client owned by the
// process.
func NewOpenAIClient(cfg config.Config) (*openai.Client, error) {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil, errors.New("openai api key is not configured")
	}
	return openai.NewClient(cfg.OpenAIAPIKey), nil
}

// isAPINotFound reports whether the provider rejected a request because the
// referenced resource does not exist.
func isAPINotFound(err error) bool {
	var apiErr *openai.APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound
}

// categorizeRemoteError maps a raw provider error onto the taxonomy,
// preserving context cancellation as a timeout.
func categorizeRemoteError(err error, kind domain.Kind, format string, args ...any) *domain.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.TimeoutError(err, format, args...)
	}
	switch kind {
	case domain.KindUploadFailed:
		return domain.UploadFailedError(err, format, args...)
	case domain.KindGenerationFailed:
		return domain.GenerationFailedError(err, format, args...)
	default:
		return domain.UnexpectedError(err, format, args...)
	}
}
