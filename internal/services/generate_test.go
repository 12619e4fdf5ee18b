package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docquiz/internal/config"
	"docquiz/internal/domain"
)

type fakeAssistantClient struct {
	storeErr   error
	fileTotal  int
	responses  []string
	runStatus  openai.RunStatus
	prompts    []string
	deletedAst []string
	deletedThr []string
	replies    int
}

func (f *fakeAssistantClient) RetrieveVectorStore(ctx context.Context, vectorStoreID string) (openai.VectorStore, error) {
	if f.storeErr != nil {
		return openai.VectorStore{}, f.storeErr
	}
	return openai.VectorStore{
		ID:         vectorStoreID,
		FileCounts: openai.VectorStoreFileCount{Completed: f.fileTotal, Total: f.fileTotal},
	}, nil
}

func (f *fakeAssistantClient) CreateAssistant(ctx context.Context, request openai.AssistantRequest) (openai.Assistant, error) {
	return openai.Assistant{ID: "asst_test"}, nil
}

func (f *fakeAssistantClient) DeleteAssistant(ctx context.Context, assistantID string) (openai.AssistantDeleteResponse, error) {
	f.deletedAst = append(f.deletedAst, assistantID)
	return openai.AssistantDeleteResponse{}, nil
}

func (f *fakeAssistantClient) CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error) {
	return openai.Thread{ID: "thread_test"}, nil
}

func (f *fakeAssistantClient) DeleteThread(ctx context.Context, threadID string) (openai.ThreadDeleteResponse, error) {
	f.deletedThr = append(f.deletedThr, threadID)
	return openai.ThreadDeleteResponse{}, nil
}

func (f *fakeAssistantClient) CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error) {
	f.prompts = append(f.prompts, request.Content)
	return openai.Message{ID: "msg_user"}, nil
}

func (f *fakeAssistantClient) ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error) {
	reply := ""
	if f.replies < len(f.responses) {
		reply = f.responses[f.replies]
	}
	f.replies++
	return openai.MessagesList{Messages: []openai.Message{
		{
			Role: openai.ChatMessageRoleAssistant,
			Content: []openai.MessageContent{
				{Type: "text", Text: &openai.MessageText{Value: reply}},
			},
		},
	}}, nil
}

func (f *fakeAssistantClient) CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error) {
	status := f.runStatus
	if status == "" {
		status = openai.RunStatusCompleted
	}
	return openai.Run{ID: "run_test", Status: status}, nil
}

func (f *fakeAssistantClient) RetrieveRun(ctx context.Context, threadID string, runID string) (openai.Run, error) {
	status := f.runStatus
	if status == "" {
		status = openai.RunStatusCompleted
	}
	return openai.Run{ID: runID, Status: status}, nil
}

func generateTestConfig() config.Config {
	return config.Config{
		OpenAIModel:   "gpt-4o",
		QuestionCount: 10,
		PollInterval:  time.Millisecond,
		RunPollLimit:  3,
	}
}

const validQuizJSON = `{"quiz":[
	{"question":"What is the boiling point of water at sea level?","options":[
		{"text":"100 C","correct":true},
		{"text":"90 C","correct":false},
		{"text":"80 C","correct":false},
		{"text":"120 C","correct":false}]},
	{"question":"Which gas do plants absorb?","options":[
		{"text":"Oxygen","correct":false},
		{"text":"Carbon dioxide","correct":true},
		{"text":"Nitrogen","correct":false},
		{"text":"Helium","correct":false}]}
]}`

func TestGenerateHappyPath(t *testing.T) {
	client := &fakeAssistantClient{fileTotal: 2, responses: []string{"```json\n" + validQuizJSON + "\n```"}}
	svc := NewGenerateService(generateTestConfig(), client, nil)

	questions, err := svc.Generate(context.Background(), "vs_test", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if err := domain.ValidateQuestionSet(questions); err != nil {
		t.Fatalf("returned set violates invariants: %v", err)
	}

	// Transient conversation resources must be cleaned up.
	if len(client.deletedAst) != 1 || len(client.deletedThr) != 1 {
		t.Fatalf("expected assistant and thread cleanup, got %v / %v", client.deletedAst, client.deletedThr)
	}
}

func TestGenerateMissingHandle(t *testing.T) {
	svc := NewGenerateService(generateTestConfig(), &fakeAssistantClient{}, nil)

	_, err := svc.Generate(context.Background(), "  ", nil)
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation kind, got %v", err)
	}
}

func TestGenerateUnknownStore(t *testing.T) {
	client := &fakeAssistantClient{storeErr: &openai.APIError{HTTPStatusCode: http.StatusNotFound, Message: "not found"}}
	svc := NewGenerateService(generateTestConfig(), client, nil)

	_, err := svc.Generate(context.Background(), "vs_missing", nil)
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not_found kind, got %v", err)
	}
}

func TestGenerateEmptyStore(t *testing.T) {
	client := &fakeAssistantClient{fileTotal: 0}
	svc := NewGenerateService(generateTestConfig(), client, nil)

	_, err := svc.Generate(context.Background(), "vs_empty", nil)
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation kind, got %v", err)
	}
}

func TestGenerateStrictRetryAfterBadResponse(t *testing.T) {
	client := &fakeAssistantClient{
		fileTotal: 1,
		responses: []string{"Sorry, here are your questions as a table instead.", validQuizJSON},
	}
	svc := NewGenerateService(generateTestConfig(), client, nil)

	questions, err := svc.Generate(context.Background(), "vs_test", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions from the retry, got %d", len(questions))
	}
	if len(client.prompts) != 2 {
		t.Fatalf("expected exactly one fallback attempt, saw %d prompts", len(client.prompts))
	}
}

func TestGenerateSchemaFailureAfterRetry(t *testing.T) {
	bad := `{"quiz":[{"question":"q","options":[{"text":"a","correct":true},{"text":"b","correct":true}]}]}`
	client := &fakeAssistantClient{fileTotal: 1, responses: []string{bad, bad}}
	svc := NewGenerateService(generateTestConfig(), client, nil)

	_, err := svc.Generate(context.Background(), "vs_test", nil)
	if domain.KindOf(err) != domain.KindSchemaValidation {
		t.Fatalf("expected schema_validation kind, got %v", err)
	}

	// Cleanup also runs on failure.
	if len(client.deletedAst) != 1 || len(client.deletedThr) != 1 {
		t.Fatalf("expected cleanup on failure")
	}
}

func TestGenerateRejectsOversizedSet(t *testing.T) {
	client := &fakeAssistantClient{
		fileTotal: 1,
		responses: []string{oversizedQuizJSON(t, 11), validQuizJSON},
	}
	svc := NewGenerateService(generateTestConfig(), client, nil)

	questions, err := svc.Generate(context.Background(), "vs_test", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// The oversized payload must not be truncated; it triggers the one
	// fallback attempt, whose reply is what comes back.
	if len(questions) != 2 {
		t.Fatalf("expected the 2 retry questions, got %d", len(questions))
	}
	if len(client.prompts) != 2 {
		t.Fatalf("expected the strict retry to fire, saw %d prompts", len(client.prompts))
	}
}

func TestGenerateOversizedSetTwiceIsSchemaViolation(t *testing.T) {
	oversized := oversizedQuizJSON(t, 12)
	client := &fakeAssistantClient{fileTotal: 1, responses: []string{oversized, oversized}}
	svc := NewGenerateService(generateTestConfig(), client, nil)

	_, err := svc.Generate(context.Background(), "vs_test", nil)
	if domain.KindOf(err) != domain.KindSchemaValidation {
		t.Fatalf("expected schema_validation kind, got %v", err)
	}
}

func oversizedQuizJSON(t *testing.T, n int) string {
	t.Helper()

	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			Text: fmt.Sprintf("Question number %d?", i),
			Options: []domain.Option{
				{Text: "right", Correct: true},
				{Text: "wrong a"},
				{Text: "wrong b"},
				{Text: "wrong c"},
			},
		}
	}

	payload, err := json.Marshal(map[string]any{"quiz": questions})
	if err != nil {
		t.Fatalf("marshal quiz payload: %v", err)
	}
	return string(payload)
}

func TestGenerateRunTimeout(t *testing.T) {
	client := &fakeAssistantClient{fileTotal: 1, runStatus: openai.RunStatusInProgress}
	svc := NewGenerateService(generateTestConfig(), client, nil)

	_, err := svc.Generate(context.Background(), "vs_test", nil)
	if domain.KindOf(err) != domain.KindTimeout {
		t.Fatalf("expected timeout kind, got %v", err)
	}
}

func TestGenerateRunFailure(t *testing.T) {
	client := &fakeAssistantClient{fileTotal: 1, runStatus: openai.RunStatusFailed}
	svc := NewGenerateService(generateTestConfig(), client, nil)

	_, err := svc.Generate(context.Background(), "vs_test", nil)
	if domain.KindOf(err) != domain.KindGenerationFailed {
		t.Fatalf("expected generation_failed kind, got %v", err)
	}
}

func TestGenerateExclusionPromptAndFilter(t *testing.T) {
	client := &fakeAssistantClient{fileTotal: 1, responses: []string{validQuizJSON}}
	svc := NewGenerateService(generateTestConfig(), client, nil)

	exclude := []string{"What is the boiling point of water at sea level?"}
	questions, err := svc.Generate(context.Background(), "vs_test", exclude)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// The repeated question is filtered locally even when the provider
	// ignores the exclusion instruction.
	if len(questions) != 1 {
		t.Fatalf("expected 1 question after exclusion filter, got %d", len(questions))
	}
	for _, q := range questions {
		if q.Text == exclude[0] {
			t.Fatalf("excluded question leaked through")
		}
	}

	if len(client.prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(client.prompts))
	}
	if want := exclude[0]; !strings.Contains(client.prompts[0], want) {
		t.Fatalf("prompt does not carry the exclusion list")
	}
}
