package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docquiz/internal/config"
	"docquiz/internal/domain"
)

const generateInstructions = "You are a quiz generator. You create multiple-choice questions strictly from the content of the attached documents, using the file_search tool. You respond with JSON only, no prose and no markdown fences."

const strictRetryPrompt = `Your previous answer was not valid JSON matching the required schema. Respond again with ONLY a JSON object of the exact shape {"quiz":[{"question":"...","options":[{"text":"...","correct":true},...]}]} and nothing else. Every question must have exactly 4 options with exactly one marked correct.`

// citation markers the file_search tool injects into message text
var citationPattern = regexp.MustCompile(`【[^】]*】`)

// GenerateService is the question generation gateway: it resolves a store
// handle, runs a scoped assistant conversation over it and returns a
// schema-validated question set.
type GenerateService struct {
	client        AssistantClient
	model         string
	questionCount int
	pollInterval  time.Duration
	runPollLimit  int
	llmLog        *LLMLogger
}

func NewGenerateService(cfg config.Config, client AssistantClient, llmLog *LLMLogger) *GenerateService {
	return &GenerateService{
		client:        client,
		model:         cfg.OpenAIModel,
		questionCount: cfg.QuestionCount,
		pollInterval:  cfg.PollInterval,
		runPollLimit:  cfg.RunPollLimit,
		llmLog:        llmLog,
	}
}

type quizPayload struct {
	Quiz []domain.Question `json:"quiz"`
}

// Generate produces new questions from the documents behind storeID,
// excluding repeats of the supplied prior question texts. The returned set
// satisfies the question invariants; it may be empty when the provider
// produced nothing new.
func (s *GenerateService) Generate(ctx context.Context, storeID string, exclude []string) ([]domain.Question, error) {
	if strings.TrimSpace(storeID) == "" {
		return nil, domain.ValidationErrorf("missing store handle")
	}

	store, err := s.client.RetrieveVectorStore(ctx, storeID)
	if err != nil {
		if isAPINotFound(err) {
			return nil, domain.NotFoundErrorf("document store %s not found", storeID)
		}
		return nil, categorizeRemoteError(err, domain.KindGenerationFailed, "failed to resolve document store")
	}
	if store.FileCounts.Total == 0 {
		return nil, domain.ValidationErrorf("no files found in document store")
	}

	assistant, err := s.client.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        s.model,
		Name:         ptr("docquiz generator"),
		Instructions: ptr(generateInstructions),
		Tools: []openai.AssistantTool{
			{Type: openai.AssistantToolTypeFileSearch},
		},
		ToolResources: &openai.AssistantToolResource{
			FileSearch: &openai.AssistantToolFileSearch{
				VectorStoreIDs: []string{storeID},
			},
		},
	})
	if err != nil {
		return nil, categorizeRemoteError(err, domain.KindGenerationFailed, "failed to prepare question generation")
	}
	defer func() {
		if _, err := s.client.DeleteAssistant(context.WithoutCancel(ctx), assistant.ID); err != nil {
			log.Printf("cleanup: delete assistant %s: %v", assistant.ID, err)
		}
	}()

	thread, err := s.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return nil, categorizeRemoteError(err, domain.KindGenerationFailed, "failed to start question generation")
	}
	defer func() {
		if _, err := s.client.DeleteThread(context.WithoutCancel(ctx), thread.ID); err != nil {
			log.Printf("cleanup: delete thread %s: %v", thread.ID, err)
		}
	}()

	raw, err := s.converse(ctx, assistant.ID, thread.ID, s.buildPrompt(exclude))
	if err != nil {
		return nil, err
	}

	questions, parseErr := parseQuestions(raw)
	if parseErr != nil {
		// One retry with a stricter output contract before giving up.
		log.Printf("generation response rejected (%v), retrying with strict contract", parseErr)
		raw, err = s.converse(ctx, assistant.ID, thread.ID, strictRetryPrompt)
		if err != nil {
			return nil, err
		}
		questions, parseErr = parseQuestions(raw)
		if parseErr != nil {
			return nil, domain.SchemaValidationError(parseErr, "generated questions did not match the expected format")
		}
	}

	return filterExcluded(questions, exclude), nil
}

// converse posts one user message, runs the assistant over it with bounded
// polling and returns the text of the newest assistant reply.
func (s *GenerateService) converse(ctx context.Context, assistantID, threadID, prompt string) (string, error) {
	s.llmLog.LogRequest("generate", prompt)

	if _, err := s.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	}); err != nil {
		return "", categorizeRemoteError(err, domain.KindGenerationFailed, "failed to send generation request")
	}

	run, err := s.client.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return "", categorizeRemoteError(err, domain.KindGenerationFailed, "failed to start generation run")
	}

	for attempt := 0; !terminalRunStatus(run.Status); attempt++ {
		if attempt >= s.runPollLimit {
			return "", domain.TimeoutError(nil, "question generation timed out")
		}

		select {
		case <-ctx.Done():
			return "", domain.TimeoutError(ctx.Err(), "question generation timed out")
		case <-time.After(s.pollInterval):
		}

		run, err = s.client.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return "", categorizeRemoteError(err, domain.KindGenerationFailed, "failed to check generation status")
		}
	}

	if run.Status != openai.RunStatusCompleted {
		msg := string(run.Status)
		if run.LastError != nil && run.LastError.Message != "" {
			msg = run.LastError.Message
		}
		return "", domain.GenerationFailedError(nil, "question generation failed: %s", msg)
	}

	limit := 1
	order := "desc"
	messages, err := s.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, &run.ID)
	if err != nil {
		return "", categorizeRemoteError(err, domain.KindGenerationFailed, "failed to read generation response")
	}

	for _, msg := range messages.Messages {
		if msg.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		for _, part := range msg.Content {
			if part.Text != nil && part.Text.Value != "" {
				s.llmLog.LogResponse("generate", part.Text.Value)
				return part.Text.Value, nil
			}
		}
	}

	return "", domain.GenerationFailedError(nil, "generation run produced no response")
}

func (s *GenerateService) buildPrompt(exclude []string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Generate exactly %d multiple-choice questions based on the attached documents.\n\n", s.questionCount)
	sb.WriteString("Requirements:\n")
	sb.WriteString("- Each question has exactly 4 options\n")
	sb.WriteString("- Exactly one option per question is correct\n")
	sb.WriteString("- Questions and options must be answerable from the documents alone\n")
	sb.WriteString(`- Respond with ONLY a JSON object: {"quiz":[{"question":"...","options":[{"text":"...","correct":false},...]}]}` + "\n")

	if len(exclude) > 0 {
		sb.WriteString("\nDo NOT repeat or rephrase any of these already-asked questions:\n")
		for _, text := range exclude {
			fmt.Fprintf(&sb, "- %s\n", text)
		}
	}

	return sb.String()
}

// parseQuestions decodes a raw assistant reply into a validated question
// set. Markdown fences and file_search citation markers are tolerated.
func parseQuestions(raw string) ([]domain.Question, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = citationPattern.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	var payload quizPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("decode quiz payload: %w", err)
	}

	if len(payload.Quiz) == 0 {
		// A well-formed empty set is not a schema violation; the session
		// layer decides what an empty result means.
		return nil, nil
	}

	if err := domain.ValidateQuestionSet(payload.Quiz); err != nil {
		return nil, err
	}
	return payload.Quiz, nil
}

// filterExcluded drops questions whose text matches a previously asked one.
// The prompt already asks the provider not to repeat itself; this is the
// local backstop.
func filterExcluded(questions []domain.Question, exclude []string) []domain.Question {
	if len(exclude) == 0 || len(questions) == 0 {
		return questions
	}

	seen := make(map[string]struct{}, len(exclude))
	for _, text := range exclude {
		seen[normalizeText(text)] = struct{}{}
	}

	kept := questions[:0]
	for _, q := range questions {
		if _, dup := seen[normalizeText(q.Text)]; dup {
			continue
		}
		kept = append(kept, q)
	}
	return kept
}

func normalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func terminalRunStatus(status openai.RunStatus) bool {
	switch status {
	case openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusCancelling:
		return false
	}
	return true
}

func ptr[T any](v T) *T {
	return &v
}
