package domain

import (
	"fmt"
	"strings"
)

const (
	MinOptionsPerQuestion = 2
	MaxOptionsPerQuestion = 4
	MaxQuestionsPerSet    = 10
)

// Option is one candidate answer for a quiz question.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is one generated multiple-choice quiz item.
type Question struct {
	Text    string   `json:"question"`
	Options []Option `json:"options"`
}

// Validate checks the question invariants: non-empty text, 2-4 options,
// non-empty option texts and exactly one option marked correct.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("question text is empty")
	}
	if len(q.Options) < MinOptionsPerQuestion || len(q.Options) > MaxOptionsPerQuestion {
		return fmt.Errorf("question %q has %d options, want %d-%d", q.Text, len(q.Options), MinOptionsPerQuestion, MaxOptionsPerQuestion)
	}

	correct := 0
	for i, opt := range q.Options {
		if strings.TrimSpace(opt.Text) == "" {
			return fmt.Errorf("question %q option %d has empty text", q.Text, i)
		}
		if opt.Correct {
			correct++
		}
	}
	if correct != 1 {
		return fmt.Errorf("question %q has %d correct options, want exactly 1", q.Text, correct)
	}

	return nil
}

// CorrectIndex returns the index of the correct option, or -1 if the
// question violates the single-correct-option invariant.
func (q Question) CorrectIndex() int {
	idx := -1
	for i, opt := range q.Options {
		if opt.Correct {
			if idx >= 0 {
				return -1
			}
			idx = i
		}
	}
	return idx
}

// ValidateQuestionSet checks a generated batch: 1-10 questions, each valid.
func ValidateQuestionSet(questions []Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("question set is empty")
	}
	if len(questions) > MaxQuestionsPerSet {
		return fmt.Errorf("question set has %d questions, want at most %d", len(questions), MaxQuestionsPerSet)
	}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// StagedFile is a user-supplied document staged locally, not yet handed to
// the provider.
type StagedFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Path string `json:"-"`
}

// UploadResult is the outcome of a passing upload batch. Pending marks the
// still-in-progress case: the batch attach had not reached a terminal state
// before the polling ceiling, the store handle is usable but the caller
// should re-check before querying it.
type UploadResult struct {
	StoreID       string   `json:"storeHandle"`
	FileIDs       []string `json:"fileIds"`
	AttachBatchID string   `json:"attachBatchId"`
	Pending       bool     `json:"pending"`
}

// UploadBatch is the locally recorded history entry for one upload batch.
type UploadBatch struct {
	ID        string   `json:"id"`
	StoreID   string   `json:"storeHandle"`
	FileNames []string `json:"fileNames"`
	FileIDs   []string `json:"fileIds"`
	Status    string   `json:"status"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}

const (
	BatchStatusCompleted  = "completed"
	BatchStatusInProgress = "in_progress"
	BatchStatusFailed     = "failed"
)
