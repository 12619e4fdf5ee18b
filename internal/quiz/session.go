package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"docquiz/internal/domain"
)

// Phase is the overall session state driving the UI.
type Phase string

const (
	PhaseCollectingFiles Phase = "collecting-files"
	PhaseUploading       Phase = "uploading"
	PhaseGenerating      Phase = "generating"
	PhaseAnswering       Phase = "answering"
	PhaseFinished        Phase = "finished"
)

var (
	// ErrBusy is returned when a trigger arrives while a gateway call for
	// the same operation class is still in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrStale is returned when a gateway call completed after the session
	// it belonged to was reset; its result has been discarded.
	ErrStale = errors.New("session was reset, result discarded")
)

// Uploader is the upload gateway as seen by the session.
type Uploader interface {
	Upload(ctx context.Context, files []domain.StagedFile) (domain.UploadResult, error)
}

// Generator is the question generation gateway as seen by the session.
type Generator interface {
	Generate(ctx context.Context, storeID string, exclude []string) ([]domain.Question, error)
}

// Session is the quiz playback state machine. It owns the ordered question
// list, current position, per-question answer state, running score and the
// session phase, and mediates every transition. One session per process;
// methods are safe to call from the goroutine driving the UI while a
// gateway call started by another method is still in flight.
type Session struct {
	mu        sync.Mutex
	uploader  Uploader
	generator Generator
	rng       *rand.Rand

	phase     Phase
	staged    []domain.StagedFile
	storeID   string
	questions []domain.Question
	index     int
	viewOrder []int
	selected  int
	answered  bool
	score     int
	lastError string

	// epoch distinguishes session instances so a stale in-flight gateway
	// result is discarded instead of mutating the new session.
	epoch uint64
	busy  bool
}

func NewSession(uploader Uploader, generator Generator) *Session {
	return &Session{
		uploader:  uploader,
		generator: generator,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		phase:     PhaseCollectingFiles,
		selected:  -1,
	}
}

// View is the renderable snapshot of the active question. Options appear in
// the per-view shuffled display order.
type View struct {
	Index    int
	Total    int
	Question string
	Options  []string
	Answered bool
	Selected int
	Correct  bool
	Answer   int
}

// StageFiles adds documents to the staging area. Only valid while
// collecting files.
func (s *Session) StageFiles(files ...domain.StagedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseCollectingFiles {
		return fmt.Errorf("cannot stage files while %s", s.phase)
	}
	s.staged = append(s.staged, files...)
	return nil
}

// RemoveFile drops one staged document by name.
func (s *Session) RemoveFile(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.staged[:0]
	for _, f := range s.staged {
		if f.Name != name {
			kept = append(kept, f)
		}
	}
	s.staged = kept
}

// Start uploads the staged batch and generates the first question set. A
// second Start while one is in flight returns ErrBusy; a Reset during the
// call discards the result.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseCollectingFiles {
		s.mu.Unlock()
		return fmt.Errorf("cannot start quiz while %s", s.phase)
	}
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if len(s.staged) == 0 {
		s.lastError = "no files staged"
		s.mu.Unlock()
		return errors.New("no files staged")
	}

	files := append([]domain.StagedFile(nil), s.staged...)
	epoch := s.epoch
	s.busy = true
	s.phase = PhaseUploading
	s.lastError = ""
	s.mu.Unlock()

	result, err := s.uploader.Upload(ctx, files)
	if err != nil {
		return s.fail(epoch, PhaseCollectingFiles, err)
	}
	if result.Pending {
		return s.fail(epoch, PhaseCollectingFiles, errors.New("documents are still being indexed, try again shortly"))
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return ErrStale
	}
	s.storeID = result.StoreID
	s.staged = nil
	s.phase = PhaseGenerating
	s.mu.Unlock()

	questions, err := s.generator.Generate(ctx, result.StoreID, nil)
	if err != nil {
		return s.fail(epoch, PhaseCollectingFiles, err)
	}

	return s.applyQuestions(epoch, questions, false, true)
}

// SelectOption records the answer at the given display position. Re-selecting
// on an already answered question is a no-op: only the first selection is
// ever scored.
func (s *Session) SelectOption(display int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseAnswering {
		return fmt.Errorf("cannot answer while %s", s.phase)
	}
	if s.answered {
		return nil
	}
	if display < 0 || display >= len(s.viewOrder) {
		return fmt.Errorf("option %d out of range", display)
	}

	s.selected = s.viewOrder[display]
	s.answered = true
	if s.questions[s.index].Options[s.selected].Correct {
		s.score++
	}
	return nil
}

// Advance moves to the next question, or to Finished from the last one.
// Only valid once the current question has been answered.
func (s *Session) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseAnswering {
		return fmt.Errorf("cannot advance while %s", s.phase)
	}
	if !s.answered {
		return errors.New("current question is not answered yet")
	}

	if s.index == len(s.questions)-1 {
		s.phase = PhaseFinished
		s.viewOrder = nil
		return nil
	}

	s.index++
	s.enterQuestionLocked()
	return nil
}

// MoreQuestions extends the finished session with a fresh set, excluding
// every question text seen so far, and re-enters answering at the first new
// question.
func (s *Session) MoreQuestions(ctx context.Context) error {
	return s.generateFromFinished(ctx, true)
}

// Restart replays the same documents from scratch: a new question set with
// no exclusion list replaces the old one and the score resets.
func (s *Session) Restart(ctx context.Context) error {
	return s.generateFromFinished(ctx, false)
}

func (s *Session) generateFromFinished(ctx context.Context, extend bool) error {
	s.mu.Lock()
	if s.phase != PhaseFinished {
		s.mu.Unlock()
		return fmt.Errorf("cannot request questions while %s", s.phase)
	}
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}

	var exclude []string
	if extend {
		exclude = make([]string, 0, len(s.questions))
		for _, q := range s.questions {
			exclude = append(exclude, q.Text)
		}
	}

	storeID := s.storeID
	epoch := s.epoch
	s.busy = true
	s.phase = PhaseGenerating
	s.lastError = ""
	s.mu.Unlock()

	questions, err := s.generator.Generate(ctx, storeID, exclude)
	if err != nil {
		return s.fail(epoch, PhaseFinished, err)
	}

	return s.applyQuestions(epoch, questions, extend, false)
}

// Reset returns to file selection from any state: questions, position,
// selection, score, error and store handle are all cleared, staged documents
// discarded, and any in-flight gateway result becomes stale.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.busy = false
	s.phase = PhaseCollectingFiles
	s.staged = nil
	s.storeID = ""
	s.questions = nil
	s.index = 0
	s.viewOrder = nil
	s.selected = -1
	s.answered = false
	s.score = 0
	s.lastError = ""
}

// fail records err and falls back to the given phase, unless the session
// was reset in the meantime.
func (s *Session) fail(epoch uint64, fallback Phase, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return ErrStale
	}
	s.busy = false
	s.phase = fallback
	s.lastError = err.Error()
	return err
}

func (s *Session) applyQuestions(epoch uint64, questions []domain.Question, extend, fresh bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return ErrStale
	}
	s.busy = false

	if len(questions) == 0 {
		err := errors.New("no questions could be generated from these documents")
		s.lastError = err.Error()
		if fresh {
			// Fresh request: nothing to answer, go back to file selection.
			s.phase = PhaseCollectingFiles
		} else {
			s.phase = PhaseFinished
		}
		return err
	}

	if extend {
		s.index = len(s.questions)
		s.questions = append(s.questions, questions...)
	} else {
		s.questions = questions
		s.index = 0
		s.score = 0
	}

	s.phase = PhaseAnswering
	s.lastError = ""
	s.enterQuestionLocked()
	return nil
}

// enterQuestionLocked resets per-question state and derives a fresh option
// permutation for the newly displayed question. The permutation stays
// stable until the index changes again.
func (s *Session) enterQuestionLocked() {
	s.selected = -1
	s.answered = false
	s.viewOrder = s.rng.Perm(len(s.questions[s.index].Options))
}

// CurrentView returns the active question in display order. Selected and
// Answer are display positions, -1 when not applicable.
func (s *Session) CurrentView() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseAnswering {
		return View{}, fmt.Errorf("no active question while %s", s.phase)
	}

	q := s.questions[s.index]
	view := View{
		Index:    s.index,
		Total:    len(s.questions),
		Question: q.Text,
		Options:  make([]string, len(s.viewOrder)),
		Answered: s.answered,
		Selected: -1,
		Answer:   -1,
	}

	for display, underlying := range s.viewOrder {
		view.Options[display] = q.Options[underlying].Text
		if s.answered && underlying == s.selected {
			view.Selected = display
			view.Correct = q.Options[underlying].Correct
		}
		if s.answered && q.Options[underlying].Correct {
			view.Answer = display
		}
	}

	return view, nil
}

// Phase returns the current session phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Score returns the running correct-answer count and the total number of
// questions in the session.
func (s *Session) Score() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score, len(s.questions)
}

// Questions returns a copy of the accumulated question list in generation
// order.
func (s *Session) Questions() []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Question(nil), s.questions...)
}

// StagedFiles returns a copy of the staged document list.
func (s *Session) StagedFiles() []domain.StagedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StagedFile(nil), s.staged...)
}

// LastError returns the most recent surfaced error message, empty when the
// last transition succeeded.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// StoreID returns the provider store handle for the current session, empty
// before a successful upload.
func (s *Session) StoreID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeID
}
