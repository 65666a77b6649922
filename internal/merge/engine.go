package merge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Batch sizing constants. The token budget is a coarse per-call estimate, not
// a tokenizer measurement; it yields batches of hundreds of submissions so
// splitting only happens for very large crowds.
const (
	targetBatchTokens   = 16000
	tokensPerSubmission = 50
	minBatchSize        = 3
)

// ErrNoSubmissions indicates a merge was requested with an empty ledger.
var ErrNoSubmissions = errors.New("no submissions to merge")

// Invoker executes one language-model call.
type Invoker interface {
	Invoke(ctx context.Context, input InvokeInput) (InvokeResult, error)
}

// InvokeInput is one language-model request.
type InvokeInput struct {
	Model           string
	System          string
	Prompt          string
	MaxOutputTokens int
}

// InvokeResult is the text produced by one language-model call.
type InvokeResult struct {
	OutputText string
}

// Submission is one candidate action entering the merge.
type Submission struct {
	User      string
	Text      string
	Votes     int
	CreatedAt time.Time
}

// Section is one block of story context from the game service.
type Section struct {
	Kind string
	Text string
}

// Section kinds excluded from prompt context. Instruction blocks steer the
// game's own model and would contaminate the merge prompt.
const (
	SectionKindInstructions = "instructions"
	SectionKindAuthorsNote  = "authors-note"
)

// Request carries everything one merge needs.
type Request struct {
	Submissions     []Submission
	Story           []Section
	LastKnownAction string
	PartyName       string
	CompanionName   string
	Model           string
	MaxOutputTokens int
}

// Trace records the final language-model exchange of a merge for debugging.
type Trace struct {
	SystemPrompt string    `json:"systemPrompt"`
	UserPrompt   string    `json:"userPrompt"`
	Response     string    `json:"response"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Result is the single action a merge produced. Trace is nil when no
// language-model call was made.
type Result struct {
	ActionText string
	Trace      *Trace
}

// Engine reduces a cycle's submissions to one action. With no invoker
// configured it tallies votes; with one it blends submissions through
// recursive batched language-model calls.
type Engine struct {
	invoker Invoker
	clock   func() time.Time
}

// NewEngine creates an engine. A nil invoker selects tally mode.
func NewEngine(invoker Invoker, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{invoker: invoker, clock: clock}
}

// Blending reports whether the engine synthesizes via a language model.
func (e *Engine) Blending() bool {
	return e.invoker != nil
}

// Merge produces one action from the request's submissions.
func (e *Engine) Merge(ctx context.Context, req Request) (Result, error) {
	if len(req.Submissions) == 0 {
		return Result{}, ErrNoSubmissions
	}
	if e.invoker == nil {
		winner := TallyWinner(req.Submissions)
		return Result{ActionText: winner.Text}, nil
	}
	return e.blend(ctx, req)
}

// TallyWinner picks the submission with the most votes, breaking ties by
// recency: of equally voted submissions the most recently created wins.
func TallyWinner(submissions []Submission) Submission {
	ranked := make([]Submission, len(submissions))
	copy(ranked, submissions)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Votes != ranked[j].Votes {
			return ranked[i].Votes > ranked[j].Votes
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})
	return ranked[0]
}

// batchSize returns how many submissions fit one language-model call under
// the token budget, never below minBatchSize.
func batchSize() int {
	size := targetBatchTokens / tokensPerSubmission
	if size < minBatchSize {
		return minBatchSize
	}
	return size
}

// blend recursively reduces submissions to one action.
//
// A single submission returns verbatim with no call and no trace. A list
// within the batch budget is merged with one call. Anything larger is split
// into contiguous batches merged concurrently; each batch result becomes a
// synthetic intermediate submission and the engine recurses on those. The
// most recent known action rides along only on the leaf-level round, so
// intermediate rounds see pure submission material. Batch count is strictly
// below submission count whenever splitting occurs, so the recursion
// terminates.
func (e *Engine) blend(ctx context.Context, req Request) (Result, error) {
	submissions := req.Submissions
	if len(submissions) == 1 {
		return Result{ActionText: submissions[0].Text}, nil
	}

	size := batchSize()
	if len(submissions) <= size {
		return e.mergeBatch(ctx, req)
	}

	batches := splitBatches(submissions, size)
	intermediate := make([]Submission, len(batches))

	group, groupCtx := errgroup.WithContext(ctx)
	for i := range batches {
		group.Go(func() error {
			batchReq := req
			batchReq.Submissions = batches[i]
			result, err := e.mergeBatch(groupCtx, batchReq)
			if err != nil {
				return fmt.Errorf("merge batch %d: %w", i+1, err)
			}
			intermediate[i] = Submission{
				User:      fmt.Sprintf("Batch%d", i+1),
				Text:      result.ActionText,
				Votes:     1,
				CreatedAt: e.clock().UTC(),
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Result{}, err
	}

	next := req
	next.Submissions = intermediate
	next.LastKnownAction = ""
	return e.blend(ctx, next)
}

// mergeBatch performs one language-model call over a batch of submissions.
func (e *Engine) mergeBatch(ctx context.Context, req Request) (Result, error) {
	systemPrompt := buildSystemPrompt(req.PartyName, req.CompanionName)
	userPrompt := buildUserPrompt(req)

	result, err := e.invoker.Invoke(ctx, InvokeInput{
		Model:           req.Model,
		System:          systemPrompt,
		Prompt:          userPrompt,
		MaxOutputTokens: req.MaxOutputTokens,
	})
	if err != nil {
		return Result{}, fmt.Errorf("invoke model: %w", err)
	}

	return Result{
		ActionText: result.OutputText,
		Trace: &Trace{
			SystemPrompt: systemPrompt,
			UserPrompt:   userPrompt,
			Response:     result.OutputText,
			Model:        req.Model,
			CreatedAt:    e.clock().UTC(),
		},
	}, nil
}

// splitBatches partitions submissions into contiguous slices of at most size.
func splitBatches(submissions []Submission, size int) [][]Submission {
	var batches [][]Submission
	for start := 0; start < len(submissions); start += size {
		end := start + size
		if end > len(submissions) {
			end = len(submissions)
		}
		batches = append(batches, submissions[start:end])
	}
	return batches
}
