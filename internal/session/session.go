// Package session owns a loaded dataset and answers questions about it,
// either by direct completion or by executing model-generated code.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/KaramelBytes/tabletalk-cli/internal/ai"
	"github.com/KaramelBytes/tabletalk-cli/internal/dataset"
	"github.com/KaramelBytes/tabletalk-cli/internal/extract"
	"github.com/KaramelBytes/tabletalk-cli/internal/prompt"
	"github.com/KaramelBytes/tabletalk-cli/internal/retrieval"
	"github.com/KaramelBytes/tabletalk-cli/internal/sandbox"
	"github.com/KaramelBytes/tabletalk-cli/internal/schema"
)

// Fixed replies.
const (
	ErrorReply         = "Sorry, there was an error."
	EmptyQuestionReply = "Please enter a question about your data."
	NoDataReply        = "Please load a CSV file before asking questions."
	CancelledReply     = "Sorry, the request was cancelled."
)

// Mode selects how questions are answered.
type Mode string

const (
	ModeCode   Mode = "code"
	ModeDirect Mode = "direct"
)

// ParseMode accepts "code" or "direct", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCode:
		return ModeCode, nil
	case ModeDirect:
		return ModeDirect, nil
	}
	return "", fmt.Errorf("unknown mode %q (want code or direct)", s)
}

// State is a pipeline stage reported through Options.OnState.
type State string

const (
	StateIdle          State = "idle"
	StateSchemaReady   State = "schema_ready"
	StatePromptBuilt   State = "prompt_built"
	StateAwaitingModel State = "awaiting_model"
	StateCodeExtracted State = "code_extracted"
	StateExecuted      State = "executed"
)

// Logger receives debug traces. Nil disables tracing.
type Logger func(format string, args ...any)

type Options struct {
	Mode             Mode
	SchemaSampleSize int
	Logger           Logger
	Executor         sandbox.Executor
	Builder          prompt.Builder
	OnState          func(State)
}

// LoadResult reports the outcome of Load.
type LoadResult struct {
	RowCount   int
	ChunkCount int
}

// Answer is the full outcome of one question.
type Answer struct {
	Text   string
	Mode   Mode
	Code   string
	Rule   extract.Rule
	Ranked []string
	Err    error
}

type snapshot struct {
	ds     *dataset.Dataset
	schema schema.Schema
	chunks []retrieval.Chunk
}

// Session is safe for concurrent use; questions are answered one at a time.
type Session struct {
	id        string
	completer Completer
	opts      Options

	snap atomic.Pointer[snapshot]
	sem  chan struct{}

	mu      sync.Mutex
	mode    Mode
	history []ai.Message
}

// New creates a session. An empty Options.Mode means ModeCode.
func New(c Completer, opts Options) *Session {
	if opts.Mode == "" {
		opts.Mode = ModeCode
	}
	if opts.SchemaSampleSize <= 0 {
		opts.SchemaSampleSize = schema.DefaultSampleSize
	}
	return &Session{
		id:        uuid.NewString(),
		completer: c,
		opts:      opts,
		sem:       make(chan struct{}, 1),
		mode:      opts.Mode,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) logf(format string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger(format, args...)
	}
}

func (s *Session) setState(st State) {
	s.logf("state → %s", st)
	if s.opts.OnState != nil {
		s.opts.OnState(st)
	}
}

// Load replaces the dataset and recomputes schema and chunks. History is kept.
// In-flight questions keep using the dataset they started with.
func (s *Session) Load(ds *dataset.Dataset) LoadResult {
	if ds == nil {
		ds = &dataset.Dataset{}
	}
	sn := &snapshot{
		ds:     ds,
		schema: schema.Infer(ds, s.opts.SchemaSampleSize),
		chunks: retrieval.ChunkDataset(ds),
	}
	s.snap.Store(sn)
	p := retrieval.Plan(ds)
	s.logf("loaded %d rows, %d columns; %d chunks of ≤%d rows (≈%.1f tokens/row)",
		ds.Len(), len(ds.Columns), len(sn.chunks), p.ChunkSize, p.AvgTokensPerRow)
	return LoadResult{RowCount: ds.Len(), ChunkCount: len(sn.chunks)}
}

// Dataset returns the current dataset, or nil.
func (s *Session) Dataset() *dataset.Dataset {
	if sn := s.snap.Load(); sn != nil {
		return sn.ds
	}
	return nil
}

// Schema returns the schema of the current dataset.
func (s *Session) Schema() schema.Schema {
	if sn := s.snap.Load(); sn != nil {
		return sn.schema
	}
	return schema.Schema{}
}

// Chunks returns the chunks of the current dataset.
func (s *Session) Chunks() []retrieval.Chunk {
	if sn := s.snap.Load(); sn != nil {
		return sn.chunks
	}
	return nil
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
	s.logf("mode set to %s", m)
}

// History returns a copy of the direct-mode conversation.
func (s *Session) History() []ai.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ai.Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) ResetHistory() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

// Preview returns the messages Ask would send for question in the current
// mode, without contacting the provider. It returns nil when no dataset is
// loaded or the question is blank.
func (s *Session) Preview(question string) []ai.Message {
	sn := s.snap.Load()
	if sn == nil || strings.TrimSpace(question) == "" {
		return nil
	}
	if s.Mode() == ModeDirect {
		system := s.opts.Builder.BuildDirect(sn.ds, retrieval.Rank(question, sn.chunks))
		return prompt.DirectMessages(system, s.History(), question)
	}
	return prompt.CodeMessages(s.opts.Builder.BuildCode(sn.schema, sn.ds, question))
}

// Ask answers a question and never fails; problems become reply text.
func (s *Session) Ask(ctx context.Context, question string) string {
	return s.AskDetailed(ctx, question).Text
}

// AskDetailed is Ask with the intermediate artifacts exposed.
func (s *Session) AskDetailed(ctx context.Context, question string) Answer {
	mode := s.Mode()
	if strings.TrimSpace(question) == "" {
		return Answer{Text: EmptyQuestionReply, Mode: mode}
	}
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return Answer{Text: CancelledReply, Mode: mode, Err: ctx.Err()}
	}
	defer func() { <-s.sem }()

	sn := s.snap.Load()
	if sn == nil {
		return Answer{Text: NoDataReply, Mode: mode}
	}
	if mode == ModeDirect {
		return s.askDirect(ctx, sn, question)
	}
	return s.askCode(ctx, sn, question)
}

func (s *Session) askCode(ctx context.Context, sn *snapshot, question string) Answer {
	ans := Answer{Mode: ModeCode}
	s.setState(StateSchemaReady)
	s.logf("schema: %s", sn.schema.String())

	system := s.opts.Builder.BuildCode(sn.schema, sn.ds, question)
	s.setState(StatePromptBuilt)

	s.setState(StateAwaitingModel)
	raw, err := s.completer.Complete(ctx, prompt.CodeMessages(system))
	if err != nil {
		s.logf("provider error: %v", err)
		s.setState(StateIdle)
		ans.Text, ans.Err = ErrorReply, err
		return ans
	}

	res := extract.Analyze(raw)
	ans.Code, ans.Rule = res.Code, res.Rule
	s.setState(StateCodeExtracted)
	s.logf("extracted code via %s rule (%d bytes)", res.Rule, len(res.Code))

	ans.Text = s.opts.Executor.Run(ctx, res.Code, sn.ds)
	s.setState(StateExecuted)
	s.setState(StateIdle)
	return ans
}

func (s *Session) askDirect(ctx context.Context, sn *snapshot, question string) Answer {
	ans := Answer{Mode: ModeDirect}
	ranked := retrieval.Rank(question, sn.chunks)
	for _, r := range ranked {
		ans.Ranked = append(ans.Ranked, r.ID)
	}
	s.logf("ranked chunks: %v", ans.Ranked)
	system := s.opts.Builder.BuildDirect(sn.ds, ranked)
	msgs := prompt.DirectMessages(system, s.History(), question)

	s.setState(StateAwaitingModel)
	reply, err := s.completer.Complete(ctx, msgs)
	s.setState(StateIdle)
	if err != nil {
		s.logf("provider error: %v", err)
		ans.Text, ans.Err = ErrorReply, err
		return ans
	}
	s.mu.Lock()
	s.history = append(s.history,
		ai.Message{Role: ai.RoleUser, Content: question},
		ai.Message{Role: ai.RoleAssistant, Content: reply})
	s.mu.Unlock()
	ans.Text = reply
	return ans
}
