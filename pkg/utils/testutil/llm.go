// Package testutil provides hand-written fakes shared by package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/m-mizutani/gollem"
)

// MockLLMSession is a gollem.Session whose Generate is scripted by a function
type MockLLMSession struct {
	GenerateFn func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error)
}

var _ gollem.Session = &MockLLMSession{}

func (s *MockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	if s.GenerateFn != nil {
		return s.GenerateFn(ctx, input, opts...)
	}
	return &gollem.Response{Texts: []string{"{}"}}, nil
}

func (s *MockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *MockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return s.Generate(ctx, input)
}

func (s *MockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return s.Stream(ctx, input)
}

func (s *MockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *MockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *MockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// MockLLMClient is a gollem.LLMClient with scripted sessions and embeddings
type MockLLMClient struct {
	NewSessionFn        func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
	GenerateEmbeddingFn func(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

func (c *MockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.NewSessionFn != nil {
		return c.NewSessionFn(ctx, options...)
	}
	return &MockLLMSession{}, nil
}

func (c *MockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	if c.GenerateEmbeddingFn != nil {
		return c.GenerateEmbeddingFn(ctx, dimension, input)
	}
	return nil, nil
}

// Reply is one scripted model turn: either text or an error
type Reply struct {
	Text string
	Err  error
}

// ScriptedLLM replays replies in order, one per Generate call, and records the prompts it saw.
// After the script runs out the last reply is repeated.
type ScriptedLLM struct {
	mu      sync.Mutex
	replies []Reply
	prompts []string
	calls   int
}

// NewScriptedLLM creates a scripted client
func NewScriptedLLM(replies ...Reply) *ScriptedLLM {
	return &ScriptedLLM{replies: replies}
}

// Client returns a gollem.LLMClient backed by the script
func (s *ScriptedLLM) Client() *MockLLMClient {
	return &MockLLMClient{
		NewSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &MockLLMSession{GenerateFn: s.generate}, nil
		},
	}
}

func (s *ScriptedLLM) generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range input {
		if text, ok := in.(gollem.Text); ok {
			s.prompts = append(s.prompts, string(text))
		}
	}

	if len(s.replies) == 0 {
		s.calls++
		return &gollem.Response{Texts: []string{"{}"}}, nil
	}
	idx := min(s.calls, len(s.replies)-1)
	s.calls++

	reply := s.replies[idx]
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &gollem.Response{Texts: []string{reply.Text}}, nil
}

// Calls returns how many times Generate was called
func (s *ScriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Prompts returns every text prompt received, in order
func (s *ScriptedLLM) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}
