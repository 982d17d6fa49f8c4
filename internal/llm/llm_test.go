package llm

import (
	"context"
	"testing"
)

// fakeProvider implements Provider for exercising call sites without a
// network round trip: echoes the last user message back as the
// assistant's reply.
type fakeProvider struct {
	resp Response
	err  error
}

func (f *fakeProvider) Chat(ctx context.Context, req Request) (Response, error) {
	if f.err != nil {
		return Response{}, f.err
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return Response{Content: req.Messages[i].Content}, nil
		}
	}
	return f.resp, nil
}

func TestFakeProviderChat_EchoesLastUserMessage(t *testing.T) {
	p := &fakeProvider{}
	resp, err := p.Chat(context.Background(), Request{Messages: []Message{
		{Role: "system", Content: "you are helpful"},
		{Role: "user", Content: "hello"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello" {
		t.Fatalf("expected echo content 'hello', got %q", resp.Content)
	}
}

func TestFakeProviderChat_PropagatesError(t *testing.T) {
	p := &fakeProvider{err: context.DeadlineExceeded}
	_, err := p.Chat(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
}
