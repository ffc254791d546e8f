package testutil

import (
	"context"
	"sync"
)

// PublishedEvent is one call recorded by Publisher.
type PublishedEvent struct {
	Source     string
	DetailType string
	Detail     []byte
}

// Publisher records events instead of sending them. Err, when set, fails every publish.
type Publisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
	Err    error
}

func (p *Publisher) PublishEvent(ctx context.Context, source, detailType string, detail []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, PublishedEvent{Source: source, DetailType: detailType, Detail: detail})
	return nil
}

func (p *Publisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Events)
}
