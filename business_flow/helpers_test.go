package businessflow

import (
	"context"
	"errors"
	"sync"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var errTransferDown = errors.New("transfer backend unavailable")

type transfer struct {
	to     string
	amount uint64
	ref    FundsReference
}

type fakeTransferer struct {
	mu        sync.Mutex
	fail      error
	transfers []transfer
}

func (f *fakeTransferer) Transfer(_ context.Context, to string, amount uint64, ref FundsReference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.transfers = append(f.transfers, transfer{to: to, amount: amount, ref: ref})
	return nil
}

func (f *fakeTransferer) received(identity string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total uint64
	for _, t := range f.transfers {
		if t.to == identity {
			total += t.amount
		}
	}
	return total
}

type fakeCollector struct {
	mu       sync.Mutex
	fail     error
	collects []transfer
}

func (f *fakeCollector) Collect(_ context.Context, from string, amount uint64, ref FundsReference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.collects = append(f.collects, transfer{to: from, amount: amount, ref: ref})
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(_ context.Context, evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recordingSink) types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventType, 0, len(s.events))
	for _, evt := range s.events {
		out = append(out, evt.Type)
	}
	return out
}

func (s *recordingSink) last() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

type failingCommitter struct {
	err error
}

func (c failingCommitter) Commit(context.Context, Mutation, func(context.Context) error) error {
	return c.err
}

type fixedSource struct {
	idx int
}

func (s fixedSource) IntN(n int) int {
	return s.idx % n
}

func testParams() CampaignParams {
	return CampaignParams{
		Name:                "Spring launch",
		Description:         "Like the launch post",
		ImageRef:            "ipfs://launch.png",
		LikeGoal:            3,
		ApplicationDuration: 100 * time.Second,
		ActivityDuration:    200 * time.Second,
	}
}
