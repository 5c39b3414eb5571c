package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/akamai-compat-edge/internal/cache/dimensions"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/core/config"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/invalidation"
)

type fakeTarget struct {
	failFirst atomic.Bool
	mu        sync.Mutex
	seen      []string
}

func (f *fakeTarget) Invalidate(_ context.Context, paths ...string) (int, error) {
	f.mu.Lock()
	f.seen = append(f.seen, paths...)
	f.mu.Unlock()
	if f.failFirst.Load() {
		f.failFirst.Store(false)
		return 0, errors.New("boom")
	}
	return len(paths), nil
}

type sess struct {
	ctx    context.Context
	claims map[string][]int32
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return s.claims }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "image-invalidation" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func eventBytes(paths ...string) []byte {
	ev := invalidation.Event{Version: 1, Op: invalidation.OpUpdate, Paths: paths, TS: time.Now().UTC()}
	b, _ := json.Marshal(ev)
	return b
}

func newConsumerForTest(target Invalidator) *Consumer {
	cfg := Config{Brokers: []string{"x"}, Topic: "image-invalidation", GroupID: "g"}
	return New(cfg, nil, target)
}

func TestSinglePartition_OrderAndCommitAfterWork(t *testing.T) {
	ft := &fakeTarget{}
	c := newConsumerForTest(ft)

	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- &sarama.ConsumerMessage{Topic: "image-invalidation", Offset: 10, Value: eventBytes("/a.jpg")}
	ch <- &sarama.ConsumerMessage{Topic: "image-invalidation", Offset: 11, Value: eventBytes("/b.jpg", "/c.jpg")}
	close(ch)

	if err := c.handler.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
	want := []string{"/a.jpg", "/b.jpg", "/c.jpg"}
	if len(ft.seen) != len(want) {
		t.Fatalf("seen=%v want %v", ft.seen, want)
	}
	for i := range want {
		if ft.seen[i] != want[i] {
			t.Fatalf("seen=%v want %v", ft.seen, want)
		}
	}
}

func TestRetry_CommitOnceAfterSuccess(t *testing.T) {
	ft := &fakeTarget{}
	ft.failFirst.Store(true)
	c := newConsumerForTest(ft)
	ctx := context.Background()

	msg := &sarama.ConsumerMessage{Topic: "image-invalidation", Offset: 5, Value: eventBytes("/a.jpg")}
	if err := c.ProcessOne(ctx, msg); err == nil {
		t.Fatalf("expected error on first attempt")
	}

	s := &sess{ctx: ctx}
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- msg
	close(ch)
	if err := c.handler.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim second attempt: %v", err)
	}
	if len(s.marked) != 1 || s.marked[0] != 5 {
		t.Fatalf("offset was not marked after success; marked=%v", s.marked)
	}
}

func TestFailedPurge_StopsClaimWithoutMarking(t *testing.T) {
	ft := &fakeTarget{}
	ft.failFirst.Store(true)
	c := newConsumerForTest(ft)

	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- &sarama.ConsumerMessage{Offset: 1, Value: eventBytes("/a.jpg")}
	ch <- &sarama.ConsumerMessage{Offset: 2, Value: eventBytes("/b.jpg")}
	close(ch)

	if err := c.handler.ConsumeClaim(s, &claim{msgs: ch}); err == nil {
		t.Fatalf("expected error")
	}
	if len(s.marked) != 0 {
		t.Fatalf("nothing should be marked; marked=%v", s.marked)
	}
}

func TestPoisonMessages_SkippedAndMarked(t *testing.T) {
	ft := &fakeTarget{}
	c := newConsumerForTest(ft)

	bad, _ := json.Marshal(invalidation.Event{Version: 1, Op: "insert", Paths: []string{"/a.jpg"}, TS: time.Now()})
	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 3)
	ch <- &sarama.ConsumerMessage{Offset: 1, Value: []byte("{not json")}
	ch <- &sarama.ConsumerMessage{Offset: 2, Value: bad}
	ch <- &sarama.ConsumerMessage{Offset: 3, Value: eventBytes("/ok.jpg")}
	close(ch)

	if err := c.handler.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 3 {
		t.Fatalf("marked=%v want 3 offsets", s.marked)
	}
	if len(ft.seen) != 1 || ft.seen[0] != "/ok.jpg" {
		t.Fatalf("seen=%v", ft.seen)
	}
}

func TestMultiPartition_Parallel_NoCrossOrdering(t *testing.T) {
	c := newConsumerForTest(&fakeTarget{})
	s := &sess{ctx: t.Context()}

	p0 := make(chan *sarama.ConsumerMessage, 2)
	p1 := make(chan *sarama.ConsumerMessage, 2)
	p0 <- &sarama.ConsumerMessage{Partition: 0, Offset: 1, Value: eventBytes("/a.jpg")}
	p0 <- &sarama.ConsumerMessage{Partition: 0, Offset: 2, Value: eventBytes("/a.jpg")}
	p1 <- &sarama.ConsumerMessage{Partition: 1, Offset: 1, Value: eventBytes("/b.jpg")}
	p1 <- &sarama.ConsumerMessage{Partition: 1, Offset: 2, Value: eventBytes("/b.jpg")}
	close(p0)
	close(p1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = c.handler.ConsumeClaim(s, &claim{part: 0, msgs: p0}) }()
	go func() { defer wg.Done(); _ = c.handler.ConsumeClaim(s, &claim{part: 1, msgs: p1}) }()
	wg.Wait()

	if len(s.marked) != 4 {
		t.Fatalf("expected 4 marks total; got %v", s.marked)
	}
}

func TestReadiness_FollowsSession(t *testing.T) {
	c := newConsumerForTest(&fakeTarget{})
	if ready, _ := c.Readiness(); ready {
		t.Fatalf("should not be ready before a session")
	}

	s := &sess{ctx: t.Context(), claims: map[string][]int32{"image-invalidation": {2, 0}, "other": {7}}}
	if err := c.handler.Setup(s); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	ready, parts := c.Readiness()
	if !ready || len(parts) != 2 || parts[0] != 0 || parts[1] != 2 {
		t.Fatalf("ready=%v parts=%v", ready, parts)
	}

	if err := c.handler.Cleanup(s); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if ready, _ := c.Readiness(); ready {
		t.Fatalf("should not be ready after cleanup")
	}
}

func TestProcessOne_PurgesDimensionCache(t *testing.T) {
	dims := dimensions.NewTiered(dimensions.New(), nil, 0, nil)
	ctx := context.Background()
	dims.Store(ctx, "/img/a.jpg", dimensions.Record{Width: 10, Height: 10})
	dims.Store(ctx, "/img/b.jpg", dimensions.Record{Width: 10, Height: 10})

	c := newConsumerForTest(dims)
	msg := &sarama.ConsumerMessage{Value: eventBytes("https://cdn.example.com/img/a.jpg?v=3")}
	if err := c.ProcessOne(ctx, msg); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if _, ok := dims.Lookup(ctx, "/img/a.jpg"); ok {
		t.Fatalf("expected /img/a.jpg purged")
	}
	if _, ok := dims.Lookup(ctx, "/img/b.jpg"); !ok {
		t.Fatalf("unrelated entry purged")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.InvalidationCfg{Brokers: " a:9092, ,b:9092 ", Topic: "t", GroupID: "g"})
	if len(cfg.Brokers) != 2 || cfg.Brokers[0] != "a:9092" || cfg.Brokers[1] != "b:9092" {
		t.Fatalf("brokers=%v", cfg.Brokers)
	}
	if cfg.Topic != "t" || cfg.GroupID != "g" || cfg.SessionTimeout == 0 {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestStart_RequiresTarget(t *testing.T) {
	c := New(Config{Brokers: []string{"x"}, Topic: "t", GroupID: "g"}, nil, nil)
	if err := c.Start(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
