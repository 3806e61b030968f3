package referral

import (
	"context"
	"sync"
	"time"

	"github.com/referral-intake/platform/pkg/audit"
	"github.com/referral-intake/platform/pkg/blob"
	"github.com/referral-intake/platform/pkg/common/models"
	"github.com/referral-intake/platform/pkg/ledger"
	"github.com/referral-intake/platform/pkg/payload"
)

type fakeAnalyzer struct {
	result *models.AnalyzeResult
	err    error
	calls  int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, document []byte) (*models.AnalyzeResult, error) {
	f.calls++
	return f.result, f.err
}

type move struct {
	name     string
	from, to models.Container
	metadata map[string]string
}

type fakeBlobs struct {
	content map[string][]byte
	moveErr error
	moves   []move
}

func (f *fakeBlobs) Read(ctx context.Context, c models.Container, name string) ([]byte, string, error) {
	data, ok := f.content[name]
	if !ok || c != models.ContainerIncoming {
		return nil, "", blob.ErrNotFound
	}
	return data, "application/pdf", nil
}

func (f *fakeBlobs) Move(ctx context.Context, name string, from, to models.Container, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.moveErr != nil {
		return f.moveErr
	}
	delete(f.content, name)
	f.moves = append(f.moves, move{name: name, from: from, to: to, metadata: metadata})
	return nil
}

type fakeSubmitter struct {
	status   int
	calls    int
	last     *payload.Value
	onSubmit func()
}

func (f *fakeSubmitter) Submit(ctx context.Context, p *payload.Value) int {
	f.calls++
	f.last = p
	if f.onSubmit != nil {
		f.onSubmit()
	}
	return f.status
}

type fakeValidator struct {
	err error
}

func (f fakeValidator) Validate(p *payload.Value) error {
	return f.err
}

type fakeRecorder struct {
	err     error
	entries []audit.Entry
}

func (f *fakeRecorder) Write(ctx context.Context, e audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]*ledger.Entry
	stages  []ledger.Stage
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[string]*ledger.Entry{}}
}

func (f *fakeLedger) Begin(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[name]; ok && e.Stage.Decided() {
		return ledger.ErrDecided
	}
	f.entries[name] = &ledger.Entry{Name: name, Stage: ledger.StageStarted}
	f.stages = append(f.stages, ledger.StageStarted)
	return nil
}

func (f *fakeLedger) Mark(ctx context.Context, name string, stage ledger.Stage, container models.Container, status string, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[name]
	if !ok {
		e = &ledger.Entry{Name: name}
		f.entries[name] = e
	}
	e.Stage = stage
	if container != "" {
		e.Container = container
	}
	if status != "" {
		e.Status = status
	}
	if metadata != nil {
		e.Metadata = metadata
	}
	f.stages = append(f.stages, stage)
	return nil
}

func (f *fakeLedger) Get(ctx context.Context, name string) (*ledger.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[name]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeLedger) Pending(ctx context.Context, olderThan time.Duration) ([]ledger.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ledger.Entry
	for _, e := range f.entries {
		if !e.Settled() {
			out = append(out, *e)
		}
	}
	return out, nil
}

type published struct {
	eventType string
	key       string
	data      map[string]interface{}
}

type fakePublisher struct {
	events []published
}

func (f *fakePublisher) PublishEvent(ctx context.Context, eventType, source, key string, data map[string]interface{}) error {
	f.events = append(f.events, published{eventType: eventType, key: key, data: data})
	return nil
}
