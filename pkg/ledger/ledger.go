package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/referral-intake/platform/pkg/common/models"
)

var (
	ErrNotFound = errors.New("ledger entry not found")
	ErrDecided  = errors.New("ledger entry already routed")
)

const keyPrefix = "referral:ledger:"

// Stage is how far a document got through routing.
type Stage string

const (
	StageStarted  Stage = "started"
	StageRouted   Stage = "routed"
	StageRecorded Stage = "recorded"
	StageComplete Stage = "complete"
)

const (
	fieldStage     = "stage"
	fieldContainer = "container"
	fieldMetadata  = "metadata"
	fieldStatus    = "status"
	fieldStarted   = "started_at"
	fieldUpdated   = "updated_at"
)

// Entry is the routing record kept per blob name.
type Entry struct {
	Name      string            `json:"name"`
	Stage     Stage             `json:"stage"`
	Container models.Container  `json:"container,omitempty"`
	Status    string            `json:"status,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Decided reports whether a routing decision has been recorded at this stage.
func (s Stage) Decided() bool {
	switch s {
	case StageRouted, StageRecorded, StageComplete:
		return true
	}
	return false
}

// Settled reports whether nothing is left to do for the entry.
func (e Entry) Settled() bool {
	return e.Stage == StageComplete
}

type Ledger struct {
	rdb redis.UniversalClient
	ttl time.Duration
	now func() time.Time
}

func New(rdb redis.UniversalClient, ttl time.Duration) *Ledger {
	return &Ledger{rdb: rdb, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

func Key(name string) string {
	return keyPrefix + name
}

// Begin opens the entry for a new processing run. An entry that already
// carries a routing decision is left as it is and ErrDecided is returned.
func (l *Ledger) Begin(ctx context.Context, name string) error {
	key := Key(name)
	now := l.now().Format(time.RFC3339Nano)
	err := l.rdb.Watch(ctx, func(tx *redis.Tx) error {
		stage, err := tx.HGet(ctx, key, fieldStage).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if Stage(stage).Decided() {
			return fmt.Errorf("%w: %s", ErrDecided, stage)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			p.HSet(ctx, key, fieldStage, string(StageStarted), fieldStarted, now, fieldUpdated, now)
			if l.ttl > 0 {
				p.Expire(ctx, key, l.ttl)
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("ledger begin %s: %w", name, err)
	}
	return nil
}

// Mark advances the entry. container and metadata are recorded when set.
func (l *Ledger) Mark(ctx context.Context, name string, stage Stage, container models.Container, status string, metadata map[string]string) error {
	values := []interface{}{fieldStage, string(stage), fieldUpdated, l.now().Format(time.RFC3339Nano)}
	if container != "" {
		values = append(values, fieldContainer, string(container))
	}
	if status != "" {
		values = append(values, fieldStatus, status)
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("ledger metadata %s: %w", name, err)
		}
		values = append(values, fieldMetadata, string(raw))
	}

	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		key := Key(name)
		p.HSet(ctx, key, values...)
		if l.ttl > 0 {
			p.Expire(ctx, key, l.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger mark %s %s: %w", name, stage, err)
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, name string) (*Entry, error) {
	fields, err := l.rdb.HGetAll(ctx, Key(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("ledger get %s: %w", name, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decode(name, fields)
}

// Pending lists unsettled entries not touched for at least olderThan.
func (l *Ledger) Pending(ctx context.Context, olderThan time.Duration) ([]Entry, error) {
	cutoff := l.now().Add(-olderThan)
	var out []Entry

	iter := l.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		name := strings.TrimPrefix(key, keyPrefix)
		fields, err := l.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("ledger pending %s: %w", name, err)
		}
		if len(fields) == 0 {
			continue
		}
		e, err := decode(name, fields)
		if err != nil {
			return nil, err
		}
		if !e.Settled() && !e.UpdatedAt.After(cutoff) {
			out = append(out, *e)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("ledger scan: %w", err)
	}
	return out, nil
}

func decode(name string, fields map[string]string) (*Entry, error) {
	e := &Entry{
		Name:      name,
		Stage:     Stage(fields[fieldStage]),
		Container: models.Container(fields[fieldContainer]),
		Status:    fields[fieldStatus],
	}
	var err error
	if v := fields[fieldStarted]; v != "" {
		if e.StartedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, fmt.Errorf("ledger %s: started_at: %w", name, err)
		}
	}
	if v := fields[fieldUpdated]; v != "" {
		if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, fmt.Errorf("ledger %s: updated_at: %w", name, err)
		}
	}
	if v := fields[fieldMetadata]; v != "" {
		if err := json.Unmarshal([]byte(v), &e.Metadata); err != nil {
			return nil, fmt.Errorf("ledger %s: metadata: %w", name, err)
		}
	}
	return e, nil
}
