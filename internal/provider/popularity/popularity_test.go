package popularity

import (
	"context"
	"errors"
	"testing"

	"github.com/aaweaver-actuary/repgrow/internal/domain"
)

func TestStubProviderReturnsConfiguredRows(t *testing.T) {
	rows := []domain.PopularityRow{{UCI: "e2e4", PlayRate: 0.42, GameCount: 1000}}
	s := &StubProvider{Rows: rows}
	got, err := s.Sample(context.Background(), domain.PositionKey{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].UCI != "e2e4" {
		t.Fatalf("got %+v, want %+v", got, rows)
	}
}

func TestStubProviderReturnsConfiguredError(t *testing.T) {
	wantErr := errors.New("unavailable")
	s := &StubProvider{Err: wantErr}
	_, err := s.Sample(context.Background(), domain.PositionKey{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestNewRedisProviderRejectsEmptyURL(t *testing.T) {
	_, err := NewRedisProvider(RedisConfig{})
	if err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestNewRedisProviderRejectsInvalidURL(t *testing.T) {
	_, err := NewRedisProvider(RedisConfig{URL: "not-a-redis-url"})
	if err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestNewRedisProviderAppliesDefaults(t *testing.T) {
	p, err := NewRedisProvider(RedisConfig{URL: "redis://localhost:6379/0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.cfg.KeyPrefix != defaultKeyPrefix {
		t.Fatalf("KeyPrefix = %q, want %q", p.cfg.KeyPrefix, defaultKeyPrefix)
	}
	if p.cfg.Timeout != DefaultRedisTimeout {
		t.Fatalf("Timeout = %v, want %v", p.cfg.Timeout, DefaultRedisTimeout)
	}
}

func TestNewRedisProviderRejectsNegativeRetries(t *testing.T) {
	_, err := NewRedisProvider(RedisConfig{URL: "redis://localhost:6379/0", Retries: -1})
	if err == nil {
		t.Fatal("expected error for negative retries")
	}
}
