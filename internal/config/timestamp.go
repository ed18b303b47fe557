package config

import (
	"context"
	"fmt"
	"time"
)

// Timestamp is a time read from configuration as RFC 3339 or a calendar date.
type Timestamp struct {
	time.Time
}

// EnvDecode implements envconfig.Decoder.
func (t *Timestamp) EnvDecode(_ context.Context, v string) error {
	return t.UnmarshalText([]byte(v))
}

// MarshalText implements encoding.TextMarshaler.
func (t Timestamp) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return []byte{}, nil
	}
	return []byte(t.Format(time.RFC3339)), nil
}

// Ptr returns the time, or nil when unset.
func (t Timestamp) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Timestamp) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}

	return fmt.Errorf("invalid time %q: use RFC 3339 or YYYY-MM-DD", s)
}
