package common

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp RFC3339 timestamp
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) *Timestamp { return &Timestamp{t} }
func TimestampNow() *Timestamp            { return NewTimestamp(time.Now().UTC().Truncate(time.Second)) }
func ParseTimestamp(s string) (*Timestamp, error) {
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}

	return NewTimestamp(tm), nil
}

func (t *Timestamp) String() string               { return t.Format(time.RFC3339) }
func (t *Timestamp) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string

	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}

	t.Time = tm
	return nil
}

func (t *Timestamp) MarshalYAML() (interface{}, error) { return t.String(), nil }
func (t *Timestamp) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var tm time.Time
	if err := unmarshal(&tm); err != nil {
		return err
	}
	t.Time = tm
	return nil
}

// Age returns short human readable age, e.g. 3d, 5h
func (t *Timestamp) Age(now time.Time) string {
	if t == nil {
		return ""
	}

	d := now.Sub(t.Time)
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
