package session

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Record is the cached and persisted state of one session. Values in Data are
// JSON documents; the store never interprets them.
type Record struct {
	ID         ID                `json:"id"`
	Data       map[string]string `json:"data"`
	Expires    time.Time         `json:"expires"`
	Autoremove time.Time         `json:"autoremove"`
	Destroy    bool              `json:"destroy"`
}

func newRecord(id ID, now time.Time, cfg Config) Record {
	return Record{
		ID:         id,
		Data:       make(map[string]string),
		Expires:    now.Add(cfg.Lifespan),
		Autoremove: now.Add(cfg.MemoryLifespan),
	}
}

// Expired reports whether the durable expiry has passed.
func (r *Record) Expired(now time.Time) bool {
	return r.Expires.Before(now)
}

// refresh extends both deadlines from now. An expired or destroy-flagged
// record keeps its id but loses its data, and the flag is consumed.
func (r *Record) refresh(now time.Time, cfg Config) (reset bool) {
	if r.Expired(now) || r.Destroy {
		r.Data = make(map[string]string)
		r.Destroy = false
		reset = true
	}
	if r.Data == nil {
		r.Data = make(map[string]string)
	}
	r.Expires = now.Add(cfg.Lifespan)
	r.Autoremove = now.Add(cfg.MemoryLifespan)
	return reset
}

func (r *Record) clone() Record {
	out := *r
	out.Data = maps.Clone(r.Data)
	if out.Data == nil {
		out.Data = make(map[string]string)
	}
	return out
}

func encodeRecord(r *Record) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return string(b), nil
}

func decodeRecord(payload string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if r.Data == nil {
		r.Data = make(map[string]string)
	}
	return r, nil
}
