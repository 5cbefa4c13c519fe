// Package model holds the like event and batch types shared by the write path,
// the durability paths and the durable store.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the effect of a like event. Its integer value is the type code stored in
// the time-slice buckets.
type Kind int8

const (
	KindNone   Kind = 0
	KindAdd    Kind = 1
	KindRemove Kind = -1
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "INCR"
	case KindRemove:
		return "DECR"
	default:
		return "NONE"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "INCR":
		*k = KindAdd
	case "DECR":
		*k = KindRemove
	case "NONE":
		*k = KindNone
	default:
		return fmt.Errorf("unknown event kind %q", text)
	}
	return nil
}

// Pair identifies one like relation.
type Pair struct {
	Actor int64
	Item  int64
}

func (p Pair) String() string {
	return strconv.FormatInt(p.Actor, 10) + ":" + strconv.FormatInt(p.Item, 10)
}

// ParsePair parses the "actor:item" form produced by Pair.String.
func ParsePair(s string) (Pair, error) {
	actor, item, ok := strings.Cut(s, ":")
	if !ok {
		return Pair{}, fmt.Errorf("malformed pair %q", s)
	}
	a, err := strconv.ParseInt(actor, 10, 64)
	if err != nil {
		return Pair{}, fmt.Errorf("malformed pair %q: %w", s, err)
	}
	i, err := strconv.ParseInt(item, 10, 64)
	if err != nil {
		return Pair{}, fmt.Errorf("malformed pair %q: %w", s, err)
	}
	return Pair{Actor: a, Item: i}, nil
}

// LikeEvent is one accepted like or unlike.
type LikeEvent struct {
	EventID   string    `json:"eventId"`
	Actor     int64     `json:"userId"`
	Item      int64     `json:"blogId"`
	Kind      Kind      `json:"type"`
	Timestamp time.Time `json:"eventTime"`
}

func (e LikeEvent) Pair() Pair {
	return Pair{Actor: e.Actor, Item: e.Item}
}

// Batch is a set of relation changes applied in one durable transaction.
type Batch struct {
	Inserts []Pair
	Deletes []Pair
}

func (b Batch) Empty() bool {
	return len(b.Inserts) == 0 && len(b.Deletes) == 0
}

func (b *Batch) Add(p Pair, k Kind) {
	switch k {
	case KindAdd:
		b.Inserts = append(b.Inserts, p)
	case KindRemove:
		b.Deletes = append(b.Deletes, p)
	}
}
