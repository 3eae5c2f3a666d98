package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Direction tells whether a transfer moved tokens into or out of a holder.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Valid reports whether d is In or Out.
func (d Direction) Valid() bool { return d == In || d == Out }

// TransferEvent is a single token movement relative to one holder.
type TransferEvent struct {
	BlockNumber uint64
	Direction   Direction
	Value       decimal.Decimal
	TxHash      string
	LogIndex    uint
}

// Signed returns Value for incoming events and -Value for outgoing ones.
func (e TransferEvent) Signed() decimal.Decimal {
	if e.Direction == Out {
		return e.Value.Neg()
	}
	return e.Value
}

// Timeline is one holder's events in replay order (ascending block).
//
// It marshals to a JSON object keyed by block number. When several events
// share a block the keys become "<block>-<logIndex>-<direction>".
type Timeline []TransferEvent

type timelineEntry struct {
	Type     Direction       `json:"type"`
	Value    decimal.Decimal `json:"value"`
	TxHash   string          `json:"txHash,omitempty"`
	LogIndex uint            `json:"logIndex,omitempty"`
}

func (t Timeline) keys() []string {
	perBlock := make(map[uint64]int, len(t))
	for _, e := range t {
		perBlock[e.BlockNumber]++
	}
	keys := make([]string, len(t))
	for i, e := range t {
		if perBlock[e.BlockNumber] == 1 {
			keys[i] = strconv.FormatUint(e.BlockNumber, 10)
			continue
		}
		keys[i] = fmt.Sprintf("%d-%d-%s", e.BlockNumber, e.LogIndex, e.Direction)
	}
	return keys
}

// MarshalJSON writes the events in timeline order.
func (t Timeline) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range t.keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(timelineEntry{
			Type:     t[i].Direction,
			Value:    t[i].Value,
			TxHash:   t[i].TxHash,
			LogIndex: t[i].LogIndex,
		})
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a timeline back, keeping the key order of the document.
func (t *Timeline) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*t = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("timeline: expected object, got %v", tok)
	}

	out := Timeline{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		block, err := parseTimelineKey(key)
		if err != nil {
			return err
		}
		var entry timelineEntry
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("timeline entry %q: %w", key, err)
		}
		if !entry.Type.Valid() {
			return fmt.Errorf("timeline entry %q: %w: %q", key, ErrBadDirection, entry.Type)
		}
		out = append(out, TransferEvent{
			BlockNumber: block,
			Direction:   entry.Type,
			Value:       entry.Value,
			TxHash:      entry.TxHash,
			LogIndex:    entry.LogIndex,
		})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*t = out
	return nil
}

func parseTimelineKey(key string) (uint64, error) {
	head, _, _ := strings.Cut(key, "-")
	block, err := strconv.ParseUint(head, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadTimelineKey, key)
	}
	return block, nil
}
