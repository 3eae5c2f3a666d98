// Package holders reads and writes the JSON holder list.
package holders

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/okian/holdsnap/internal/domain/model"
	"github.com/shopspring/decimal"
)

// record mirrors one element of the holder file. Fields stay raw so one
// bad record does not reject the whole list.
type record struct {
	Address json.RawMessage `json:"address"`
	Amount  json.RawMessage `json:"amount"`
}

// savedRecord is the form Save writes.
type savedRecord struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

// Load reads the holder list at path. A missing file yields an empty list.
// Records that are incomplete or unparsable are returned as-is so the run
// can reject them when it reaches them.
func Load(path string) ([]model.Contributor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.Contributor{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	return Decode(b)
}

// Decode parses a holder list document. Only a document that is not a JSON
// array fails as a whole.
func Decode(b []byte) ([]model.Contributor, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(b, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	out := make([]model.Contributor, len(elems))
	for i, raw := range elems {
		out[i] = decodeRecord(raw)
	}
	return out, nil
}

func decodeRecord(raw json.RawMessage) model.Contributor {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.Contributor{Malformed: fmt.Errorf("%w: %s", model.ErrInvalidRecord, raw)}
	}

	var c model.Contributor
	if !absent(r.Address) {
		if err := json.Unmarshal(r.Address, &c.Address); err != nil {
			c.Malformed = fmt.Errorf("%w: %s", model.ErrInvalidAddress, r.Address)
			return c
		}
	}
	if !absent(r.Amount) {
		if err := c.InitialAmount.UnmarshalJSON(r.Amount); err != nil {
			c.Malformed = fmt.Errorf("%w: %s: %v", model.ErrInvalidAmount, r.Amount, err)
			return c
		}
		c.HasAmount = true
	}
	return c
}

// absent reports whether a field was left out or set to null.
func absent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// Save writes holders to path in the format Load reads, replacing any
// existing file atomically.
func Save(path string, holders []model.Contributor) error {
	recs := make([]savedRecord, len(holders))
	for i, h := range holders {
		recs[i] = savedRecord{Address: h.Address, Amount: h.InitialAmount}
	}
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", ErrWrite, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}
