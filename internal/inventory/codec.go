package inventory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrCorruptState = errors.New("persisted inventory is corrupt")

	errInconsistentDocument = fmt.Errorf("%w: inconsistent records", ErrCorruptState)
)

func encodeCollection(c Collection) ([]byte, error) {
	if c.Products == nil {
		c.Products = []ProductRecord{}
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// decodeCollection treats an empty or whitespace-only document as an empty
// collection. A document that parses but holds duplicate codes or negative
// quantities is returned together with errInconsistentDocument.
func decodeCollection(doc []byte) (Collection, error) {
	if len(bytes.TrimSpace(doc)) == 0 {
		return Collection{Products: []ProductRecord{}}, nil
	}

	var c Collection
	if err := json.Unmarshal(doc, &c); err != nil {
		return Collection{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if c.Products == nil {
		c.Products = []ProductRecord{}
	}
	if err := checkCollection(c); err != nil {
		return c, err
	}
	return c, nil
}

func checkCollection(c Collection) error {
	seen := make(map[string]struct{}, len(c.Products))
	for _, p := range c.Products {
		if p.Quantity < 0 {
			return fmt.Errorf("%w: negative quantity %d for %q", errInconsistentDocument, p.Quantity, p.Code)
		}
		if _, dup := seen[p.Code]; dup {
			return fmt.Errorf("%w: duplicate code %q", errInconsistentDocument, p.Code)
		}
		seen[p.Code] = struct{}{}
	}
	return nil
}
