package inventory

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrCodeRequired  = fmt.Errorf("%w: code is required", ErrInvalidInput)
	ErrInvalidAction = fmt.Errorf("%w: unknown action", ErrInvalidInput)
	ErrInvalidAmount = fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)

	ErrQuantityOverflow = fmt.Errorf("%w: quantity out of range", ErrInvalidInput)
)

type ProductRecord struct {
	Code        string    `json:"codigo"`
	Name        string    `json:"nombre"`
	Quantity    int       `json:"cantidad"`
	LastUpdated time.Time `json:"ultimaActualizacion"`
}

// Collection is the whole persisted inventory. Records keep insertion order
// and are unique by Code.
type Collection struct {
	Products []ProductRecord `json:"productos"`
}

type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionSet    Action = "set"
)

var legacyActions = map[string]Action{
	"agregar":    ActionAdd,
	"quitar":     ActionRemove,
	"actualizar": ActionSet,
}

func ParseAction(s string) (Action, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch Action(v) {
	case ActionAdd, ActionRemove, ActionSet:
		return Action(v), nil
	}
	if a, ok := legacyActions[v]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

func ValidateCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrCodeRequired
	}
	return code, nil
}

func DefaultName(code string) string {
	return "Product " + code
}

func (c Collection) Len() int { return len(c.Products) }

func (c Collection) Find(code string) (ProductRecord, bool) {
	if i := c.index(code); i >= 0 {
		return c.Products[i], true
	}
	return ProductRecord{}, false
}

func (c Collection) Clone() Collection {
	out := Collection{Products: make([]ProductRecord, len(c.Products))}
	copy(out.Products, c.Products)
	return out
}

// Upsert applies action to the record keyed by code, creating it with
// quantity = amount when absent. The receiver is not modified. An add that
// would overflow the counter fails with ErrQuantityOverflow.
func (c Collection) Upsert(code, name string, action Action, amount int, now time.Time) (Collection, ProductRecord, error) {
	name = strings.TrimSpace(name)

	i := c.index(code)
	if i < 0 {
		if name == "" {
			name = DefaultName(code)
		}
		p := ProductRecord{Code: code, Name: name, Quantity: amount, LastUpdated: now}
		out := c.Clone()
		out.Products = append(out.Products, p)
		return out, p, nil
	}

	p := c.Products[i]
	switch action {
	case ActionAdd:
		if amount > math.MaxInt-p.Quantity {
			return Collection{}, ProductRecord{}, fmt.Errorf("%w: %q holds %d", ErrQuantityOverflow, code, p.Quantity)
		}
		p.Quantity += amount
	case ActionRemove:
		p.Quantity = max(0, p.Quantity-amount)
	case ActionSet:
		p.Quantity = amount
	}
	if name != "" {
		p.Name = name
	}
	p.LastUpdated = now

	out := c.Clone()
	out.Products[i] = p
	return out, p, nil
}

// repair clamps negative quantities to zero and keeps only the first record
// for each code.
func (c Collection) repair() Collection {
	out := Collection{Products: make([]ProductRecord, 0, len(c.Products))}
	seen := make(map[string]struct{}, len(c.Products))
	for _, p := range c.Products {
		if _, dup := seen[p.Code]; dup {
			continue
		}
		seen[p.Code] = struct{}{}
		p.Quantity = max(0, p.Quantity)
		out.Products = append(out.Products, p)
	}
	return out
}

// DeleteByCode drops every record matching code. The bool reports whether
// anything was removed.
func (c Collection) DeleteByCode(code string) (Collection, bool) {
	out := Collection{Products: make([]ProductRecord, 0, len(c.Products))}
	for _, p := range c.Products {
		if p.Code != code {
			out.Products = append(out.Products, p)
		}
	}
	return out, len(out.Products) != len(c.Products)
}

func (c Collection) index(code string) int {
	for i := range c.Products {
		if c.Products[i].Code == code {
			return i
		}
	}
	return -1
}
