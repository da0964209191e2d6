package content

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Status string

const (
	StatusOK     Status = "ok"
	StatusEmpty  Status = "empty"
	StatusFailed Status = "failed"
)

// Result separates "the provider answered with nothing" from "the provider
// could not be reached", leaving the fallback decision to the caller.
type Result[T any] struct {
	Status Status
	Items  []T
	Err    error
}

func Ok[T any](items []T) Result[T] {
	if len(items) == 0 {
		return Result[T]{Status: StatusEmpty}
	}
	return Result[T]{Status: StatusOK, Items: items}
}

func Failed[T any](err error) Result[T] {
	return Result[T]{Status: StatusFailed, Err: err}
}

// OrElse returns the items on success and fallback otherwise.
func (r Result[T]) OrElse(fallback []T) []T {
	if r.Status == StatusOK {
		return r.Items
	}
	return fallback
}

var ErrUnknownKind = errors.New("content: unknown entity kind")

// Decode unmarshals raw JSON into the entity variant named by kind.
func Decode(kind Kind, raw []byte) (Analyzable, error) {
	switch kind {
	case KindArticle:
		var a Article
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode article: %w", err)
		}
		if a.ID == "" || a.Title == "" {
			return nil, fmt.Errorf("decode article: id and title required")
		}
		return a, nil
	case KindTrial:
		var t ClinicalTrial
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("decode trial: %w", err)
		}
		if t.NCTID == "" {
			return nil, fmt.Errorf("decode trial: nctId required")
		}
		return t, nil
	case KindDrug:
		var d Drug
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode drug: %w", err)
		}
		if d.BrandName == "" {
			return nil, fmt.Errorf("decode drug: brandName required")
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
