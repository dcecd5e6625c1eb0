package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Backend is the read-only contract the console consumes.
type Backend interface {
	ListConversations(ctx context.Context, userID recordID) (PageResult[Conversation], error)
	ListMessages(ctx context.Context, conversationID recordID) (PageResult[Message], error)
	ListQARecords(ctx context.Context, q QueryDescriptor) (PageResult[QARecord], error)
}

// PageResult is one page of items plus the total across all pages.
type PageResult[T any] struct {
	Items      []T
	TotalCount int
}

// pageEnvelope is the paginated wire wrapper.
type pageEnvelope struct {
	Count    *int            `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  json.RawMessage `json:"results"`
}

var errEmptyBody = errors.New("empty response body")

// decodePage accepts either {count, results} or a bare JSON array.
func decodePage[T any](body []byte) (PageResult[T], error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return PageResult[T]{}, errEmptyBody
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return PageResult[T]{}, fmt.Errorf("decode list: %w", err)
		}
		return PageResult[T]{Items: items, TotalCount: len(items)}, nil
	}

	var envelope pageEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return PageResult[T]{}, fmt.Errorf("decode page: %w", err)
	}
	var items []T
	if results := bytes.TrimSpace(envelope.Results); len(results) > 0 && string(results) != "null" {
		if err := json.Unmarshal(results, &items); err != nil {
			return PageResult[T]{}, fmt.Errorf("decode page results: %w", err)
		}
	}
	total := len(items)
	if envelope.Count != nil && *envelope.Count >= 0 {
		total = *envelope.Count
	}
	return PageResult[T]{Items: items, TotalCount: total}, nil
}
