package safeswipe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Backends answer in one of three shapes:
//
//	[{"label": "artificial", "score": 0.9}, ...]          list
//	{"label": "artificial", "score": 0.9}                 object
//	{"predictions": [{"label": ..., "score": ...}], ...}  keyed, one level deep
//
// decodeShape tags the payload with its shape and normalize flattens any
// shape into a list of pairs.
type responseShape interface {
	shape() string
}

type listShape []LabelScore

type objectShape LabelScore

// keyedShape keeps the mapping keys so normalization can be ordered.
type keyedShape map[string][]LabelScore

func (listShape) shape() string   { return "list" }
func (objectShape) shape() string { return "object" }
func (keyedShape) shape() string  { return "keyed" }

var errEmptyResponse = errors.New("empty response")

// ParseResponse decodes a backend payload into label/score pairs.
func ParseResponse(body []byte) ([]LabelScore, error) {
	s, err := decodeShape(body)
	if err != nil {
		return nil, err
	}
	return normalize(s), nil
}

func normalize(s responseShape) []LabelScore {
	switch v := s.(type) {
	case listShape:
		return []LabelScore(v)
	case objectShape:
		return []LabelScore{LabelScore(v)}
	case keyedShape:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []LabelScore
		for _, k := range keys {
			out = append(out, v[k]...)
		}
		return out
	default:
		return nil
	}
}

func decodeShape(body []byte) (responseShape, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errEmptyResponse
	}

	switch body[0] {
	case '[':
		pairs, err := decodePairList(body)
		if err != nil {
			return nil, err
		}
		return listShape(pairs), nil
	case '{':
		return decodeObject(body)
	default:
		return nil, fmt.Errorf("unexpected response start %q", body[0])
	}
}

func decodeObject(body []byte) (responseShape, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if len(fields) == 0 {
		return nil, errEmptyResponse
	}

	if _, ok := fields["label"]; ok {
		pair, err := decodePair(body)
		if err != nil {
			return nil, err
		}
		return objectShape(pair), nil
	}
	if msg, ok := fields["error"]; ok && !isNull(msg) {
		return nil, fmt.Errorf("backend error payload: %s", bytes.TrimSpace(msg))
	}

	// Keys that hold no label/score data (model names, timings, a null
	// error) are metadata and skipped.
	keyed := make(keyedShape, len(fields))
	for k, raw := range fields {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		switch raw[0] {
		case '[':
			if pairs, err := decodePairList(raw); err == nil {
				keyed[k] = pairs
			}
		case '{':
			if pair, err := decodePair(raw); err == nil {
				keyed[k] = []LabelScore{pair}
			}
		}
	}
	if len(keyed) == 0 {
		return nil, errors.New("no label/score pairs under any key")
	}
	return keyed, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func decodePairList(raw []byte) ([]LabelScore, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	pairs := make([]LabelScore, 0, len(items))
	for i, item := range items {
		pair, err := decodePair(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// decodePair requires both a string label and a numeric score.
func decodePair(raw []byte) (LabelScore, error) {
	var p struct {
		Label *string  `json:"label"`
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return LabelScore{}, fmt.Errorf("decode pair: %w", err)
	}
	if p.Label == nil || p.Score == nil {
		return LabelScore{}, errors.New("pair needs label and score")
	}
	return LabelScore{Label: *p.Label, Score: *p.Score}, nil
}
