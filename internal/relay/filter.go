package relay

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// applyFilter runs a jq expression over a response. Multiple outputs come
// back as an array, a single output bare, no output as nil.
func applyFilter(expr string, input interface{}) (interface{}, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("bad filter %q: %w", expr, err)
	}

	// gojq only accepts plain JSON values; typed responses get flattened.
	normalized, err := normalize(input)
	if err != nil {
		return nil, err
	}

	var outputs []interface{}
	iter := query.Run(normalized)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("filter failed: %w", err)
		}
		outputs = append(outputs, v)
	}

	switch len(outputs) {
	case 0:
		return nil, nil
	case 1:
		return outputs[0], nil
	default:
		return outputs, nil
	}
}

func normalize(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch v.(type) {
	case map[string]interface{}, []interface{}, string, float64, bool:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("unfilterable response: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
