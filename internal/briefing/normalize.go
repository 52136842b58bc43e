package briefing

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-briefing/internal/model"
)

// ErrUnrecognizedShape is returned when a model payload cannot be reshaped
// into {"deals": [...]}.
var ErrUnrecognizedShape = eris.New("briefing: unrecognized response shape")

// ErrInvalidEntry is returned when a normalized entry misses or corrupts a
// required field.
var ErrInvalidEntry = eris.New("briefing: invalid priority entry")

// maxNormalizeDepth bounds how many JSON-string layers are unwrapped.
const maxNormalizeDepth = 2

// Shape is the detected top-level form of a model payload.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeWrapped is the canonical {"deals": [...]} object.
	ShapeWrapped
	// ShapeJSONString is a JSON string whose content is itself JSON.
	ShapeJSONString
	// ShapeBareArray is a list of entries without the wrapper.
	ShapeBareArray
	// ShapeSingleObject is one entry without a list.
	ShapeSingleObject
)

func (s Shape) String() string {
	switch s {
	case ShapeWrapped:
		return "wrapped"
	case ShapeJSONString:
		return "json_string"
	case ShapeBareArray:
		return "bare_array"
	case ShapeSingleObject:
		return "single_object"
	default:
		return "unknown"
	}
}

// DetectShape classifies raw without modifying it.
func DetectShape(raw []byte) Shape {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !json.Valid(raw) {
		return ShapeUnknown
	}
	switch raw[0] {
	case '"':
		return ShapeJSONString
	case '[':
		return ShapeBareArray
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return ShapeUnknown
		}
		if _, ok := obj["deals"]; ok {
			return ShapeWrapped
		}
		if _, ok := obj["deal_id"]; ok {
			return ShapeSingleObject
		}
	}
	return ShapeUnknown
}

// Normalize reshapes a model payload into canonical {"deals": [...]} JSON.
// Text wrapped in code fences is accepted.
func Normalize(raw []byte) ([]byte, error) {
	return normalize([]byte(cleanJSON(string(raw))), 0)
}

func normalize(raw []byte, depth int) ([]byte, error) {
	shape := DetectShape(raw)
	switch shape {
	case ShapeWrapped:
		return normalizeWrapped(raw, depth)
	case ShapeBareArray:
		return wrapDeals(bytes.TrimSpace(raw))
	case ShapeSingleObject:
		return wrapDeals(append(append([]byte{'['}, bytes.TrimSpace(raw)...), ']'))
	case ShapeJSONString:
		if depth >= maxNormalizeDepth {
			return nil, eris.Wrapf(ErrUnrecognizedShape, "json string nested deeper than %d", maxNormalizeDepth)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, eris.Wrap(ErrUnrecognizedShape, err.Error())
		}
		return normalize([]byte(cleanJSON(s)), depth+1)
	default:
		return nil, eris.Wrapf(ErrUnrecognizedShape, "payload starts with %q", preview(raw))
	}
}

// normalizeWrapped accepts a wrapper whose deals value is a list, a single
// entry object, null, or a JSON-encoded string of any of those.
func normalizeWrapped(raw []byte, depth int) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, eris.Wrap(ErrUnrecognizedShape, err.Error())
	}
	deals := bytes.TrimSpace(obj["deals"])
	switch {
	case len(deals) > 0 && deals[0] == '[':
		return wrapDeals(deals)
	case len(deals) > 0 && deals[0] == '{':
		return wrapDeals(append(append([]byte{'['}, deals...), ']'))
	case bytes.Equal(deals, []byte("null")):
		return wrapDeals([]byte("[]"))
	case len(deals) > 0 && deals[0] == '"' && depth < maxNormalizeDepth:
		inner, err := normalize(deals, depth)
		if err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, eris.Wrap(ErrUnrecognizedShape, `"deals" is not a list`)
	}
}

func wrapDeals(list []byte) ([]byte, error) {
	out, err := json.Marshal(struct {
		Deals json.RawMessage `json:"deals"`
	}{Deals: list})
	if err != nil {
		return nil, eris.Wrap(err, "briefing: wrap deals")
	}
	return out, nil
}

// cleanJSON strips markdown code fences that models sometimes wrap around
// JSON output.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func preview(b []byte) string {
	s := string(bytes.TrimSpace(b))
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}

// rawPriority mirrors model.DealPriority with pointers so a missing field
// can be told apart from a zero value.
type rawPriority struct {
	DealID             *flexInt             `json:"deal_id"`
	DealTitle          string               `json:"deal_title"`
	Rank               *flexInt             `json:"rank"`
	Health             *string              `json:"health"`
	Urgency            *string              `json:"urgency"`
	RecommendedActions []string             `json:"recommended_actions"`
	Reasoning          []string             `json:"reasoning"`
	Signals            []string             `json:"signals"`
	History            []model.HistoryEntry `json:"history"`
}

// flexInt accepts an integer encoded as a number, an integral float or a
// numeric string.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != float64(int64(v)) {
		return eris.Errorf("not an integer: %s", string(b))
	}
	*f = flexInt(int64(v))
	return nil
}

// DecodePriorities normalizes raw and validates every entry. Enum values
// are case-folded; missing signals and history become empty lists.
func DecodePriorities(raw []byte) (*model.PriorityResult, error) {
	canonical, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Deals []json.RawMessage `json:"deals"`
	}
	if err := json.Unmarshal(canonical, &wrapper); err != nil {
		return nil, eris.Wrap(ErrUnrecognizedShape, err.Error())
	}

	result := &model.PriorityResult{Deals: make([]model.DealPriority, 0, len(wrapper.Deals))}
	for i, item := range wrapper.Deals {
		var rp rawPriority
		if err := json.Unmarshal(item, &rp); err != nil {
			return nil, eris.Wrapf(ErrInvalidEntry, "deals[%d]: %v", i, err)
		}
		p, err := rp.validate()
		if err != nil {
			return nil, eris.Wrapf(ErrInvalidEntry, "deals[%d]: %s", i, err.Error())
		}
		result.Deals = append(result.Deals, p)
	}
	return result, nil
}

func (rp rawPriority) validate() (model.DealPriority, error) {
	var p model.DealPriority
	switch {
	case rp.DealID == nil:
		return p, eris.New(`missing field "deal_id"`)
	case rp.Rank == nil:
		return p, eris.New(`missing field "rank"`)
	case rp.Health == nil:
		return p, eris.New(`missing field "health"`)
	case rp.Urgency == nil:
		return p, eris.New(`missing field "urgency"`)
	}

	health, ok := model.ParseHealth(*rp.Health)
	if !ok {
		return p, eris.Errorf(`field "health": %q is not one of hot, warm, cold, at_risk`, *rp.Health)
	}
	urgency, ok := model.ParseUrgency(*rp.Urgency)
	if !ok {
		return p, eris.Errorf(`field "urgency": %q is not one of immediate, this_week, next_week, no_rush`, *rp.Urgency)
	}

	actions := compact(rp.RecommendedActions)
	if len(actions) == 0 {
		return p, eris.New(`field "recommended_actions" must not be empty`)
	}
	reasoning := compact(rp.Reasoning)
	if len(reasoning) == 0 {
		return p, eris.New(`field "reasoning" must not be empty`)
	}

	history := rp.History
	if history == nil {
		history = []model.HistoryEntry{}
	}

	return model.DealPriority{
		DealID:             int64(*rp.DealID),
		DealTitle:          strings.TrimSpace(rp.DealTitle),
		Rank:               int(*rp.Rank),
		Health:             health,
		Urgency:            urgency,
		RecommendedActions: actions,
		Reasoning:          reasoning,
		Signals:            compact(rp.Signals),
		History:            history,
	}, nil
}

// compact trims items and drops blanks. It never returns nil.
func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
