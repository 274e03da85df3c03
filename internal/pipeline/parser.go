package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dvloznov/finance-wrapped/internal/domain"
)

// cleanModelJSON strips Markdown fences and surrounding chatter from a model
// response, keeping the first '{' through the last '}'.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Drop every fence line (``` or ```json).
	if strings.Contains(s, "```") {
		lines := strings.Split(s, "\n")
		kept := lines[:0]
		for _, l := range lines {
			if strings.HasPrefix(strings.TrimSpace(l), "```") {
				continue
			}
			kept = append(kept, l)
		}
		s = strings.TrimSpace(strings.Join(kept, "\n"))
	}

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}

	return s
}

// parseClassification parses a categorization oracle response. The payload must
// be a JSON object with exactly the string keys "category" and "reasoning".
func parseClassification(raw string) (Classification, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &fields); err != nil {
		return Classification{}, fmt.Errorf("%w: unmarshal response: %v", domain.ErrClassificationFailure, err)
	}
	if len(fields) != 2 {
		return Classification{}, fmt.Errorf("%w: want exactly keys category and reasoning, got %d keys",
			domain.ErrClassificationFailure, len(fields))
	}

	var c Classification
	for key, dst := range map[string]*string{"category": &c.Category, "reasoning": &c.Reasoning} {
		v, ok := fields[key]
		if !ok {
			return Classification{}, fmt.Errorf("%w: missing key %q", domain.ErrClassificationFailure, key)
		}
		// Unmarshalling null into a string is a silent no-op.
		v = bytes.TrimSpace(v)
		if len(v) == 0 || v[0] != '"' {
			return Classification{}, fmt.Errorf("%w: key %q is not a string", domain.ErrClassificationFailure, key)
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return Classification{}, fmt.Errorf("%w: key %q is not a string", domain.ErrClassificationFailure, key)
		}
	}
	return c, nil
}

// personaPayload is the raw persona oracle response before validation.
type personaPayload struct {
	ConversationPoints json.RawMessage `json:"conversationPoints"`
	PersonaID          json.RawMessage `json:"persona_id"`
	PersonaScores      json.RawMessage `json:"persona_scores"`
}

// parsePersonaResponse validates and normalizes a persona oracle response
// against a table of personaCount personas.
func parsePersonaResponse(raw string, personaCount int) (*PersonaInference, error) {
	var p personaPayload
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &p); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", domain.ErrOracleContract, err)
	}

	id, err := parsePersonaID(p.PersonaID, personaCount)
	if err != nil {
		return nil, err
	}

	scores, err := parsePersonaScores(p.PersonaScores, personaCount)
	if err != nil {
		return nil, err
	}

	points, err := parseConversationPoints(p.ConversationPoints)
	if err != nil {
		return nil, err
	}

	return &PersonaInference{
		PersonaID:          id,
		Scores:             scores,
		ConversationPoints: points,
	}, nil
}

func parsePersonaID(raw json.RawMessage, personaCount int) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: persona_id missing", domain.ErrOracleContract)
	}
	n, err := strictNumber(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: persona_id is not a number: %s", domain.ErrOracleContract, raw)
	}
	id, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, fmt.Errorf("%w: persona_id %s is not an integer", domain.ErrOracleContract, n)
	}
	if id < 1 || id > personaCount {
		return 0, fmt.Errorf("%w: persona_id %d out of range 1..%d", domain.ErrOracleContract, id, personaCount)
	}
	return id, nil
}

// parsePersonaScores accepts either an array indexed by id-1 or an object keyed
// by id. Missing ids in the object form score 0. The result always sums to 1.
func parsePersonaScores(raw json.RawMessage, personaCount int) (map[int]float64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: persona_scores missing", domain.ErrOracleContract)
	}

	scores := make(map[int]float64, personaCount)
	for id := 1; id <= personaCount; id++ {
		scores[id] = 0
	}

	switch trimmed[0] {
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, fmt.Errorf("%w: persona_scores: %v", domain.ErrOracleContract, err)
		}
		if len(arr) != personaCount {
			return nil, fmt.Errorf("%w: persona_scores has %d entries, want %d",
				domain.ErrOracleContract, len(arr), personaCount)
		}
		for i, n := range arr {
			v, err := scoreValue(n)
			if err != nil {
				return nil, err
			}
			scores[i+1] = v
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("%w: persona_scores: %v", domain.ErrOracleContract, err)
		}
		for key, n := range obj {
			id, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil || id < 1 || id > personaCount {
				return nil, fmt.Errorf("%w: persona_scores has unknown persona id %q", domain.ErrOracleContract, key)
			}
			v, err := scoreValue(n)
			if err != nil {
				return nil, err
			}
			scores[id] = v
		}
	default:
		return nil, fmt.Errorf("%w: persona_scores must be an array or object", domain.ErrOracleContract)
	}

	var sum, peak float64
	for _, v := range scores {
		sum += v
		peak = math.Max(peak, v)
	}
	if sum <= 0 || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("%w: persona_scores sum to %v", domain.ErrOracleContract, sum)
	}
	// A score above 1 is renormalized even when the sum is within tolerance.
	if math.Abs(sum-1) > ScoreSumTolerance || peak > 1 {
		for id := range scores {
			scores[id] /= sum
		}
	}
	return scores, nil
}

func scoreValue(raw json.RawMessage) (float64, error) {
	n, err := strictNumber(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: persona score %s is not a number", domain.ErrOracleContract, raw)
	}
	v, err := n.Float64()
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: persona score %s is not finite", domain.ErrOracleContract, n)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: persona score %s is negative", domain.ErrOracleContract, n)
	}
	return v, nil
}

// parseConversationPoints returns the non-blank points. A missing key yields none.
func parseConversationPoints(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []string{}, nil
	}
	var all []string
	if err := json.Unmarshal(trimmed, &all); err != nil {
		return nil, fmt.Errorf("%w: conversationPoints must be an array of strings", domain.ErrOracleContract)
	}
	points := make([]string, 0, len(all))
	for _, s := range all {
		if s = strings.TrimSpace(s); s != "" {
			points = append(points, s)
		}
	}
	return points, nil
}

// strictNumber decodes a JSON number literal, rejecting quoted numbers.
func strictNumber(raw json.RawMessage) (json.Number, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !(trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9')) {
		return "", fmt.Errorf("not a number literal: %s", trimmed)
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", err
	}
	return n, nil
}
