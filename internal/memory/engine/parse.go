package engine

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// extractJSON strips markdown fences and leading prose from an LLM
// response, returning the best candidate JSON payload.
func extractJSON(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	s = strings.TrimSpace(s)
	if start := strings.IndexAny(s, "{["); start > 0 {
		s = s[start:]
	}
	return s
}

type factList struct {
	Facts []string `json:"facts"`
}

func parseFacts(raw string) []string {
	var out factList
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		return nil
	}
	facts := make([]string, 0, len(out.Facts))
	for _, f := range out.Facts {
		if f = strings.TrimSpace(f); f != "" {
			facts = append(facts, f)
		}
	}
	return facts
}

type memoryDecision struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Event     string `json:"event"`
	OldMemory string `json:"old_memory"`
}

type memoryDecisionList struct {
	Memory []memoryDecision `json:"memory"`
}

func parseMemoryDecisions(raw string) []memoryDecision {
	var out memoryDecisionList
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		return nil
	}
	return out.Memory
}

type relationList struct {
	Relations []struct {
		Source       string `json:"source"`
		Relationship string `json:"relationship"`
		Destination  string `json:"destination"`
	} `json:"relations"`
}

func parseRelations(raw string) []parsedRelation {
	var out relationList
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		return nil
	}
	rels := make([]parsedRelation, 0, len(out.Relations))
	for _, r := range out.Relations {
		if r.Source == "" || r.Relationship == "" || r.Destination == "" {
			continue
		}
		rels = append(rels, parsedRelation{r.Source, r.Relationship, r.Destination})
	}
	return rels
}

type parsedRelation struct {
	Source       string
	Relationship string
	Destination  string
}

type entityList struct {
	Entities []string `json:"entities"`
}

func parseEntities(raw string) []string {
	var out entityList
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		return nil
	}
	entities := make([]string, 0, len(out.Entities))
	for _, e := range out.Entities {
		if e = strings.TrimSpace(e); e != "" {
			entities = append(entities, e)
		}
	}
	return entities
}
