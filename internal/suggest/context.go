package suggest

import (
	"fmt"
	"strconv"
	"strings"
)

// Snapshot is the typed view of the caller's flattened form context: the
// project identity, cofinancing/funding info, the current lot, the
// procurement classification and the evaluation-criteria flags.
type Snapshot struct {
	ProjectTitle       string
	ProjectDescription string
	FundingProgram     string
	Cofinancers        []string
	LotTitle           string
	LotIndex           int
	ProcurementType    string
	CPVCode            string
	EvaluationCriteria []string
}

// CollectContext flattens the form context into a Snapshot. Pure function,
// no I/O; unknown keys are ignored, nested maps and dotted keys both work.
func CollectContext(form map[string]any) Snapshot {
	snap := Snapshot{
		ProjectTitle:       lookupString(form, "project.title"),
		ProjectDescription: lookupString(form, "project.description"),
		FundingProgram:     lookupString(form, "cofinancing.program"),
		LotTitle:           lookupString(form, "lot.title"),
		ProcurementType:    lookupString(form, "procurement.type"),
		CPVCode:            lookupString(form, "procurement.cpv_code"),
	}
	snap.LotIndex, _ = strconv.Atoi(lookupString(form, "lot.index"))
	snap.Cofinancers = lookupStrings(form, "cofinancing.cofinancers")
	snap.EvaluationCriteria = lookupStrings(form, "criteria")
	return snap
}

// ContextUsed reports which context fields informed a result, for
// caller-side provenance display.
func (s Snapshot) ContextUsed() map[string]string {
	used := map[string]string{}
	if s.ProjectTitle != "" {
		used["project"] = s.ProjectTitle
	}
	if len(s.Cofinancers) > 0 {
		used["cofinancers"] = strings.Join(s.Cofinancers, ", ")
	}
	if s.LotTitle != "" {
		used["lot"] = s.LotTitle
	}
	if s.ProcurementType != "" {
		used["procurement_type"] = s.ProcurementType
	}
	return used
}

// keywords returns the context values worth concatenating into a retrieval
// query.
func (s Snapshot) keywords() []string {
	var parts []string
	for _, v := range []string{s.ProjectTitle, s.ProcurementType, s.CPVCode, s.LotTitle, s.FundingProgram} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	if len(s.Cofinancers) > 0 {
		parts = append(parts, strings.Join(s.Cofinancers, " "))
	}
	return parts
}

// lookupString resolves a dotted path against either a flat key or nested
// maps, whichever the caller supplied.
func lookupString(form map[string]any, path string) string {
	if v, ok := form[path]; ok {
		return asString(v)
	}
	parts := strings.Split(path, ".")
	current := any(form)
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = m[part]
		if !ok {
			return ""
		}
	}
	return asString(current)
}

func lookupStrings(form map[string]any, path string) []string {
	var raw any
	if v, ok := form[path]; ok {
		raw = v
	} else {
		parts := strings.Split(path, ".")
		current := any(form)
		for _, part := range parts {
			m, ok := current.(map[string]any)
			if !ok {
				return nil
			}
			current, ok = m[part]
			if !ok {
				return nil
			}
		}
		raw = current
	}

	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			switch entry := item.(type) {
			case string:
				out = append(out, entry)
			case map[string]any:
				if name := asString(entry["name"]); name != "" {
					out = append(out, name)
				}
			}
		}
		return out
	case map[string]any:
		// flag map: keep the enabled keys
		var out []string
		for key, val := range v {
			if enabled, ok := val.(bool); ok && enabled {
				out = append(out, key)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return fmt.Sprintf("%v", t)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprintf("%v", v)
}
