// Package callvars resolves an agent's script variables against a lead.
package callvars

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	agentdomain "callflow/backend/internal/agent/domain"
)

const timeLayout = "2006-01-02T15:04:05-07:00"

var (
	variablePattern = regexp.MustCompile(`^\{\{.+\}\}$`)
	namePattern     = regexp.MustCompile(`^\{\{\s*(.+?)\s*\}\}$`)
	camelBoundary   = regexp.MustCompile(`([a-z])([A-Z])`)
)

// IsVariable reports whether v is a "{{ name }}" template.
func IsVariable(v string) bool {
	return variablePattern.MatchString(strings.TrimSpace(v))
}

// VariableName returns the snake_case name inside a template, or "" when v is not one.
func VariableName(v string) string {
	m := namePattern.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return ""
	}
	return strings.ToLower(camelBoundary.ReplaceAllString(m[1], "${1}_${2}"))
}

// Extract splits agent variables into slug -> lead field name and slug -> constant value.
func Extract(vars []agentdomain.Variable) (dynamic, constants map[string]string) {
	dynamic = map[string]string{}
	constants = map[string]string{}
	for _, v := range vars {
		switch v.Type {
		case agentdomain.VariableDynamic:
			dynamic[v.Slug] = VariableName(v.Value)
		case agentdomain.VariableConstant:
			constants[v.Slug] = v.Value
		}
	}
	return dynamic, constants
}

// Lookup returns details[key], falling back to a gjson path into the encoded details for
// nested keys such as "crm_metadata.id".
func Lookup(details map[string]any, key string) any {
	if key == "" {
		return nil
	}
	if v, ok := details[key]; ok {
		return v
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil
	}
	res := gjson.GetBytes(raw, key)
	if !res.Exists() {
		return nil
	}
	return res.Value()
}

// Build computes the dynamic variables sent with a call. details is the lead's merged
// column/custom-field map; now is rendered in loc.
func Build(details map[string]any, agent *agentdomain.Agent, now time.Time, loc *time.Location) map[string]any {
	if loc == nil {
		loc = time.UTC
	}
	name, _ := details["name"].(string)
	vars := map[string]any{
		"recipientName": firstWord(name),
		"productName":   details["product_of_interest"],
		"currentTime":   now.In(loc).Format(timeLayout),
	}

	dynamic, constants := Extract(agent.CustomVariables)
	for slug, field := range dynamic {
		if v := Lookup(details, field); Truthy(v) {
			vars[slug] = v
		} else {
			vars[slug] = ""
		}
	}

	if IsVariable(agent.CompanyName) {
		if v := Lookup(details, VariableName(agent.CompanyName)); Truthy(v) {
			vars["companyName"] = v
		} else {
			vars["companyName"] = ""
		}
	} else {
		vars["companyName"] = agent.CompanyName
	}

	for slug, v := range constants {
		vars[slug] = v
	}
	return vars
}

// Missing returns the sorted names whose value in vars is empty, zero or absent.
func Missing(vars map[string]any) []string {
	var out []string
	for k, v := range vars {
		if !Truthy(v) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Truthy treats nil, "", false, zero and NaN as empty.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case int32:
		return t != 0
	default:
		return true
	}
}

// VoiceProvider returns "elevenlabs" for ElevenLabs and custom voices, otherwise "".
func VoiceProvider(voice string) string {
	if strings.Contains(voice, "labs") || strings.Contains(voice, "custom") {
		return "elevenlabs"
	}
	return ""
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

// ItemDetails is Lead.Details for a contact that arrived as a node item: custom_fields
// entries are merged under their labels and the item's own keys win.
func ItemDetails(item map[string]any) map[string]any {
	out := make(map[string]any, len(item)+8)
	if fields, ok := item["custom_fields"].([]any); ok {
		for _, f := range fields {
			cf, ok := f.(map[string]any)
			if !ok {
				continue
			}
			if label, _ := cf["label"].(string); label != "" {
				out[label] = cf["value"]
			}
		}
	}
	for k, v := range item {
		out[k] = v
	}
	return out
}
