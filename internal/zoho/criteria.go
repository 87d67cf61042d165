package zoho

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Filter is one search condition as entered in a node.
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// operatorMap maps node operators to Zoho search operators.
var operatorMap = map[string]string{
	"equals":        "equals",
	"not_equals":    "not_equal",
	"not_equal":     "not_equal",
	"contains":      "contains",
	"not_contains":  "not_contains",
	"starts_with":   "starts_with",
	"ends_with":     "ends_with",
	"greater_than":  "greater_than",
	"less_than":     "less_than",
	"greater_equal": "greater_equal",
	"less_equal":    "less_equal",
	"is_empty":      "is_empty",
	"is_not_empty":  "is_not_empty",
	"between":       "between",
	"in":            "in",
}

// unsupportedOperators are accepted by the node UI but rejected by the search API.
var unsupportedOperators = []string{"contains", "not_contains", "ends_with", "is_empty", "is_not_empty"}

var (
	textOps     = []string{"equals", "not_equal", "starts_with", "in"}
	equalityOps = []string{"equals", "not_equal", "in"}
	rangeOps    = []string{"equals", "not_equal", "greater_equal", "greater_than", "less_equal", "less_than", "between", "in"}
)

// allowedOperators lists the search operators Zoho accepts per field data type.
var allowedOperators = map[string][]string{
	"text":                textOps,
	"email":               textOps,
	"phone":               textOps,
	"website":             textOps,
	"picklist":            equalityOps,
	"autonumber":          equalityOps,
	"date":                rangeOps,
	"datetime":            rangeOps,
	"integer":             rangeOps,
	"currency":            rangeOps,
	"decimal":             rangeOps,
	"bigint":              rangeOps,
	"percent":             rangeOps,
	"boolean":             {"equals", "not_equal"},
	"textarea":            {"equals", "not_equal", "starts_with"},
	"lookup":              equalityOps,
	"owner_lookup":        equalityOps,
	"user_lookup":         equalityOps,
	"multiselectpicklist": {"equals", "not_equal", "in", "starts_with"},
}

// BuildCriteria renders filters as a Zoho search criteria string. fieldTypes maps API names to
// data types; unknown fields are validated as text.
func BuildCriteria(filters []Filter, fieldTypes map[string]string) (string, error) {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		op, ok := operatorMap[f.Operator]
		if !ok || slices.Contains(unsupportedOperators, f.Operator) {
			return "", fmt.Errorf("Operator '%s' is not supported by Zoho Search API.", f.Operator)
		}
		dataType, inferred := fieldTypes[f.Field], false
		if dataType == "" {
			dataType, inferred = "text", true
		}
		allowed := allowedOperators[dataType]
		if !slices.Contains(allowed, op) {
			msg := fmt.Sprintf("Operator '%s' is not allowed for field '%s' of type '%s'. Allowed: %s.",
				f.Operator, f.Field, dataType, strings.Join(allowed, ", "))
			if inferred {
				msg += " (Field type could not be determined, so 'text' was assumed.)"
			}
			return "", errors.New(msg)
		}
		parts = append(parts, "("+condition(f.Field, op, f.Value)+")")
	}
	return strings.Join(parts, "and"), nil
}

func condition(field, op string, value any) string {
	if list, ok := value.([]any); ok {
		switch {
		case op == "in":
			vals := make([]string, len(list))
			for i, v := range list {
				vals[i] = FormatValue(v)
			}
			return field + ":in:" + strings.Join(vals, ",")
		case op == "between" && len(list) == 2:
			return field + ":between:" + FormatValue(list[0]) + "," + FormatValue(list[1])
		}
	}
	return field + ":" + op + ":" + FormatValue(value)
}

// FormatValue renders a filter or query value. Numbers decoded from JSON print without an
// exponent, so 1000000 stays "1000000".
func FormatValue(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// CombineCriteria joins a raw criteria string with filter criteria using " and ".
func CombineCriteria(raw, fromFilters string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw != "" && fromFilters != "":
		return raw + " and " + fromFilters
	case raw != "":
		return raw
	default:
		return fromFilters
	}
}
