package zohocrm

import (
	"fmt"

	"github.com/tidwall/gjson"

	"callflow/backend/internal/node"
	"callflow/backend/internal/zoho"
)

// createBody builds a create or upsert record from the required parameters, additionalFields
// and productDetails.
func createBody(res zoho.Resource, p *node.ExecuteRequest) (map[string]any, error) {
	body := map[string]any{}
	for _, f := range res.Required {
		v, ok := p.Param(f.Param)
		if !ok || v == "" {
			return nil, node.InvalidInput(Type, fmt.Sprintf("The parameter \"%s\" is required.", f.Param))
		}
		if f.Lookup {
			v = map[string]any{"id": v}
		}
		body[f.APIName] = v
	}
	for k, v := range dynamicFields(p.Map("additionalFields")) {
		body[k] = v
	}
	if res.Products {
		products := productDetails(p)
		if len(products) == 0 {
			if _, ok := body["Product_Details"]; !ok {
				return nil, res.ErrMissingProducts()
			}
		} else {
			body["Product_Details"] = zoho.AdjustProductDetails(products)
		}
	}
	return body, nil
}

func recordID(res zoho.Resource, p *node.ExecuteRequest) (string, error) {
	id := p.String(res.IDParam())
	if id == "" {
		return "", node.InvalidInput(Type, fmt.Sprintf("The parameter \"%s\" is required.", res.IDParam()))
	}
	return id, nil
}

// dynamicFields accepts {"fields": [{"field", "value"}]} or a plain field map.
func dynamicFields(collection map[string]any) map[string]any {
	out := map[string]any{}
	if list, ok := collection["fields"].([]any); ok {
		for _, e := range list {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if field, _ := entry["field"].(string); field != "" {
				out[field] = entry["value"]
			}
		}
		return out
	}
	for k, v := range collection {
		out[k] = v
	}
	if products, ok := out["Product_Details"].([]any); ok {
		out["Product_Details"] = zoho.AdjustProductDetails(products)
	}
	return out
}

func productDetails(p *node.ExecuteRequest) []any {
	v, _ := p.Param("productDetails")
	list, _ := v.([]any)
	return list
}

func searchFilters(collection map[string]any) []zoho.Filter {
	list, _ := collection["filters"].([]any)
	out := make([]zoho.Filter, 0, len(list))
	for _, e := range list {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, zoho.Filter{
			Field:    fmt.Sprint(entry["field"]),
			Operator: fmt.Sprint(entry["operator"]),
			Value:    entry["value"],
		})
	}
	return out
}

func stringList(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// details returns data[0].details of a write response.
func details(res gjson.Result, err error) ([]map[string]any, error) {
	if err != nil {
		return nil, err
	}
	return zoho.Records(res.Get("data.0.details")), nil
}
