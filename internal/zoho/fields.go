package zoho

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

// PicklistValue is one allowed value of a picklist field.
type PicklistValue struct {
	DisplayValue string
	ActualValue  string
}

// Field is the metadata of one module field.
type Field struct {
	APIName  string
	Label    string
	DataType string
	Custom   bool
	Picklist []PicklistValue
}

// Fields returns the field metadata of a module such as "Leads".
func (c *Client) Fields(ctx context.Context, module string) ([]Field, error) {
	res, err := c.Do(ctx, http.MethodGet, "/settings/fields", nil, url.Values{"module": {module}})
	if err != nil {
		return nil, err
	}
	var out []Field
	res.Get("fields").ForEach(func(_, f gjson.Result) bool {
		label := f.Get("display_label").String()
		if label == "" {
			label = f.Get("field_label").String()
		}
		field := Field{
			APIName:  f.Get("api_name").String(),
			Label:    label,
			DataType: f.Get("data_type").String(),
			Custom:   f.Get("custom_field").Bool(),
		}
		f.Get("pick_list_values").ForEach(func(_, p gjson.Result) bool {
			field.Picklist = append(field.Picklist, PicklistValue{
				DisplayValue: p.Get("display_value").String(),
				ActualValue:  p.Get("actual_value").String(),
			})
			return true
		})
		out = append(out, field)
		return true
	})
	return out, nil
}

// FieldTypes maps API names to data types.
func FieldTypes(fields []Field) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.APIName] = f.DataType
	}
	return out
}
