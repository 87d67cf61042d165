// Package zohocrm implements the Zoho CRM node: record operations on ten CRM modules with the
// company's connected Zoho account.
package zohocrm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strings"

	companydomain "callflow/backend/internal/company/domain"
	"callflow/backend/internal/logging"
	"callflow/backend/internal/node"
	"callflow/backend/internal/platform/rbac"
	"callflow/backend/internal/zoho"
)

// Type is the node type name.
const Type = "zohoCrm"

const defaultLimit = 5

// ClientFunc returns a Zoho client for a company.
type ClientFunc func(company *companydomain.Company) (*zoho.Client, error)

// Node is the Zoho CRM node.
type Node struct {
	companies rbac.CompanyGetter
	clients   ClientFunc
	logger    *slog.Logger
}

// New returns a Zoho CRM node.
func New(companies rbac.CompanyGetter, clients ClientFunc, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{companies: companies, clients: clients, logger: logger}
}

func (n *Node) Type() string { return Type }

func (n *Node) client(ctx context.Context, userID string) (*zoho.Client, error) {
	company, err := rbac.RequireCompany(ctx, n.companies, userID)
	if err != nil {
		return nil, err
	}
	return n.clients(company)
}

// Execute runs the configured operation once per input item, with that item's parameters.
func (n *Node) Execute(ctx context.Context, req *node.ExecuteRequest) (*node.ExecuteResponse, error) {
	c, err := n.client(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	count := max(1, len(req.Items))
	var out []node.Item
	for i := range count {
		records, err := n.run(ctx, c, req.ForItem(i))
		if err != nil {
			if req.ContinueOnFail {
				out = append(out, node.ErrorItem(err))
				continue
			}
			return nil, node.ItemError(Type, i, err)
		}
		for _, r := range records {
			out = append(out, node.Item(r))
		}
	}
	return node.Items(out...), nil
}

func (n *Node) run(ctx context.Context, c *zoho.Client, p *node.ExecuteRequest) ([]map[string]any, error) {
	name := p.String("resource")
	if name == "" {
		name = "account"
	}
	res, ok := zoho.Resources[name]
	if !ok {
		return nil, node.InvalidInput(Type, fmt.Sprintf("The resource \"%s\" is not known.", name))
	}
	op := p.String("operation")

	switch op {
	case "create", "upsert":
		body, err := createBody(res, p)
		if err != nil {
			return nil, err
		}
		path := res.Path()
		if op == "upsert" {
			path += "/upsert"
		}
		return details(c.Do(ctx, http.MethodPost, path, body, nil))
	case "update":
		id, err := recordID(res, p)
		if err != nil {
			return nil, err
		}
		body := dynamicFields(p.Map("updateFields"))
		if products := productDetails(p); len(products) > 0 {
			body["Product_Details"] = zoho.AdjustProductDetails(products)
		}
		if len(body) == 0 {
			return nil, res.ErrEmptyUpdate()
		}
		return details(c.Do(ctx, http.MethodPut, res.Path()+"/"+url.PathEscape(id), body, nil))
	case "delete":
		id, err := recordID(res, p)
		if err != nil {
			return nil, err
		}
		return details(c.Do(ctx, http.MethodDelete, res.Path()+"/"+url.PathEscape(id), nil, nil))
	case "get":
		id, err := recordID(res, p)
		if err != nil {
			return nil, err
		}
		out, err := c.Do(ctx, http.MethodGet, res.Path()+"/"+url.PathEscape(id), nil, nil)
		if err != nil {
			return nil, err
		}
		return zoho.Records(out.Get("data")), nil
	case "getAll":
		return n.list(ctx, c, res, p)
	case "search":
		return n.search(ctx, c, res, p)
	case "getFields":
		if res.Name != "lead" {
			break
		}
		out, err := c.Do(ctx, http.MethodGet, "/settings/fields", nil, url.Values{"module": {"leads"}})
		if err != nil {
			return nil, err
		}
		return zoho.Records(out.Get("fields")), nil
	}
	return nil, node.InvalidInput(Type, fmt.Sprintf("The operation \"%s\" is not supported for resource \"%s\".", op, res.Name))
}

func (n *Node) list(ctx context.Context, c *zoho.Client, res zoho.Resource, p *node.ExecuteRequest) ([]map[string]any, error) {
	options := p.Map("options")
	qs := url.Values{}
	for _, key := range zoho.ListFilterOptions {
		if v, ok := options[key]; ok && v != nil {
			qs.Set(key, zoho.FormatValue(v))
		}
	}
	fields := stringList(options["fields"])
	if len(fields) == 0 {
		meta, err := c.Fields(ctx, res.Module)
		if err != nil {
			return nil, err
		}
		for _, f := range meta {
			fields = append(fields, f.APIName)
		}
	}
	qs.Set("fields", strings.Join(fields, ","))

	limit := 0
	if !p.Bool("returnAll", false) {
		limit = p.Int("limit", defaultLimit)
	}
	return c.ListAll(ctx, res.Path(), qs, limit)
}

func (n *Node) search(ctx context.Context, c *zoho.Client, res zoho.Resource, p *node.ExecuteRequest) ([]map[string]any, error) {
	filters := searchFilters(p.Map("searchFilters"))
	fromFilters := ""
	if len(filters) > 0 {
		var types map[string]string
		meta, err := c.Fields(ctx, res.Module)
		if err != nil {
			n.logger.WarnContext(ctx, "zohocrm: field types unavailable, assuming text",
				logging.NodeType(Type), logging.Error(err))
		} else {
			types = zoho.FieldTypes(meta)
		}
		if fromFilters, err = zoho.BuildCriteria(filters, types); err != nil {
			return nil, node.InvalidInput(Type, err.Error())
		}
	}
	criteria := zoho.CombineCriteria(p.String("criteria"), fromFilters)
	if criteria == "" {
		return nil, node.InvalidInput(Type, "Please provide at least one search criteria or filter.")
	}
	out, err := c.Do(ctx, http.MethodGet, res.Path()+"/search", nil, url.Values{"criteria": {criteria}})
	if err != nil {
		return nil, err
	}
	return zoho.Records(out.Get("data")), nil
}

// LoadOptions supports record lists, field lists and picklists.
func (n *Node) LoadOptions(ctx context.Context, method string, req *node.ExecuteRequest) ([]node.Option, error) {
	if res, ok := recordMethods[method]; ok {
		c, err := n.client(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		return recordOptions(ctx, c, zoho.Resources[res])
	}
	if pl, ok := zoho.Picklists[method]; ok {
		c, err := n.client(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		return picklistOptions(ctx, c, pl)
	}
	res, onlyCustom, ok := fieldsMethod(method, req)
	if !ok {
		return nil, node.ErrNoOptions
	}
	c, err := n.client(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return fieldOptions(ctx, c, res, onlyCustom)
}

var recordMethods = map[string]string{
	"getAccounts": "account",
	"getContacts": "contact",
	"getDeals":    "deal",
	"getProducts": "product",
	"getVendors":  "vendor",
}

// fieldsMethod resolves get<Resource>Fields, getCustom<Resource>Fields and getFields.
func fieldsMethod(method string, req *node.ExecuteRequest) (zoho.Resource, bool, bool) {
	if method == "getFields" {
		res, ok := zoho.Resources[req.String("resource")]
		return res, false, ok
	}
	name, ok := strings.CutPrefix(method, "get")
	if !ok {
		return zoho.Resource{}, false, false
	}
	if name, ok = strings.CutSuffix(name, "Fields"); !ok {
		return zoho.Resource{}, false, false
	}
	name, custom := strings.CutPrefix(name, "Custom")
	if name == "VendorOrder" {
		name = "Vendor"
	}
	if name == "" {
		return zoho.Resource{}, false, false
	}
	res, ok := zoho.Resources[strings.ToLower(name[:1])+name[1:]]
	return res, custom, ok
}

func recordOptions(ctx context.Context, c *zoho.Client, res zoho.Resource) ([]node.Option, error) {
	records, err := c.ListAll(ctx, res.Path(), url.Values{"fields": {"id," + res.NameField}}, 0)
	if err != nil {
		return nil, err
	}
	out := make([]node.Option, 0, len(records))
	for _, r := range records {
		out = append(out, node.Option{Name: fmt.Sprint(r[res.NameField]), Value: r["id"]})
	}
	sortOptions(out)
	return out, nil
}

func fieldOptions(ctx context.Context, c *zoho.Client, res zoho.Resource, onlyCustom bool) ([]node.Option, error) {
	fields, err := c.Fields(ctx, res.Module)
	if err != nil {
		return nil, err
	}
	out := make([]node.Option, 0, len(fields))
	for _, f := range fields {
		if onlyCustom && !f.Custom {
			continue
		}
		out = append(out, node.Option{Name: f.Label, Value: f.APIName, Description: f.DataType})
	}
	sortOptions(out)
	return out, nil
}

func picklistOptions(ctx context.Context, c *zoho.Client, pl zoho.Picklist) ([]node.Option, error) {
	fields, err := c.Fields(ctx, zoho.Resources[pl.Resource].Module)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(fields, func(f zoho.Field) bool { return f.APIName == pl.Field })
	if i < 0 {
		return []node.Option{}, nil
	}
	out := make([]node.Option, 0, len(fields[i].Picklist))
	for _, v := range fields[i].Picklist {
		out = append(out, node.Option{Name: v.DisplayValue, Value: v.ActualValue})
	}
	return out, nil
}

func sortOptions(opts []node.Option) {
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Name < opts[j].Name })
}
