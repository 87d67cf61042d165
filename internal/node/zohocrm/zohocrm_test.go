package zohocrm_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	companydomain "callflow/backend/internal/company/domain"
	"callflow/backend/internal/node"
	"callflow/backend/internal/node/nodetest"
	"callflow/backend/internal/node/zohocrm"
	"callflow/backend/internal/zoho"
)

const leadFields = `{"fields":[
	{"api_name":"Email","display_label":"Email","data_type":"email"},
	{"api_name":"Last_Name","display_label":"Last Name","data_type":"text"},
	{"api_name":"Score","display_label":"Score","data_type":"integer","custom_field":true}]}`

type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []map[string]any
}

func (r *recorder) last() (*http.Request, map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1], r.bodies[len(r.bodies)-1]
}

func newNode(t *testing.T, handler http.HandlerFunc) (*zohocrm.Node, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}
		rec.mu.Lock()
		rec.requests = append(rec.requests, r)
		rec.bodies = append(rec.bodies, body)
		rec.mu.Unlock()
		if r.URL.Path == "/settings/fields" {
			_, _ = io.WriteString(w, leadFields)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	companies := nodetest.Companies{"user-1": {ID: "co-1", ZohoRefreshToken: "rt"}}
	clients := func(c *companydomain.Company) (*zoho.Client, error) {
		if c.ZohoRefreshToken == "" {
			return nil, companydomain.ErrZohoNotConnected
		}
		return zoho.NewClient(srv.URL, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}), nil), nil
	}
	return zohocrm.New(companies, clients, nil), rec
}

func request(params map[string]any) *node.ExecuteRequest {
	return &node.ExecuteRequest{UserID: "user-1", Parameters: params, Items: []node.Item{{}}}
}

func writeDetails(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, `{"data":[{"code":"SUCCESS","details":{"id":"42"},"status":"success"}]}`)
}

func TestCreateDeal(t *testing.T) {
	n, rec := newNode(t, writeDetails)
	resp, err := n.Execute(t.Context(), request(map[string]any{
		"resource": "deal", "operation": "create", "dealName": "Big", "stage": "Qualification",
		"additionalFields": map[string]any{"fields": []any{map[string]any{"field": "Amount", "value": float64(100)}}},
	}))
	require.NoError(t, err)
	assert.Equal(t, []node.Item{{"id": "42"}}, resp.Items)

	r, body := rec.last()
	assert.Equal(t, http.MethodPost, r.Method)
	assert.Equal(t, "/Deals", r.URL.Path)
	assert.Equal(t, map[string]any{"data": []any{map[string]any{
		"Deal_Name": "Big", "Stage": "Qualification", "Amount": float64(100),
	}}}, body)
}

func TestUpsertSalesOrderWithProducts(t *testing.T) {
	n, rec := newNode(t, writeDetails)
	_, err := n.Execute(t.Context(), request(map[string]any{
		"resource": "salesOrder", "operation": "upsert", "subject": "SO-1", "accountId": "acc-1",
		"productDetails": []any{map[string]any{"id": "p-1", "quantity": float64(3)}},
	}))
	require.NoError(t, err)
	r, body := rec.last()
	assert.Equal(t, "/Sales_Orders/upsert", r.URL.Path)
	record := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"id": "acc-1"}, record["Account_Name"])
	assert.Equal(t, []any{map[string]any{"product": map[string]any{"id": "p-1"}, "quantity": float64(3)}}, record["Product_Details"])
}

func TestValidationErrors(t *testing.T) {
	n, rec := newNode(t, writeDetails)
	tests := []struct {
		name   string
		params map[string]any
		msg    string
	}{
		{"missing products", map[string]any{"resource": "invoice", "operation": "create", "subject": "Inv"},
			"Please enter at least one product for the invoice. [item 0]"},
		{"empty update", map[string]any{"resource": "vendor", "operation": "update", "vendorId": "v-1"},
			"Please enter at least one field to update for the vendor. [item 0]"},
		{"missing required", map[string]any{"resource": "lead", "operation": "create", "lastName": "Doe"},
			"The parameter \"company\" is required. [item 0]"},
		{"missing id", map[string]any{"resource": "account", "operation": "get"},
			"The parameter \"accountId\" is required. [item 0]"},
		{"no criteria", map[string]any{"resource": "contact", "operation": "search"},
			"Please provide at least one search criteria or filter. [item 0]"},
		{"getFields only for leads", map[string]any{"resource": "deal", "operation": "getFields"},
			"The operation \"getFields\" is not supported for resource \"deal\". [item 0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Execute(t.Context(), request(tt.params))
			assert.EqualError(t, err, tt.msg)
		})
	}
	assert.Empty(t, rec.requests)
}

func TestUpdateGetDelete(t *testing.T) {
	n, rec := newNode(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, `{"data":[{"id":"a-1","Account_Name":"Acme"}]}`)
			return
		}
		writeDetails(w, r)
	})

	_, err := n.Execute(t.Context(), request(map[string]any{
		"resource": "account", "operation": "update", "accountId": "a-1",
		"updateFields": map[string]any{"Phone": "123"},
	}))
	require.NoError(t, err)
	r, body := rec.last()
	assert.Equal(t, http.MethodPut, r.Method)
	assert.Equal(t, "/Accounts/a-1", r.URL.Path)
	assert.Equal(t, map[string]any{"data": []any{map[string]any{"Phone": "123"}}}, body)

	resp, err := n.Execute(t.Context(), request(map[string]any{"resource": "account", "operation": "get", "accountId": "a-1"}))
	require.NoError(t, err)
	assert.Equal(t, "Acme", resp.Items[0]["Account_Name"])

	_, err = n.Execute(t.Context(), request(map[string]any{"resource": "account", "operation": "delete", "accountId": "a-1"}))
	require.NoError(t, err)
	r, _ = rec.last()
	assert.Equal(t, http.MethodDelete, r.Method)
}

func TestGetAllDefaultsToAllFields(t *testing.T) {
	n, rec := newNode(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"id":"1"},{"id":"2"}],"info":{"more_records":false}}`)
	})
	resp, err := n.Execute(t.Context(), request(map[string]any{
		"resource": "lead", "operation": "getAll", "returnAll": true,
		"options": map[string]any{"sort_order": "desc", "converted": "false"},
	}))
	require.NoError(t, err)
	assert.Len(t, resp.Items, 2)
	r, _ := rec.last()
	q := r.URL.Query()
	assert.Equal(t, "Email,Last_Name,Score", q.Get("fields"))
	assert.Equal(t, "desc", q.Get("sort_order"))
	assert.Equal(t, "false", q.Get("converted"))
	assert.Equal(t, "200", q.Get("per_page"))
}

func TestGetAllNumericOptions(t *testing.T) {
	n, rec := newNode(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[],"info":{"more_records":false}}`)
	})
	_, err := n.Execute(t.Context(), request(map[string]any{
		"resource": "lead", "operation": "getAll", "returnAll": true,
		"options": map[string]any{"territory_id": 3000000000.0},
	}))
	require.NoError(t, err)
	r, _ := rec.last()
	assert.Equal(t, "3000000000", r.URL.Query().Get("territory_id"))
}

func TestSearchCombinesCriteria(t *testing.T) {
	n, rec := newNode(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"id":"1"}]}`)
	})
	_, err := n.Execute(t.Context(), request(map[string]any{
		"resource": "lead", "operation": "search", "criteria": "(Last_Name:equals:Doe)",
		"searchFilters": map[string]any{"filters": []any{
			map[string]any{"field": "Score", "operator": "greater_than", "value": float64(10)},
		}},
	}))
	require.NoError(t, err)
	r, _ := rec.last()
	assert.Equal(t, "/Leads/search", r.URL.Path)
	assert.Equal(t, "(Last_Name:equals:Doe) and (Score:greater_than:10)", r.URL.Query().Get("criteria"))
}

func TestContinueOnFail(t *testing.T) {
	n, _ := newNode(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":"INVALID_DATA","message":"invalid data","status":"error"}`)
	})
	req := request(map[string]any{"resource": "account", "operation": "get"})
	req.Items = []node.Item{{}, {}}
	req.ItemParameters = []map[string]any{{"accountId": "a-1"}, nil}
	req.ContinueOnFail = true

	resp, err := n.Execute(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, []node.Item{
		{"error": "zoho: invalid data (INVALID_DATA)"},
		{"error": "The parameter \"accountId\" is required."},
	}, resp.Items)
}

func TestNotConnected(t *testing.T) {
	n, _ := newNode(t, writeDetails)
	n2 := zohocrm.New(nodetest.Companies{"user-2": {ID: "co-2"}}, func(c *companydomain.Company) (*zoho.Client, error) {
		return nil, companydomain.ErrZohoNotConnected
	}, nil)
	_, err := n2.Execute(t.Context(), &node.ExecuteRequest{UserID: "user-2"})
	assert.ErrorIs(t, err, companydomain.ErrZohoNotConnected)
	_, err = n.Execute(t.Context(), &node.ExecuteRequest{UserID: "nobody"})
	assert.ErrorIs(t, err, companydomain.ErrCompanyNotFound)
}

func TestLoadOptions(t *testing.T) {
	n, rec := newNode(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"id":"2","Vendor_Name":"Zeta"},{"id":"1","Vendor_Name":"Alpha"}],"info":{"more_records":false}}`)
	})
	req := &node.ExecuteRequest{UserID: "user-1", Parameters: map[string]any{"resource": "lead"}}

	opts, err := n.LoadOptions(t.Context(), "getVendors", req)
	require.NoError(t, err)
	assert.Equal(t, []node.Option{{Name: "Alpha", Value: "1"}, {Name: "Zeta", Value: "2"}}, opts)
	r, _ := rec.last()
	assert.Equal(t, "id,Vendor_Name", r.URL.Query().Get("fields"))

	opts, err = n.LoadOptions(t.Context(), "getCustomLeadFields", req)
	require.NoError(t, err)
	assert.Equal(t, []node.Option{{Name: "Score", Value: "Score", Description: "integer"}}, opts)

	opts, err = n.LoadOptions(t.Context(), "getFields", req)
	require.NoError(t, err)
	assert.Len(t, opts, 3)
	assert.Equal(t, "Email", opts[0].Value)

	_, err = n.LoadOptions(t.Context(), "getNothing", req)
	assert.ErrorIs(t, err, node.ErrNoOptions)
}
