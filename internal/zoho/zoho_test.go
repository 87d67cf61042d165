package zoho_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	companydomain "callflow/backend/internal/company/domain"
	"callflow/backend/internal/zoho"
)

func staticClient(srv *httptest.Server) *zoho.Client {
	return zoho.NewClient(srv.URL, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}), nil)
}

func TestBuildCriteria(t *testing.T) {
	types := map[string]string{"Created_Time": "datetime", "Annual_Revenue": "currency", "Lead_Status": "picklist"}
	tests := []struct {
		name    string
		filters []zoho.Filter
		want    string
	}{
		{"single", []zoho.Filter{{Field: "Email", Operator: "equals", Value: "a@b.co"}}, "(Email:equals:a@b.co)"},
		{"not equals mapped", []zoho.Filter{{Field: "City", Operator: "not_equals", Value: "Pune"}}, "(City:not_equal:Pune)"},
		{"in list", []zoho.Filter{{Field: "Lead_Status", Operator: "in", Value: []any{"New", "Hot"}}}, "(Lead_Status:in:New,Hot)"},
		{"between", []zoho.Filter{{Field: "Annual_Revenue", Operator: "between", Value: []any{float64(10), float64(20)}}}, "(Annual_Revenue:between:10,20)"},
		{"joined", []zoho.Filter{
			{Field: "City", Operator: "starts_with", Value: "Pu"},
			{Field: "Created_Time", Operator: "greater_than", Value: "2024-01-01T00:00:00+00:00"},
		}, "(City:starts_with:Pu)and(Created_Time:greater_than:2024-01-01T00:00:00+00:00)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := zoho.BuildCriteria(tt.filters, types)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildCriteria_Numbers(t *testing.T) {
	types := map[string]string{"Annual_Revenue": "currency", "No_of_Employees": "integer"}
	tests := []struct {
		name   string
		filter zoho.Filter
		want   string
	}{
		{"large", zoho.Filter{Field: "Annual_Revenue", Operator: "greater_than", Value: 1000000.0}, "(Annual_Revenue:greater_than:1000000)"},
		{"very large", zoho.Filter{Field: "Annual_Revenue", Operator: "less_than", Value: 25000000000.0}, "(Annual_Revenue:less_than:25000000000)"},
		{"fractional", zoho.Filter{Field: "Annual_Revenue", Operator: "equals", Value: 1234.56}, "(Annual_Revenue:equals:1234.56)"},
		{"small fraction", zoho.Filter{Field: "Annual_Revenue", Operator: "equals", Value: 0.0001}, "(Annual_Revenue:equals:0.0001)"},
		{"int", zoho.Filter{Field: "No_of_Employees", Operator: "equals", Value: 2000000}, "(No_of_Employees:equals:2000000)"},
		{"in list", zoho.Filter{Field: "No_of_Employees", Operator: "in", Value: []any{1000000.0, 2.5}}, "(No_of_Employees:in:1000000,2.5)"},
		{"between", zoho.Filter{Field: "Annual_Revenue", Operator: "between", Value: []any{1500000.0, 3000000.0}}, "(Annual_Revenue:between:1500000,3000000)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := zoho.BuildCriteria([]zoho.Filter{tt.filter}, types)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "1000000", zoho.FormatValue(1000000.0))
	assert.Equal(t, "-42.5", zoho.FormatValue(-42.5))
	assert.Equal(t, "0.5", zoho.FormatValue(float32(0.5)))
	assert.Equal(t, "true", zoho.FormatValue(true))
	assert.Equal(t, "Pune", zoho.FormatValue("Pune"))
	assert.Empty(t, zoho.FormatValue(nil))
}

func TestBuildCriteria_Errors(t *testing.T) {
	_, err := zoho.BuildCriteria([]zoho.Filter{{Field: "City", Operator: "contains", Value: "x"}}, nil)
	assert.EqualError(t, err, "Operator 'contains' is not supported by Zoho Search API.")

	_, err = zoho.BuildCriteria([]zoho.Filter{{Field: "City", Operator: "bogus", Value: "x"}}, nil)
	assert.EqualError(t, err, "Operator 'bogus' is not supported by Zoho Search API.")

	_, err = zoho.BuildCriteria([]zoho.Filter{{Field: "City", Operator: "greater_than", Value: "x"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "of type 'text'")
	assert.Contains(t, err.Error(), "'text' was assumed")

	_, err = zoho.BuildCriteria([]zoho.Filter{{Field: "Lead_Status", Operator: "starts_with", Value: "N"}}, map[string]string{"Lead_Status": "picklist"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "assumed")
}

func TestCombineCriteria(t *testing.T) {
	assert.Equal(t, "(a:equals:1) and (b:equals:2)", zoho.CombineCriteria(" (a:equals:1) ", "(b:equals:2)"))
	assert.Equal(t, "(a:equals:1)", zoho.CombineCriteria("(a:equals:1)", ""))
	assert.Equal(t, "(b:equals:2)", zoho.CombineCriteria("", "(b:equals:2)"))
	assert.Empty(t, zoho.CombineCriteria("", ""))
}

func TestAdjustProductDetails(t *testing.T) {
	got := zoho.AdjustProductDetails([]any{
		map[string]any{"id": "p1", "quantity": float64(2)},
		"junk",
	})
	assert.Equal(t, []any{map[string]any{"product": map[string]any{"id": "p1"}, "quantity": float64(2)}}, got)
}

func TestResources(t *testing.T) {
	r := zoho.Resources["purchaseOrder"]
	assert.Equal(t, "/Purchase_Orders", r.Path())
	assert.Equal(t, "purchaseOrderId", r.IDParam())
	assert.True(t, r.Products)
	assert.EqualError(t, r.ErrMissingProducts(), "Please enter at least one product for the purchaseOrder.")
	assert.EqualError(t, zoho.Resources["deal"].ErrEmptyUpdate(), "Please enter at least one field to update for the deal.")
	assert.Len(t, zoho.Resources, 10)
}

func TestClient_DoWrapsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Zoho-oauthtoken tok", r.Header.Get("Authorization"))
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Accounts", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"data": []any{map[string]any{"Account_Name": "Acme"}}}, body)
		_, _ = io.WriteString(w, `{"data":[{"code":"SUCCESS","details":{"id":"42"},"status":"success"}]}`)
	}))
	defer srv.Close()

	res, err := staticClient(srv).Do(t.Context(), http.MethodPost, "/Accounts", map[string]any{"Account_Name": "Acme"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "42", res.Get("data.0.details.id").String())
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bad":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"code":"INVALID_QUERY","message":"invalid criteria","status":"error"}`)
		case "/record":
			_, _ = io.WriteString(w, `{"data":[{"code":"MANDATORY_NOT_FOUND","message":"required field not found","status":"error"}]}`)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()
	c := staticClient(srv)

	_, err := c.Do(t.Context(), http.MethodGet, "/bad", nil, nil)
	var apiErr *zoho.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "INVALID_QUERY", apiErr.Code)

	_, err = c.Do(t.Context(), http.MethodPost, "/record", map[string]any{}, nil)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "required field not found", apiErr.Message)

	res, err := c.Do(t.Context(), http.MethodGet, "/Leads/search", nil, nil)
	require.NoError(t, err)
	assert.False(t, res.Exists())
}

func TestClient_ListAllPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "200", r.URL.Query().Get("per_page"))
		assert.Equal(t, "Email", r.URL.Query().Get("fields"))
		if r.URL.Query().Get("page") == "1" {
			_, _ = io.WriteString(w, `{"data":[{"id":"1"},{"id":"2"}],"info":{"more_records":true}}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":[{"id":"3"}],"info":{"more_records":false}}`)
	}))
	defer srv.Close()
	c := staticClient(srv)

	all, err := c.ListAll(t.Context(), "/Leads", url.Values{"fields": {"Email"}}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "3", all[2]["id"])
}

func TestClient_ListAllLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		_, _ = io.WriteString(w, `{"data":[{"id":"1"},{"id":"2"}],"info":{"more_records":true}}`)
	}))
	defer srv.Close()

	got, err := staticClient(srv).ListAll(t.Context(), "/Leads", nil, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Fields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Leads", r.URL.Query().Get("module"))
		_, _ = io.WriteString(w, `{"fields":[
			{"api_name":"Email","display_label":"Email","data_type":"email"},
			{"api_name":"Lead_Status","field_label":"Lead Status","data_type":"picklist","custom_field":true,
			 "pick_list_values":[{"display_value":"New","actual_value":"new"}]}]}`)
	}))
	defer srv.Close()

	fields, err := staticClient(srv).Fields(t.Context(), "Leads")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "Lead Status", fields[1].Label)
	assert.True(t, fields[1].Custom)
	assert.Equal(t, []zoho.PicklistValue{{DisplayValue: "New", ActualValue: "new"}}, fields[1].Picklist)
	assert.Equal(t, map[string]string{"Email": "email", "Lead_Status": "picklist"}, zoho.FieldTypes(fields))
}

func TestProvider_RefreshesCompanyToken(t *testing.T) {
	var refreshes atomic.Int32
	accounts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/v2/token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client", r.PostForm.Get("client_id"))
		refreshes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"acc-1","token_type":"Bearer","expires_in":3600}`)
	}))
	defer accounts.Close()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Zoho-oauthtoken acc-1", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer api.Close()

	p := &zoho.Provider{
		BaseURL: api.URL,
		Tokens:  zoho.NewTokenSources(zoho.OAuthConfig{ClientID: "client", ClientSecret: "secret", AccountsURL: accounts.URL}, nil),
	}
	company := &companydomain.Company{ID: "co-1", ZohoRefreshToken: "rt-1"}
	for range 2 {
		c, err := p.Client(company)
		require.NoError(t, err)
		_, err = c.Do(t.Context(), http.MethodGet, "/Leads", nil, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), refreshes.Load())

	_, err := p.Client(&companydomain.Company{ID: "co-2"})
	assert.ErrorIs(t, err, companydomain.ErrZohoNotConnected)
}
