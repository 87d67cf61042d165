package zoho

import "fmt"

// RequiredField is a node parameter that must be sent on create and upsert.
type RequiredField struct {
	Param   string
	APIName string
	// Lookup fields are sent as {"id": value}.
	Lookup bool
}

// Resource describes one CRM module as exposed by the node.
type Resource struct {
	Name     string
	Module   string
	Required []RequiredField
	// Products marks modules whose create and upsert need Product_Details.
	Products bool
	// NameField is the record field shown in option lists.
	NameField string
}

// IDParam is the node parameter holding a record id, e.g. "accountId".
func (r Resource) IDParam() string { return r.Name + "Id" }

// Path is the module endpoint, e.g. "/Accounts".
func (r Resource) Path() string { return "/" + r.Module }

// ErrMissingProducts returns the error for a create or upsert without products.
func (r Resource) ErrMissingProducts() error {
	return fmt.Errorf("Please enter at least one product for the %s.", r.Name)
}

// ErrEmptyUpdate returns the error for an update without fields.
func (r Resource) ErrEmptyUpdate() error {
	return fmt.Errorf("Please enter at least one field to update for the %s.", r.Name)
}

var subject = RequiredField{Param: "subject", APIName: "Subject"}

// Resources lists the supported modules by node resource name.
var Resources = map[string]Resource{
	"account": {Name: "account", Module: "Accounts", NameField: "Account_Name",
		Required: []RequiredField{{Param: "accountName", APIName: "Account_Name"}}},
	"contact": {Name: "contact", Module: "Contacts", NameField: "Full_Name",
		Required: []RequiredField{{Param: "lastName", APIName: "Last_Name"}}},
	"deal": {Name: "deal", Module: "Deals", NameField: "Deal_Name",
		Required: []RequiredField{{Param: "dealName", APIName: "Deal_Name"}, {Param: "stage", APIName: "Stage"}}},
	"invoice": {Name: "invoice", Module: "Invoices", NameField: "Subject",
		Required: []RequiredField{subject}, Products: true},
	"lead": {Name: "lead", Module: "Leads", NameField: "Full_Name",
		Required: []RequiredField{{Param: "company", APIName: "Company"}, {Param: "lastName", APIName: "Last_Name"}}},
	"product": {Name: "product", Module: "Products", NameField: "Product_Name",
		Required: []RequiredField{{Param: "productName", APIName: "Product_Name"}}},
	"purchaseOrder": {Name: "purchaseOrder", Module: "Purchase_Orders", NameField: "Subject",
		Required: []RequiredField{subject, {Param: "vendorId", APIName: "Vendor_Name", Lookup: true}}, Products: true},
	"quote": {Name: "quote", Module: "Quotes", NameField: "Subject",
		Required: []RequiredField{subject}, Products: true},
	"salesOrder": {Name: "salesOrder", Module: "Sales_Orders", NameField: "Subject",
		Required: []RequiredField{{Param: "accountId", APIName: "Account_Name", Lookup: true}, subject}, Products: true},
	"vendor": {Name: "vendor", Module: "Vendors", NameField: "Vendor_Name",
		Required: []RequiredField{{Param: "vendorName", APIName: "Vendor_Name"}}},
}

// Picklist names a picklist field of a resource.
type Picklist struct {
	Resource string
	Field    string
}

// Picklists maps load-options methods to picklist fields.
var Picklists = map[string]Picklist{
	"getAccountType":         {Resource: "account", Field: "Account_Type"},
	"getDealStage":           {Resource: "deal", Field: "Stage"},
	"getPurchaseOrderStatus": {Resource: "purchaseOrder", Field: "Status"},
	"getSalesOrderStatus":    {Resource: "salesOrder", Field: "Status"},
	"getQuoteStage":          {Resource: "quote", Field: "Quote_Stage"},
}

// ListFilterOptions are the getAll options forwarded as query parameters.
var ListFilterOptions = []string{"approved", "converted", "include_child", "sort_order", "sort_by", "territory_id"}

// AdjustProductDetails rewrites [{id, quantity, ...}] into [{product: {id}, quantity, ...}].
func AdjustProductDetails(details []any) []any {
	out := make([]any, 0, len(details))
	for _, d := range details {
		m, ok := d.(map[string]any)
		if !ok {
			continue
		}
		adjusted := make(map[string]any, len(m))
		for k, v := range m {
			if k == "id" {
				adjusted["product"] = map[string]any{"id": v}
				continue
			}
			adjusted[k] = v
		}
		out = append(out, adjusted)
	}
	return out
}
