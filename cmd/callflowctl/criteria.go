package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"callflow/backend/internal/zoho"
)

func newCriteriaCmd() *cobra.Command {
	var (
		filters []string
		types   map[string]string
		raw     string
	)
	cmd := &cobra.Command{
		Use:   "criteria",
		Short: "Build a Zoho search criteria string from filters",
		Long: `Each --filter is field:operator:value. Values for "in" and "between" are
comma-separated. --type sets a field's data type for operator validation; fields
without one are validated as text. --raw is prepended with " and ".

Example:
  callflowctl criteria --filter Lead_Status:in:New,Open --filter Annual_Revenue:between:10,20 \
    --type Lead_Status=picklist --type Annual_Revenue=currency`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := make([]zoho.Filter, 0, len(filters))
			for _, f := range filters {
				pf, err := parseFilter(f)
				if err != nil {
					return err
				}
				parsed = append(parsed, pf)
			}
			built, err := zoho.BuildCriteria(parsed, types)
			if err != nil {
				return err
			}
			criteria := zoho.CombineCriteria(raw, built)
			if criteria == "" {
				return fmt.Errorf("no filters or raw criteria given")
			}
			fmt.Fprintln(cmd.OutOrStdout(), criteria)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Filter as field:operator:value (repeatable)")
	cmd.Flags().StringToStringVar(&types, "type", nil, "Field data type as field=type (repeatable)")
	cmd.Flags().StringVar(&raw, "raw", "", "Raw criteria to combine with the filters")
	return cmd
}

// parseFilter splits field:operator:value. The value may itself contain colons.
func parseFilter(s string) (zoho.Filter, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return zoho.Filter{}, fmt.Errorf("invalid filter %q: want field:operator:value", s)
	}
	f := zoho.Filter{Field: parts[0], Operator: parts[1]}
	if len(parts) == 3 {
		f.Value = parts[2]
	}
	if v, ok := f.Value.(string); ok && (f.Operator == "in" || f.Operator == "between") {
		list := []any{}
		for _, p := range strings.Split(v, ",") {
			list = append(list, strings.TrimSpace(p))
		}
		f.Value = list
	}
	return f, nil
}
