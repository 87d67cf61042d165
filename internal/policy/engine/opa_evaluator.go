package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"callflow/backend/internal/logging"
	"callflow/backend/internal/policy/repository"
)

const allowQuery = "data.callflow.authz.allow"

// Default Rego policy: owners and admins manage users, members may read them, and the
// engine service account may run nodes for any workflow user.
const defaultRegoPolicy = `package callflow.authz

default allow := false

admin_scopes := {"user:read", "user:list", "user:create", "user:delete", "user:changeRole", "audit:list"}

role_scopes := {
	"global:owner": admin_scopes,
	"global:admin": admin_scopes,
	"global:member": {"user:read"},
	"global:engine": {"node:actAs"},
}

allow if {
	input.scope in role_scopes[input.role]
}
`

// OPAEvaluator decides scopes using OPA Rego. Enabled company policies replace the default policy.
type OPAEvaluator struct {
	policyRepo repository.Repository
}

// NewOPAEvaluator returns an OPA-based scope evaluator. policyRepo may be nil.
func NewOPAEvaluator(policyRepo repository.Repository) *OPAEvaluator {
	return &OPAEvaluator{policyRepo: policyRepo}
}

// HealthCheck verifies that the in-process OPA engine can compile and evaluate the default policy.
// Does not call the policy repo or database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.evaluate(ctx, []string{defaultRegoPolicy}, map[string]interface{}{
		"role":  "global:member",
		"scope": "user:read",
	})
	return err
}

// Allowed reports whether role grants scope. Company policies that fail to load or evaluate
// fall back to the default policy.
func (e *OPAEvaluator) Allowed(ctx context.Context, companyID, role, scope string) (bool, error) {
	input := map[string]interface{}{
		"company_id": companyID,
		"role":       role,
		"scope":      scope,
	}

	var policies []string
	if e.policyRepo != nil && companyID != "" {
		enabled, err := e.policyRepo.GetEnabledPoliciesByCompany(ctx, companyID)
		if err != nil {
			slog.WarnContext(ctx, "policy: failed to load company policies", logging.CompanyID(companyID), logging.Error(err))
		}
		for _, p := range enabled {
			if p.Enabled && p.Rules != "" {
				policies = append(policies, p.Rules)
			}
		}
	}
	if len(policies) > 0 {
		allowed, err := e.evaluate(ctx, policies, input)
		if err == nil {
			return allowed, nil
		}
		slog.WarnContext(ctx, "policy: company policy evaluation failed, using default",
			logging.CompanyID(companyID), logging.Error(err))
	}
	return e.evaluate(ctx, []string{defaultRegoPolicy}, input)
}

func (e *OPAEvaluator) evaluate(ctx context.Context, policies []string, input map[string]interface{}) (bool, error) {
	modules := make(map[string]string, len(policies))
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return false, fmt.Errorf("compile policies: %w", err)
	}
	rs, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
		rego.Input(input),
	).Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("policy query returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy allow is %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}
