package cfn

import (
	"fmt"
	"strings"
)

// PolicyVersion is the IAM policy language version.
const PolicyVersion = "2012-10-17"

// PolicyDocument is an IAM policy.
type PolicyDocument struct {
	Statements []Statement
}

// Statement grants actions on resources. Resources may be strings or
// intrinsic functions.
type Statement struct {
	Effect    string
	Principal map[string]any
	Actions   []string
	Resources []any
	Condition map[string]any
}

// Allow returns an Allow statement.
func Allow(actions []string, resources ...any) Statement {
	return Statement{Effect: "Allow", Actions: actions, Resources: resources}
}

// Value renders the document in template form.
func (d PolicyDocument) Value() map[string]any {
	statements := make([]any, 0, len(d.Statements))
	for _, s := range d.Statements {
		m := map[string]any{"Effect": s.Effect}
		if s.Principal != nil {
			m["Principal"] = s.Principal
		}
		actions := make([]any, len(s.Actions))
		for i, a := range s.Actions {
			actions[i] = a
		}
		m["Action"] = actions
		if len(s.Resources) > 0 {
			m["Resource"] = append([]any(nil), s.Resources...)
		}
		if s.Condition != nil {
			m["Condition"] = s.Condition
		}
		statements = append(statements, m)
	}
	return map[string]any{"Version": PolicyVersion, "Statement": statements}
}

// ValidateLeastPrivilege rejects statements granting on every resource of a
// service. CloudWatch Logs ARNs are exempt because log group permissions can
// only be expressed as prefix patterns. Trust policies, which name principals
// instead of resources, are not checked.
func (d PolicyDocument) ValidateLeastPrivilege() error {
	for i, s := range d.Statements {
		if s.Principal != nil {
			continue
		}
		if len(s.Resources) == 0 {
			return fmt.Errorf("statement %d grants %v without resources", i, s.Actions)
		}
		for _, a := range s.Actions {
			if a == "*" || strings.HasSuffix(a, ":*") {
				return fmt.Errorf("statement %d grants wildcard action %s", i, a)
			}
		}
		for _, r := range s.Resources {
			text := ResourceText(r)
			if wildcardResource(text) {
				return fmt.Errorf("statement %d grants %v on wildcard resource %s", i, s.Actions, text)
			}
		}
	}
	return nil
}

func wildcardResource(arn string) bool {
	if arn == "*" {
		return true
	}
	arn = subVariable.ReplaceAllStringFunc(arn, func(m string) string {
		return placeholder(m[2 : len(m)-1])
	})
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 6 {
		return false
	}
	service, resource := parts[2], parts[5]
	if service == "logs" {
		return false
	}
	return resource == "*" || strings.HasPrefix(resource, "*")
}

func placeholder(name string) string {
	return "{" + strings.ReplaceAll(name, ":", "") + "}"
}

// ResourceText renders a resource value as text, replacing references with
// {LogicalId} placeholders.
func ResourceText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if name, ok := val["Ref"].(string); ok {
			return placeholder(name)
		}
		if name, ok := firstString(val["Fn::GetAtt"]); ok {
			return placeholder(name)
		}
		if s, ok := val["Fn::Sub"].(string); ok {
			return s
		}
		if args, ok := val["Fn::Join"].([]any); ok && len(args) == 2 {
			sep, _ := args[0].(string)
			parts, _ := args[1].([]any)
			texts := make([]string, len(parts))
			for i, p := range parts {
				texts[i] = ResourceText(p)
			}
			return strings.Join(texts, sep)
		}
	}
	return fmt.Sprint(v)
}
