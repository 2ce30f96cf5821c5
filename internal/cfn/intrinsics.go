package cfn

import (
	"regexp"
	"sort"
	"strings"
)

// Pseudo parameters provided by CloudFormation.
const (
	AccountID = "AWS::AccountId"
	Region    = "AWS::Region"
	Partition = "AWS::Partition"
	StackName = "AWS::StackName"
	URLSuffix = "AWS::URLSuffix"
)

var pseudoParameters = map[string]bool{
	AccountID:               true,
	Region:                  true,
	Partition:               true,
	StackName:               true,
	URLSuffix:               true,
	"AWS::StackId":          true,
	"AWS::NoValue":          true,
	"AWS::NotificationARNs": true,
}

// IsPseudoParameter reports whether name is a CloudFormation pseudo parameter.
func IsPseudoParameter(name string) bool {
	return pseudoParameters[name]
}

// Ref returns {"Ref": name}.
func Ref(name string) map[string]any {
	return map[string]any{"Ref": name}
}

// GetAtt returns {"Fn::GetAtt": [resource, attribute]}.
func GetAtt(resource, attribute string) map[string]any {
	return map[string]any{"Fn::GetAtt": []any{resource, attribute}}
}

// Sub returns {"Fn::Sub": text}.
func Sub(text string) map[string]any {
	return map[string]any{"Fn::Sub": text}
}

// Join returns {"Fn::Join": [sep, parts]}.
func Join(sep string, parts ...any) map[string]any {
	return map[string]any{"Fn::Join": []any{sep, parts}}
}

var subVariable = regexp.MustCompile(`\$\{([^}]+)\}`)

// SubVariables returns the logical ids a Fn::Sub string refers to. Literal
// escapes such as ${!Name} are skipped; ${Res.Attr} yields Res.
func SubVariables(text string) []string {
	var out []string
	for _, m := range subVariable.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if strings.HasPrefix(name, "!") {
			continue
		}
		if !IsPseudoParameter(name) {
			if i := strings.Index(name, "."); i >= 0 {
				name = name[:i]
			}
		}
		out = append(out, name)
	}
	return out
}

// References returns the distinct logical ids referenced anywhere inside v,
// excluding pseudo parameters, sorted.
func References(v any) []string {
	seen := map[string]bool{}
	collectReferences(v, seen)

	out := make([]string, 0, len(seen))
	for id := range seen {
		if !IsPseudoParameter(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func collectReferences(v any, seen map[string]bool) {
	switch val := v.(type) {
	case map[string]any:
		for key, inner := range val {
			switch key {
			case "Ref":
				if s, ok := inner.(string); ok {
					seen[s] = true
					continue
				}
			case "Fn::GetAtt":
				if first, ok := firstString(inner); ok {
					seen[first] = true
					continue
				}
			case "Fn::Sub":
				collectSub(inner, seen)
				continue
			}
			collectReferences(inner, seen)
		}
	case []any:
		for _, inner := range val {
			collectReferences(inner, seen)
		}
	case []map[string]any:
		for _, inner := range val {
			collectReferences(inner, seen)
		}
	}
}

func collectSub(v any, seen map[string]bool) {
	switch val := v.(type) {
	case string:
		for _, name := range SubVariables(val) {
			seen[name] = true
		}
	case []any:
		if len(val) == 0 {
			return
		}
		text, _ := val[0].(string)
		local := map[string]any{}
		if len(val) > 1 {
			local, _ = val[1].(map[string]any)
		}
		for _, name := range SubVariables(text) {
			if _, ok := local[name]; !ok {
				seen[name] = true
			}
		}
		for _, inner := range local {
			collectReferences(inner, seen)
		}
	}
}

func firstString(v any) (string, bool) {
	switch val := v.(type) {
	case []any:
		if len(val) > 0 {
			s, ok := val[0].(string)
			return s, ok
		}
	case []string:
		if len(val) > 0 {
			return val[0], true
		}
	case string:
		if i := strings.Index(val, "."); i > 0 {
			return val[:i], true
		}
	}
	return "", false
}
