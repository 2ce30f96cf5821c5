// Package cfn models the CloudFormation template the provisioning graph is
// emitted as.
package cfn

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// FormatVersion is the only template format version CloudFormation accepts.
const FormatVersion = "2010-09-09"

// ServerlessTransform enables AWS::Serverless resource types.
const ServerlessTransform = "AWS::Serverless-2016-10-31"

// MaxBodySize is the largest template body accepted inline by CreateStack
// and UpdateStack. Larger templates must be uploaded to S3.
const MaxBodySize = 51200

// ErrUnresolvedReference is returned when a template refers to a logical id
// that is neither a resource, a parameter nor a pseudo parameter.
var ErrUnresolvedReference = errors.New("unresolved reference")

// Template is a CloudFormation template.
type Template struct {
	AWSTemplateFormatVersion string               `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description              string               `json:"Description,omitempty" yaml:"Description,omitempty"`
	Transform                []string             `json:"Transform,omitempty" yaml:"Transform,omitempty"`
	Parameters               map[string]Parameter `json:"Parameters,omitempty" yaml:"Parameters,omitempty"`
	Resources                map[string]*Resource `json:"Resources" yaml:"Resources"`
	Outputs                  map[string]Output    `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
}

// Parameter is a template input.
type Parameter struct {
	Type        string `json:"Type" yaml:"Type"`
	Default     string `json:"Default,omitempty" yaml:"Default,omitempty"`
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
}

// Resource is a single resource declaration.
type Resource struct {
	Type       string         `json:"Type" yaml:"Type"`
	Properties map[string]any `json:"Properties,omitempty" yaml:"Properties,omitempty"`
	DependsOn  []string       `json:"DependsOn,omitempty" yaml:"DependsOn,omitempty"`
}

// Output is a stack output.
type Output struct {
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
	Value       any    `json:"Value" yaml:"Value"`
}

// New returns an empty template.
func New(description string) *Template {
	return &Template{
		AWSTemplateFormatVersion: FormatVersion,
		Description:              description,
		Resources:                map[string]*Resource{},
	}
}

// AddResource declares a resource under a logical id.
func (t *Template) AddResource(id string, r *Resource) error {
	if _, exists := t.Resources[id]; exists {
		return fmt.Errorf("resource %s is already declared", id)
	}
	t.Resources[id] = r
	return nil
}

// AddOutput declares a stack output.
func (t *Template) AddOutput(id string, o Output) {
	if t.Outputs == nil {
		t.Outputs = map[string]Output{}
	}
	t.Outputs[id] = o
}

// ResourceIDs returns the logical ids of all resources, sorted.
func (t *Template) ResourceIDs() []string {
	ids := make([]string, 0, len(t.Resources))
	for id := range t.Resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks that every reference and every DependsOn entry names a
// declared resource, a parameter or a pseudo parameter.
func (t *Template) Validate() error {
	known := func(id string) bool {
		if _, ok := t.Resources[id]; ok {
			return true
		}
		if _, ok := t.Parameters[id]; ok {
			return true
		}
		return IsPseudoParameter(id)
	}

	for _, id := range t.ResourceIDs() {
		r := t.Resources[id]
		if r.Type == "" {
			return fmt.Errorf("resource %s has no type", id)
		}
		for _, ref := range References(r.Properties) {
			if !known(ref) {
				return fmt.Errorf("resource %s: %w: %s", id, ErrUnresolvedReference, ref)
			}
		}
		for _, dep := range r.DependsOn {
			if _, ok := t.Resources[dep]; !ok {
				return fmt.Errorf("resource %s: %w: depends on %s", id, ErrUnresolvedReference, dep)
			}
		}
	}

	outputs := make([]string, 0, len(t.Outputs))
	for id := range t.Outputs {
		outputs = append(outputs, id)
	}
	sort.Strings(outputs)
	for _, id := range outputs {
		for _, ref := range References(t.Outputs[id].Value) {
			if !known(ref) {
				return fmt.Errorf("output %s: %w: %s", id, ErrUnresolvedReference, ref)
			}
		}
	}
	return nil
}

// JSON renders the template as indented JSON.
func (t *Template) JSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// YAML renders the template as YAML. Numbers decoded as json.Number are
// written as YAML numbers rather than quoted strings.
func (t *Template) YAML() ([]byte, error) {
	out := *t
	out.Resources = make(map[string]*Resource, len(t.Resources))
	for id, r := range t.Resources {
		rc := *r
		if r.Properties != nil {
			rc.Properties = plainNumbers(r.Properties).(map[string]any)
		}
		out.Resources[id] = &rc
	}
	if t.Outputs != nil {
		out.Outputs = make(map[string]Output, len(t.Outputs))
		for id, o := range t.Outputs {
			o.Value = plainNumbers(o.Value)
			out.Outputs[id] = o
		}
	}
	return yaml.Marshal(&out)
}

// plainNumbers returns a copy of v with every json.Number replaced by an
// int64, or a float64 when it has a fraction or exponent.
func plainNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = plainNumbers(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = plainNumbers(inner)
		}
		return out
	}
	return v
}
