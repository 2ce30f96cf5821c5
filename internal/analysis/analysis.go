// Package analysis adapts an exported QuickSight analysis definition for
// redeployment against freshly created datasets.
package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/text/encoding/charmap"
)

// ErrMissingDefinition is returned when a document has no definition object.
var ErrMissingDefinition = errors.New("analysis document has no definition")

// Keys of the normalized document.
const (
	keyDefinition   = "definition"
	keyParameters   = "parameters"
	keyDeclarations = "dataSetIdentifierDeclarations"
	keyIdentifier   = "identifier"
	keyDataSetArn   = "dataSetArn"
	keyDataSetRef   = "dataSetIdentifier"
)

// definitionKeys are the definition members carried into the deployed
// analysis, in emission order.
var definitionKeys = []string{
	"calculatedFields",
	"columnConfigurations",
	"filterGroups",
	"parameterDeclarations",
	"sheets",
}

// Document is an analysis definition with camel-cased keys.
type Document struct {
	root      map[string]any
	originals map[string]string
}

// Load reads a latin1 encoded analysis document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis template: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes latin1 JSON and normalizes its keys.
func Parse(data []byte) (*Document, error) {
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode latin1: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse analysis template: %w", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("analysis template is %T, want an object", raw)
	}

	originals := map[string]string{}
	root := NormalizeKeys(obj, originals).(map[string]any)
	if _, ok := root[keyDefinition].(map[string]any); !ok {
		return nil, ErrMissingDefinition
	}
	return &Document{root: root, originals: originals}, nil
}

func (d *Document) definition() map[string]any {
	def, _ := d.root[keyDefinition].(map[string]any)
	return def
}

// Identifiers returns the identifiers declared by the document, by position.
// Entries without an identifier yield an empty string.
func (d *Document) Identifiers() []string {
	decls, _ := d.definition()[keyDeclarations].([]any)
	out := make([]string, len(decls))
	for i, decl := range decls {
		if m, ok := decl.(map[string]any); ok {
			out[i], _ = m[keyIdentifier].(string)
		}
	}
	return out
}

// Binding attaches a dataset to a declaration position. An empty Identifier
// keeps the identifier already present in the document at that position.
type Binding struct {
	Identifier string
	DataSetArn any
}

// Declaration is a resolved dataset identifier declaration.
type Declaration struct {
	Identifier string
	DataSetArn any
}

// Bind resolves one declaration per binding, positionally.
func (d *Document) Bind(bindings []Binding) ([]Declaration, error) {
	existing := d.Identifiers()
	decls := make([]Declaration, len(bindings))
	for i, b := range bindings {
		id := b.Identifier
		if id == "" && i < len(existing) {
			id = existing[i]
		}
		if id == "" {
			return nil, fmt.Errorf("no dataset identifier at position %d", i)
		}
		decls[i] = Declaration{Identifier: id, DataSetArn: b.DataSetArn}
	}
	return decls, nil
}

// Definition returns the analysis definition with decls as its dataset
// identifier declarations, using camel-cased keys.
func (d *Document) Definition(decls []Declaration) map[string]any {
	src := d.definition()
	out := map[string]any{}
	for _, key := range definitionKeys {
		if v, ok := src[key]; ok && v != nil {
			out[key] = v
		}
	}

	list := make([]any, len(decls))
	for i, decl := range decls {
		list[i] = map[string]any{keyIdentifier: decl.Identifier, keyDataSetArn: decl.DataSetArn}
	}
	out[keyDeclarations] = list
	return out
}

// Parameters returns the document's sibling parameters object, or nil.
func (d *Document) Parameters() map[string]any {
	p, _ := d.root[keyParameters].(map[string]any)
	return p
}

// Properties returns the definition and parameters in CloudFormation's
// property casing. Dataset ARNs are inserted after the key conversion so
// intrinsic functions pass through untouched.
func (d *Document) Properties(decls []Declaration) (definition, parameters map[string]any) {
	def := d.Definition(nil)
	delete(def, keyDeclarations)
	definition = PascalKeys(def, d.originals).(map[string]any)

	list := make([]any, len(decls))
	for i, decl := range decls {
		list[i] = map[string]any{"Identifier": decl.Identifier, "DataSetArn": decl.DataSetArn}
	}
	definition["DataSetIdentifierDeclarations"] = list

	if p := d.Parameters(); p != nil {
		parameters = PascalKeys(p, d.originals).(map[string]any)
	}
	return definition, parameters
}
