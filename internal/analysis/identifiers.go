package analysis

import "sort"

// IdentifierReport lists mismatches between declared dataset identifiers
// and the identifiers referenced by visuals, filters and fields.
type IdentifierReport struct {
	Undeclared []string
	Unused     []string
}

// Empty reports whether the document and its declarations agree.
func (r IdentifierReport) Empty() bool {
	return len(r.Undeclared) == 0 && len(r.Unused) == 0
}

// DanglingIdentifiers compares every dataSetIdentifier reference in the
// definition with decls.
func (d *Document) DanglingIdentifiers(decls []Declaration) IdentifierReport {
	referenced := map[string]bool{}
	for key, v := range d.definition() {
		if key == keyDeclarations {
			continue
		}
		collectIdentifiers(v, referenced)
	}

	declared := map[string]bool{}
	for _, decl := range decls {
		declared[decl.Identifier] = true
	}

	var report IdentifierReport
	for id := range referenced {
		if !declared[id] {
			report.Undeclared = append(report.Undeclared, id)
		}
	}
	for id := range declared {
		if !referenced[id] {
			report.Unused = append(report.Unused, id)
		}
	}
	sort.Strings(report.Undeclared)
	sort.Strings(report.Unused)
	return report
}

func collectIdentifiers(v any, out map[string]bool) {
	switch val := v.(type) {
	case map[string]any:
		for k, inner := range val {
			if k == keyDataSetRef {
				if s, ok := inner.(string); ok {
					out[s] = true
					continue
				}
			}
			collectIdentifiers(inner, out)
		}
	case []any:
		for _, inner := range val {
			collectIdentifiers(inner, out)
		}
	}
}
