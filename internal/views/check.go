package views

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	aliasPattern      = regexp.MustCompile(`(?is)^(.*\S)\s+AS\s+"?([A-Za-z_][A-Za-z0-9_]*)"?$`)
	starPattern       = regexp.MustCompile(`^(?:([A-Za-z_][A-Za-z0-9_]*)\.)?\*$`)
	identPattern      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*$`)
	fromSourcePattern = regexp.MustCompile(`(?i)(?:FROM|JOIN)\s+((?:"[^"]+"\.)*"[^"]+")\s+AS\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// Check verifies, before anything is deployed, that each view's SQL is well
// formed, that its projected columns match its declared columns in order,
// that no view reads a view defined after it, and that every dataset's input
// columns match the view it reads. All violations are returned together.
func Check(s *Set, datasets []Dataset) error {
	var result *multierror.Error

	defined := map[string]bool{}
	for _, d := range s.All() {
		for _, dep := range d.DependsOn {
			if !defined[dep] {
				result = multierror.Append(result, fmt.Errorf("view %s: reads %s before it is defined", d.Name, dep))
			}
		}
		defined[d.Name] = true

		if err := checkDefinition(s, d); err != nil {
			result = multierror.Append(result, fmt.Errorf("view %s: %w", d.Name, err))
		}
	}

	for _, ds := range datasets {
		if err := checkDataset(s, ds); err != nil {
			result = multierror.Append(result, fmt.Errorf("dataset %s: %w", ds.Name, err))
		}
	}

	return result.ErrorOrNil()
}

func checkDefinition(s *Set, d Definition) error {
	if !strings.HasPrefix(d.SQL(), "CREATE OR REPLACE VIEW "+d.Name+" AS\n") {
		return errors.New("statement does not create the named view")
	}
	got, err := ProjectedColumns(d.Query, func(table string) ([]string, bool) {
		v, err := s.Get(table)
		if err != nil {
			return nil, false
		}
		return Names(v.Columns), true
	})
	if err != nil {
		return err
	}
	return compareNames(got, Names(d.Columns))
}

func checkDataset(s *Set, ds Dataset) error {
	view, err := s.Get(ds.Table)
	if err != nil {
		return err
	}
	if err := compareNames(Names(ds.Columns), Names(view.Columns)); err != nil {
		return err
	}
	for i, c := range ds.Columns {
		if c.Type != view.Columns[i].Type {
			return fmt.Errorf("column %s declared %s, view projects %s", c.Name, c.Type, view.Columns[i].Type)
		}
	}
	for _, c := range ds.Columns {
		if c.Name == ds.Refresh.Column {
			if c.Type != TypeDatetime {
				return fmt.Errorf("refresh column %s is %s, want %s", c.Name, c.Type, TypeDatetime)
			}
			return nil
		}
	}
	return fmt.Errorf("refresh column %s is not an input column", ds.Refresh.Column)
}

func compareNames(got, want []string) error {
	n := len(got)
	if len(want) < n {
		n = len(want)
	}
	for i := 0; i < n; i++ {
		if got[i] != want[i] {
			return fmt.Errorf("column %d is %s, want %s", i+1, got[i], want[i])
		}
	}
	if len(got) != len(want) {
		return fmt.Errorf("projects %d columns, want %d", len(got), len(want))
	}
	return nil
}

// TableColumns resolves the output columns of a table a query selects from.
type TableColumns func(table string) ([]string, bool)

// ProjectedColumns returns the output column names of a SELECT statement.
// Qualified stars are expanded through resolve using the FROM and JOIN
// aliases of the statement.
func ProjectedColumns(query string, resolve TableColumns) ([]string, error) {
	items, from, err := splitSelect(query)
	if err != nil {
		return nil, err
	}

	aliases := map[string]string{}
	for _, m := range fromSourcePattern.FindAllStringSubmatch(from, -1) {
		aliases[m[2]] = m[1]
	}

	var names []string
	for _, item := range items {
		if m := starPattern.FindStringSubmatch(item); m != nil {
			source, ok := aliases[m[1]]
			if !ok {
				return nil, fmt.Errorf("cannot expand %s: unknown source", item)
			}
			cols, ok := resolve(strings.Trim(source, `"`))
			if !ok {
				return nil, fmt.Errorf("cannot expand %s: columns of %s are unknown", item, source)
			}
			names = append(names, cols...)
			continue
		}
		name, err := outputName(item)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func outputName(item string) (string, error) {
	if m := aliasPattern.FindStringSubmatch(item); m != nil && balanced(m[1]) {
		return m[2], nil
	}
	if identPattern.MatchString(item) {
		parts := strings.Split(item, ".")
		return parts[len(parts)-1], nil
	}
	return "", fmt.Errorf("select item %q has no output name", item)
}

func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	return depth == 0
}

// splitSelect splits the top-level select list of query and returns it with
// the text following the top-level FROM keyword.
func splitSelect(query string) ([]string, string, error) {
	var (
		items     []string
		depth     int
		quote     byte
		listStart = -1
		itemStart int
		fromStart = -1
	)

	for i := 0; i < len(query); i++ {
		c := query[i]
		if quote != 0 {
			if c == quote {
				if i+1 < len(query) && query[i+1] == quote {
					i++
					continue
				}
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"':
			quote = c
			continue
		case '(':
			depth++
			continue
		case ')':
			depth--
			if depth < 0 {
				return nil, "", fmt.Errorf("unbalanced ')' at offset %d", i)
			}
			continue
		}
		if depth != 0 || fromStart >= 0 {
			continue
		}

		if listStart < 0 {
			if keywordAt(query, i, "SELECT") {
				listStart = i + len("SELECT")
				itemStart = listStart
				i = listStart - 1
			}
			continue
		}
		if c == ',' {
			items = append(items, strings.TrimSpace(query[itemStart:i]))
			itemStart = i + 1
			continue
		}
		if keywordAt(query, i, "FROM") {
			items = append(items, strings.TrimSpace(query[itemStart:i]))
			fromStart = i
		}
	}

	switch {
	case quote != 0:
		return nil, "", errors.New("unterminated quoted literal")
	case depth != 0:
		return nil, "", errors.New("unbalanced parentheses")
	case listStart < 0:
		return nil, "", errors.New("no SELECT clause")
	case fromStart < 0:
		return nil, "", errors.New("no FROM clause")
	}
	for _, item := range items {
		if item == "" {
			return nil, "", errors.New("empty select item")
		}
	}
	return items, query[fromStart:], nil
}

func keywordAt(s string, i int, kw string) bool {
	if i+len(kw) > len(s) || !strings.EqualFold(s[i:i+len(kw)], kw) {
		return false
	}
	if i > 0 && isIdentByte(s[i-1]) {
		return false
	}
	end := i + len(kw)
	return end == len(s) || !isIdentByte(s[end])
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
