package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_GeneratedSetIsConsistent(t *testing.T) {
	s := testSet(t)
	datasets, err := s.Datasets()
	require.NoError(t, err)

	assert.NoError(t, Check(s, datasets))
}

func TestCheck_ProjectionMatchesDeclaredColumns(t *testing.T) {
	s := testSet(t)
	resolve := func(table string) ([]string, bool) {
		v, err := s.Get(table)
		if err != nil {
			return nil, false
		}
		return Names(v.Columns), true
	}

	for _, d := range s.All() {
		t.Run(d.Name, func(t *testing.T) {
			got, err := ProjectedColumns(d.Query, resolve)
			require.NoError(t, err)
			assert.Equal(t, Names(d.Columns), got)
		})
	}
}

func TestCheck_DatasetDrift(t *testing.T) {
	s := testSet(t)

	tests := []struct {
		name   string
		mutate func(ds *Dataset)
		errMsg string
	}{
		{
			name: "swapped order",
			mutate: func(ds *Dataset) {
				ds.Columns[0], ds.Columns[1] = ds.Columns[1], ds.Columns[0]
			},
			errMsg: "column 1 is event_timestamp, want event_type",
		},
		{
			name:   "missing column",
			mutate: func(ds *Dataset) { ds.Columns = ds.Columns[:len(ds.Columns)-1] },
			errMsg: "want",
		},
		{
			name:   "wrong type",
			mutate: func(ds *Dataset) { ds.Columns[1].Type = TypeString },
			errMsg: "declared STRING",
		},
		{
			name:   "unknown refresh column",
			mutate: func(ds *Dataset) { ds.Refresh.Column = "nope" },
			errMsg: "refresh column nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			datasets, err := s.Datasets()
			require.NoError(t, err)
			tt.mutate(&datasets[1])

			err = Check(s, datasets)
			require.Error(t, err)
			assert.Contains(t, err.Error(), datasets[1].Name)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProjectedColumns(t *testing.T) {
	noTables := func(string) ([]string, bool) { return nil, false }

	tests := []struct {
		name    string
		query   string
		want    []string
		errMsg  string
		resolve TableColumns
	}{
		{
			name:  "aliases and bare columns",
			query: "SELECT a, t.b, f(x, y) AS c, CAST(z AS BIGINT) AS d FROM t",
			want:  []string{"a", "b", "c", "d"},
		},
		{
			name:  "commas inside literals",
			query: "SELECT 'a,b' AS s, json_extract_scalar(j, '$.A') AS v FROM t",
			want:  []string{"s", "v"},
		},
		{
			name:  "star expansion",
			query: `SELECT e.*, l.name AS n FROM "base" AS e LEFT JOIN "c"."s"."t" AS l ON e.id = l.id`,
			resolve: func(table string) ([]string, bool) {
				if table == "base" {
					return []string{"id", "x"}, true
				}
				return nil, false
			},
			want: []string{"id", "x", "n"},
		},
		{
			name:   "unknown star source",
			query:  `SELECT q.* FROM "base" AS e`,
			errMsg: "unknown source",
		},
		{
			name:   "unbalanced parentheses",
			query:  "SELECT f(a AS b FROM t",
			errMsg: "unbalanced",
		},
		{
			name:   "unterminated literal",
			query:  "SELECT 'abc AS b FROM t",
			errMsg: "unterminated",
		},
		{
			name:   "no from",
			query:  "SELECT a",
			errMsg: "no FROM",
		},
		{
			name:   "empty item",
			query:  "SELECT a, , b FROM t",
			errMsg: "empty select item",
		},
		{
			name:   "expression without alias",
			query:  "SELECT a + b FROM t",
			errMsg: "no output name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolve := tt.resolve
			if resolve == nil {
				resolve = noTables
			}
			got, err := ProjectedColumns(tt.query, resolve)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
