package views

import (
	"fmt"

	"github.com/leapstack-labs/pinpoint-analytics/pkg/naming"
)

// Incremental refresh window applied to every dataset.
const (
	RefreshColumn = "event_timestamp"
	RefreshSize   = 7
	RefreshUnit   = "DAY"
)

// RefreshWindow is the lookback used by incremental SPICE refreshes.
type RefreshWindow struct {
	Column string
	Size   int
	Unit   string
}

// Dataset describes a dashboard dataset reading one joined view.
type Dataset struct {
	// Key is the logical dataset key in the name registry.
	Key string
	// Identifier is the symbolic name analysis documents use for the dataset.
	Identifier string
	Name       string
	Table      string
	Catalog    string
	Schema     string
	Columns    []Column
	Refresh    RefreshWindow
}

type datasetSpec struct {
	key        string
	identifier string
	category   Category
}

// datasetSpecs are ordered as the analysis document binds them: aggregate
// send, email, SMS.
var datasetSpecs = []datasetSpec{
	{naming.KeyAllSendDataset, "all_send_events", CategoryAllSendJoined},
	{naming.KeyEmailDataset, "email_all_events", CategoryEmailJoined},
	{naming.KeySMSDataset, "sms_all_events", CategorySMSJoined},
}

// Datasets returns the three dataset descriptors, in binding order. Input
// columns are copied from the joined view each dataset reads.
func (s *Set) Datasets() ([]Dataset, error) {
	out := make([]Dataset, 0, len(datasetSpecs))
	for _, spec := range datasetSpecs {
		view, ok := s.ByCategory(spec.category)
		if !ok {
			return nil, fmt.Errorf("no view for dataset %s", spec.key)
		}
		cols := make([]Column, len(view.Columns))
		copy(cols, view.Columns)
		out = append(out, Dataset{
			Key:        spec.key,
			Identifier: spec.identifier,
			Name:       s.params.Names.Name(spec.key),
			Table:      view.Name,
			Catalog:    naming.GlueCatalog,
			Schema:     view.Database,
			Columns:    cols,
			Refresh:    RefreshWindow{Column: RefreshColumn, Size: RefreshSize, Unit: RefreshUnit},
		})
	}
	return out, nil
}
