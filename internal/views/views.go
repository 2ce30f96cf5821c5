// Package views defines the Athena views built over the Pinpoint event table
// and the QuickSight dataset descriptors that read them.
//
// Every view projection and every dataset input column list is derived from
// the same column catalog, so the two cannot drift apart.
package views

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/pinpoint-analytics/internal/dag"
	"github.com/leapstack-labs/pinpoint-analytics/pkg/naming"
)

// Category is a partition of the unified event stream.
type Category string

// View categories.
const (
	CategoryAllSend       Category = "all_send"
	CategoryAllSendJoined Category = "all_send_joined"
	CategorySMS           Category = "sms"
	CategorySMSJoined     Category = "sms_joined"
	CategoryEmail         Category = "email"
	CategoryEmailJoined   Category = "email_joined"
	CategoryCampaign      Category = "campaign"
	CategoryJourney       Category = "journey"
	CategoryCustom        Category = "custom"
)

// Joined reports whether the category is enriched with lookup data.
func (c Category) Joined() bool {
	return strings.HasSuffix(string(c), "_joined")
}

// Definition is a single view.
type Definition struct {
	Name        string
	Database    string
	Category    Category
	Description string
	// Columns is the ordered output of the view, including columns
	// inherited from a base view.
	Columns []Column
	// DependsOn lists the views this view selects from.
	DependsOn []string
	// Query is the SELECT statement without the DDL wrapper.
	Query string
}

// SQL returns the statement that creates or replaces the view.
func (d Definition) SQL() string {
	return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS\n%s", d.Name, d.Query)
}

// Params parameterize the view catalog for one deployment.
type Params struct {
	Names *naming.Registry
	// Database is the Glue database holding the event table.
	Database string
	// LookbackMonths is the number of whole months before the current
	// month that base views include.
	LookbackMonths int
	// CampaignJourneyTable and SegmentTable are the DynamoDB lookup table
	// names exposed through the federated catalog. They may be template
	// placeholders resolved at deploy time.
	CampaignJourneyTable string
	SegmentTable         string
}

// Validate checks that the parameters can render a complete set.
func (p Params) Validate() error {
	if p.Names == nil {
		return errors.New("name registry is required")
	}
	if p.Database == "" {
		return errors.New("database is required")
	}
	if p.LookbackMonths <= 0 {
		return errors.New("lookback months must be greater than 0")
	}
	if p.CampaignJourneyTable == "" || p.SegmentTable == "" {
		return errors.New("lookup table names are required")
	}
	return nil
}

// Set is the ordered collection of view definitions.
type Set struct {
	params Params
	defs   []Definition
	byName map[string]int
	graph  *dag.Graph
}

type baseSpec struct {
	category    Category
	name        string
	description string
	columns     []Column
	filter      string
}

// New builds the complete view set. Base views come first; each joined view
// follows every base view it reads.
func New(p Params) (*Set, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := p.Names
	s := &Set{params: p, byName: map[string]int{}, graph: dag.NewGraph()}

	bases := []baseSpec{
		{CategoryAllSend, n.AllSendView(), "Create the all send events view", allSendColumns(), allSendFilter},
		{CategorySMS, n.SMSView(), "Create the all SMS events view", smsColumns(), smsFilter},
		{CategoryEmail, n.EmailView(), "Create the all email events view", emailColumns(), emailFilter},
		{CategoryCampaign, n.CampaignView(), "Create the campaign events view", campaignColumns(), campaignFilter},
		{CategoryJourney, n.JourneyView(), "Create the journey events view", journeyColumns(), journeyFilter},
		{CategoryCustom, n.CustomView(), "Create the custom events view", customColumns(), customFilter},
	}
	for _, b := range bases {
		s.add(Definition{
			Name:        b.name,
			Database:    p.Database,
			Category:    b.category,
			Description: b.description,
			Columns:     b.columns,
			Query:       baseSelect(b.columns, p.Database, p.LookbackMonths, b.filter),
		})
	}

	campaignRef := QualifiedName(n.DynamoCatalog(), naming.DynamoSchema, p.CampaignJourneyTable)
	segmentRef := QualifiedName(n.DynamoCatalog(), naming.DynamoSchema, p.SegmentTable)
	joined := []struct {
		category Category
		name     string
		base     string
		label    string
	}{
		{CategoryAllSendJoined, n.AllSendJoinedView(), n.AllSendView(), "all send"},
		{CategorySMSJoined, n.SMSJoinedView(), n.SMSView(), "SMS"},
		{CategoryEmailJoined, n.EmailJoinedView(), n.EmailView(), "email"},
	}
	for _, j := range joined {
		base, err := s.Get(j.base)
		if err != nil {
			return nil, err
		}
		s.add(Definition{
			Name:        j.name,
			Database:    p.Database,
			Category:    j.category,
			Description: fmt.Sprintf("Create the %s events view joined with campaign and journey data", j.label),
			Columns:     concat(base.Columns, lookupColumns()),
			DependsOn:   []string{j.base},
			Query:       JoinedSelect(j.base, campaignRef, segmentRef),
		})
		if err := s.graph.AddEdge(j.base, j.name); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Set) add(d Definition) {
	s.byName[d.Name] = len(s.defs)
	s.defs = append(s.defs, d)
	s.graph.AddNode(d.Name, d.Category)
}

// All returns the definitions in creation order.
func (s *Set) All() []Definition {
	out := make([]Definition, len(s.defs))
	copy(out, s.defs)
	return out
}

// Get returns the definition named name.
func (s *Set) Get(name string) (Definition, error) {
	i, ok := s.byName[name]
	if !ok {
		return Definition{}, fmt.Errorf("view %q is not defined", name)
	}
	return s.defs[i], nil
}

// ByCategory returns the definition for a category.
func (s *Set) ByCategory(c Category) (Definition, bool) {
	for _, d := range s.defs {
		if d.Category == c {
			return d, true
		}
	}
	return Definition{}, false
}

// Levels groups view names into materialization waves. Every view in wave N
// only reads views from earlier waves.
func (s *Set) Levels() ([][]string, error) {
	return s.graph.ExecutionLevels()
}

// Params returns the parameters the set was built with.
func (s *Set) Params() Params { return s.params }

// QualifiedName quotes and joins a catalog.schema.table reference.
func QualifiedName(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = `"` + p + `"`
	}
	return strings.Join(quoted, ".")
}
