package materialize

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/cfn"
)

// PropertyPhysicalResourceID is the custom resource property carrying the
// physical id the handler reports back to CloudFormation.
const PropertyPhysicalResourceID = "PhysicalResourceId"

// CustomResource answers the CloudFormation custom resource that triggers
// view creation. Create and Update run every wave; Delete leaves the views
// in place.
type CustomResource struct {
	log    *slog.Logger
	m      *Materializer
	levels string
}

// NewCustomResource returns a handler running the encoded levels (see
// FormatLevels) with m. Levels are parsed per request so a bad value is
// reported to CloudFormation instead of failing the function at init.
func NewCustomResource(m *Materializer, levels string) *CustomResource {
	return &CustomResource{log: m.log, m: m, levels: levels}
}

// Handle implements cfn.CustomResourceFunction.
func (c *CustomResource) Handle(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	physicalID := event.PhysicalResourceID
	if id, ok := event.ResourceProperties[PropertyPhysicalResourceID].(string); ok && id != "" {
		physicalID = id
	}
	if physicalID == "" {
		physicalID = event.LogicalResourceID
	}

	log := c.log.With(
		slog.String("request_type", string(event.RequestType)),
		slog.String("physical_id", physicalID))

	switch event.RequestType {
	case cfn.RequestCreate, cfn.RequestUpdate:
	case cfn.RequestDelete:
		log.Info("nothing to delete")
		return physicalID, nil, nil
	default:
		return physicalID, nil, fmt.Errorf("unsupported request type %q", event.RequestType)
	}

	levels, err := ParseLevels(c.levels)
	if err != nil {
		return physicalID, nil, err
	}
	log.Info("materializing views", slog.Int("waves", len(levels)))

	results, err := c.m.Run(ctx, levels)
	if err != nil {
		return physicalID, nil, err
	}
	return physicalID, map[string]interface{}{"Views": len(results)}, nil
}
