package glue

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"
)

// TableLocator reads source tables from the catalog to find the physical
// resources behind them.
type TableLocator struct {
	client   API
	database string
}

func NewTableLocator(client API, database string) *TableLocator {
	return &TableLocator{client: client, database: database}
}

// StreamName returns the Kinesis stream a catalog table is built on.
func (l *TableLocator) StreamName(ctx context.Context, table string) (string, error) {
	t, err := l.table(ctx, table)
	if err != nil {
		return "", err
	}

	params := map[string]string{}
	if t.StorageDescriptor != nil {
		for k, v := range t.StorageDescriptor.Parameters {
			params[k] = v
		}
	}
	for k, v := range t.Parameters {
		params[k] = v
	}

	if name := params["streamName"]; name != "" {
		return name, nil
	}
	if arn := params["streamARN"]; arn != "" {
		if name := resourceName(arn, "stream/"); name != "" {
			return name, nil
		}
	}
	return "", fmt.Errorf("table %s.%s: no streamName or streamARN parameter", l.database, table)
}

// DynamoTable returns the DynamoDB table a catalog table points to. The
// crawler stores the table ARN as the location.
func (l *TableLocator) DynamoTable(ctx context.Context, table string) (string, error) {
	t, err := l.table(ctx, table)
	if err != nil {
		return "", err
	}
	if t.StorageDescriptor == nil || aws.ToString(t.StorageDescriptor.Location) == "" {
		return "", fmt.Errorf("table %s.%s: no location", l.database, table)
	}

	location := aws.ToString(t.StorageDescriptor.Location)
	if name := resourceName(location, "table/"); name != "" {
		return name, nil
	}
	return location, nil
}

func (l *TableLocator) table(ctx context.Context, table string) (*types.Table, error) {
	out, err := l.client.GetTable(ctx, &glue.GetTableInput{
		DatabaseName: aws.String(l.database),
		Name:         aws.String(table),
	})
	if err != nil {
		return nil, fmt.Errorf("get table %s.%s: %w", l.database, table, err)
	}
	if out.Table == nil {
		return nil, fmt.Errorf("get table %s.%s: empty response", l.database, table)
	}
	return out.Table, nil
}

// resourceName extracts <name> from arn:...:<kind><name>.
func resourceName(arn, kind string) string {
	if !strings.HasPrefix(arn, "arn:") {
		return ""
	}
	_, name, ok := strings.Cut(arn, ":"+kind)
	if !ok {
		return ""
	}
	name, _, _ = strings.Cut(name, "/")
	return name
}
