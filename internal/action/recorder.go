package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ruok-relay-go/internal/model"
	"ruok-relay-go/internal/warehouse"
)

// Loader appends newline-delimited JSON records to a warehouse table
type Loader interface {
	BulkLoad(ctx context.Context, table warehouse.TableRef, schema *warehouse.Schema, records [][]byte) error
}

// Recorder appends one activity row per sent outreach
type Recorder struct {
	loader Loader
	table  warehouse.TableRef
}

// NewRecorder creates a recorder writing into the activity table
func NewRecorder(loader Loader, table warehouse.TableRef) *Recorder {
	return &Recorder{loader: loader, table: table}
}

// Record loads the activity row in its own job. Failures are *warehouse.LoadError.
func (r *Recorder) Record(ctx context.Context, record model.ActivityRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return &warehouse.LoadError{Table: r.table.String(), Err: fmt.Errorf("failed to encode activity: %w", err)}
	}

	err = r.loader.BulkLoad(ctx, r.table, warehouse.ActivitySchema(), [][]byte{data})
	if err == nil {
		return nil
	}

	var loadErr *warehouse.LoadError
	if errors.As(err, &loadErr) {
		return err
	}
	return &warehouse.LoadError{Table: r.table.String(), Err: err}
}
