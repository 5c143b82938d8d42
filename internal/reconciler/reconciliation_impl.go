package reconciler

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"

	"sales-reconciliation-service/internal/aggregator"
	"sales-reconciliation-service/internal/models"
	"sales-reconciliation-service/pkg/errors"
	"sales-reconciliation-service/pkg/logger"
)

// maxListedIDs bounds how many dropped ids a warning spells out.
const maxListedIDs = 5

// aggregateAll aggregates the three reports concurrently. Each goroutine
// reads its own table and writes only its own slot. A panic in any of them
// is returned as an aggregation failure.
func (s *Service) aggregateAll(
	ctx context.Context,
	req *Request,
	progress *logger.ProgressTracker,
) (map[models.Source]*aggregator.Result, error) {
	sources := models.Sources()
	results := make([]*aggregator.Result, len(sources))
	errs := make([]error, len(sources))

	var wg conc.WaitGroup
	for i, source := range sources {
		wg.Go(func() {
			if err := checkContext(ctx, "aggregation of the "+source.Label()+" report"); err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = s.aggregator.AggregateSchema(req.table(source), s.config.Schemas.For(source))
			if errs[i] == nil {
				progress.Step("aggregate " + string(source))
			}
		})
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		err := errors.ReconciliationError(errors.CodeAggregationFailed, "aggregation", recovered.AsError())
		s.logger.WithError(err).Error("Aggregation panicked")
		return nil, err
	}

	// Errors are combined in source order so messages are stable.
	if err := multierr.Combine(errs...); err != nil {
		s.logger.WithError(err).Error("Aggregation failed")
		return nil, err
	}

	aggregates := make(map[models.Source]*aggregator.Result, len(sources))
	for i, source := range sources {
		aggregates[source] = results[i]
	}
	return aggregates, nil
}

// droppedOrderIDs lists, per non-shipment source, the ids a
// shipment-anchored join leaves out.
func droppedOrderIDs(aggregates map[models.Source]*aggregator.Result) map[models.Source][]string {
	shipped := make(map[string]bool)
	for _, id := range aggregates[models.SourceShipment].OrderIDs() {
		shipped[id] = true
	}

	dropped := make(map[models.Source][]string)
	for _, source := range []models.Source{models.SourceReturns, models.SourcePayment} {
		for _, id := range aggregates[source].OrderIDs() {
			if !shipped[id] {
				dropped[source] = append(dropped[source], id)
			}
		}
	}
	if len(dropped) == 0 {
		return nil
	}
	return dropped
}

func (s *Service) collectWarnings(result *Result) []string {
	var warnings []string
	for _, source := range models.Sources() {
		stats := result.SourceStats[source]
		if stats.CoercedCells > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"%s report: %d non-numeric value(s) were counted as zero", source.Label(), stats.CoercedCells))
		}
		if stats.RowsSkipped > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"%s report: %d row(s) without an order id were ignored", source.Label(), stats.RowsSkipped))
		}
	}

	for _, source := range []models.Source{models.SourceReturns, models.SourcePayment} {
		ids := result.DroppedOrderIDs[source]
		if len(ids) == 0 {
			continue
		}
		listed := ids
		suffix := ""
		if len(listed) > maxListedIDs {
			listed = listed[:maxListedIDs]
			suffix = fmt.Sprintf(" and %d more", len(ids)-maxListedIDs)
		}
		warnings = append(warnings, fmt.Sprintf(
			"%s report: %d order id(s) not in the shipment report were left out: %s%s",
			source.Label(), len(ids), strings.Join(listed, ", "), suffix))
	}

	for _, warning := range warnings {
		s.logger.WithField("run_id", result.RunID).Warn(warning)
	}
	return warnings
}
