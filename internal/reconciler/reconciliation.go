// Package reconciler turns three seller reports into a per-order ledger of
// what was paid against what should have been paid.
//
// The pure functions Reconcile, Summarize and Breakdown implement the join
// and the totals. Service wraps them in a run: it aggregates the three raw
// tables concurrently, joins them, and collects statistics and warnings.
//
// Example usage:
//
//	service, err := reconciler.NewService(&reconciler.Config{
//		JoinMode:   models.JoinFullOuter,
//		Strictness: models.StrictnessLenient,
//		Schemas:    models.DefaultSchemaSet(),
//	})
//	result, err := service.Run(ctx, &reconciler.Request{
//		Shipment: gst, Returns: rtv, Payment: payment,
//	})
package reconciler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sales-reconciliation-service/internal/aggregator"
	"sales-reconciliation-service/internal/models"
	"sales-reconciliation-service/pkg/errors"
	"sales-reconciliation-service/pkg/logger"
)

// Service runs reconciliations
type Service struct {
	config     *Config
	aggregator *aggregator.Aggregator
	logger     logger.Logger

	listenersMu sync.RWMutex
	listeners   []func(logger.ProgressStats)
}

// Config holds configuration options for the reconciliation service
type Config struct {
	// JoinMode has no default; callers must choose.
	JoinMode   models.JoinMode   `json:"join_mode"`
	Strictness models.Strictness `json:"strictness"`
	Schemas    models.SchemaSet  `json:"schemas"`

	// Differences at or above these magnitudes raise discrepancy severity.
	HighSeverityAmount   decimal.Decimal `json:"high_severity_amount"`
	MediumSeverityAmount decimal.Decimal `json:"medium_severity_amount"`

	// MaxSamples bounds the lenient-mode FormatError samples per source.
	MaxSamples int `json:"max_samples"`
}

// DefaultConfig returns a configuration with every setting except JoinMode.
func DefaultConfig() *Config {
	return &Config{
		Strictness:           models.StrictnessLenient,
		Schemas:              models.DefaultSchemaSet(),
		HighSeverityAmount:   decimal.NewFromInt(1000),
		MediumSeverityAmount: decimal.NewFromInt(100),
		MaxSamples:           aggregator.DefaultMaxSamples,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validateJoinMode(c.JoinMode); err != nil {
		return err
	}
	if !c.Strictness.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "strictness", c.Strictness, nil).
			WithSuggestion("valid values are lenient and strict")
	}
	if err := c.Schemas.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "schemas", "", err)
	}
	if c.HighSeverityAmount.IsNegative() || c.MediumSeverityAmount.IsNegative() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "severity_amount", "negative", nil)
	}
	if c.HighSeverityAmount.LessThan(c.MediumSeverityAmount) {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "high_severity_amount", c.HighSeverityAmount,
			fmt.Errorf("must not be below medium severity amount %s", c.MediumSeverityAmount))
	}
	if c.MaxSamples < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "max_samples", c.MaxSamples, nil)
	}
	return nil
}

// Request carries the three raw reports of one run
type Request struct {
	Shipment *models.Table
	Returns  *models.Table
	Payment  *models.Table
}

// Validate checks that every report is present
func (r *Request) Validate() error {
	if r == nil {
		return errors.ValidationError(errors.CodeMissingField, "request", nil, nil)
	}
	for _, source := range models.Sources() {
		if r.table(source) == nil {
			return errors.ValidationError(errors.CodeMissingField, source.Label()+" report", nil, nil).
				WithSuggestion("provide all three reports: shipment (GST), returns (RTV) and payment")
		}
	}
	return nil
}

func (r *Request) table(source models.Source) *models.Table {
	switch source {
	case models.SourceShipment:
		return r.Shipment
	case models.SourceReturns:
		return r.Returns
	case models.SourcePayment:
		return r.Payment
	default:
		return nil
	}
}

// Result contains the complete results of one reconciliation run
type Result struct {
	RunID       string            `json:"run_id"`
	JoinMode    models.JoinMode   `json:"join_mode"`
	Strictness  models.Strictness `json:"strictness"`
	ProcessedAt time.Time         `json:"processed_at"`
	Duration    time.Duration     `json:"duration"`

	Records       []*models.ReconciledRecord `json:"records"`
	Summary       *models.Summary            `json:"summary"`
	Breakdown     *StatusBreakdown           `json:"breakdown"`
	Discrepancies []*Discrepancy             `json:"discrepancies,omitempty"`

	SourceStats     map[models.Source]aggregator.Stats `json:"source_stats"`
	DroppedOrderIDs map[models.Source][]string         `json:"dropped_order_ids,omitempty"`
	Warnings        []string                           `json:"warnings,omitempty"`
}

// NewService creates a reconciliation service
func NewService(config *Config) (*Service, error) {
	if config == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "reconciler", nil, nil)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	agg, err := aggregator.NewAggregator(&aggregator.Config{
		Strictness: config.Strictness,
		MaxSamples: config.MaxSamples,
	})
	if err != nil {
		return nil, err
	}

	log := logger.GetGlobalLogger().WithComponent("reconciler")
	log.WithFields(logger.Fields{
		"join_mode":  config.JoinMode,
		"strictness": config.Strictness,
	}).Debug("Created reconciliation service")

	return &Service{
		config:     config,
		aggregator: agg,
		logger:     log,
	}, nil
}

// AddProgressListener registers a callback invoked after every stage.
func (s *Service) AddProgressListener(listener func(logger.ProgressStats)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Run reconciles the three reports of req. Either a complete result or an
// error is returned; schema errors from several reports are combined.
func (s *Service) Run(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	result := &Result{
		RunID:       uuid.NewString(),
		JoinMode:    s.config.JoinMode,
		Strictness:  s.config.Strictness,
		ProcessedAt: startTime,
		SourceStats: make(map[models.Source]aggregator.Stats, 3),
	}
	log := s.logger.WithField("run_id", result.RunID)
	log.Info("Starting reconciliation")

	s.listenersMu.RLock()
	listeners := slices.Clone(s.listeners)
	s.listenersMu.RUnlock()

	// Three aggregations, join, summary.
	progress := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "reconciliation",
		Total:     5,
		Logger:    log,
		Listeners: listeners,
	})

	aggregates, err := s.aggregateAll(ctx, req, progress)
	if err != nil {
		progress.CompleteWithError(err)
		return nil, err
	}
	for _, source := range models.Sources() {
		result.SourceStats[source] = aggregates[source].Stats
	}

	if err := checkContext(ctx, "join"); err != nil {
		progress.CompleteWithError(err)
		return nil, err
	}

	records, err := Reconcile(
		models.ShipmentAggregates(aggregates[models.SourceShipment].Records),
		models.ReturnAggregates(aggregates[models.SourceReturns].Records),
		models.PaymentAggregates(aggregates[models.SourcePayment].Records),
		s.config.JoinMode,
	)
	if err != nil {
		progress.CompleteWithError(err)
		return nil, errors.WrapIfNeeded(err, errors.CategoryReconciliation, errors.CodeJoinFailed, "join failed")
	}
	progress.Step("join")

	if s.config.JoinMode == models.JoinShipmentAnchored {
		result.DroppedOrderIDs = droppedOrderIDs(aggregates)
	}

	result.Records = records
	result.Summary = Summarize(records)
	result.Breakdown = Breakdown(records)
	result.Discrepancies = s.findDiscrepancies(records)
	result.Warnings = s.collectWarnings(result)
	progress.Step("summary")

	result.Duration = time.Since(startTime)
	progress.Complete()

	log.WithFields(logger.Fields{
		"orders":           len(records),
		"total_difference": result.Summary.TotalDifference.String(),
		"warnings":         len(result.Warnings),
	}).Info("Reconciliation completed")

	return result, nil
}

func checkContext(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return errors.InternalError(errors.CodeCancelled, operation, err)
	}
	return nil
}
