// Package pipeline chains extract -> validate -> transform -> load for one
// (api, logical date) invocation and applies the benign-error policy.
package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/skyline-data/apisync/internal/config"
	"github.com/skyline-data/apisync/internal/extract"
	"github.com/skyline-data/apisync/internal/loader"
	"github.com/skyline-data/apisync/internal/model"
	"github.com/skyline-data/apisync/internal/schema"
)

// Pipeline runs the full chain. Each stage re-reads raw storage rather than
// sharing in-memory state, so stages stay independently retryable.
type Pipeline struct {
	extractor *extract.Extractor
	engine    *schema.Engine
	loader    *loader.Loader
}

// New creates a Pipeline.
func New(ex *extract.Extractor, eng *schema.Engine, ld *loader.Loader) *Pipeline {
	return &Pipeline{extractor: ex, engine: eng, loader: ld}
}

// Result collects the per-stage outcomes of one invocation.
type Result struct {
	Pages  []string                `json:"pages"`
	Report *model.ValidationReport `json:"report"`
	Run    *model.RunRecord        `json:"run"`
}

// Run executes one (api, logical date) invocation. Validation fails the run
// when the invalid-row rate exceeds the schema's threshold or when any
// non-benign report error remains after filtering; the no-data marker and
// duplicate-key messages are benign and the run proceeds past them.
func (p *Pipeline) Run(ctx context.Context, cfg *config.APIConfig, date string) (*Result, error) {
	log := zap.L().With(zap.String("api", cfg.Name), zap.String("date", date))
	res := &Result{}

	pages, err := p.extractor.Fetch(ctx, cfg, date)
	if err != nil {
		return res, err
	}
	res.Pages = pages

	report, err := p.engine.Validate(cfg, date)
	if err != nil {
		return res, err
	}
	res.Report = report

	if cfg.Schema != nil && report.InvalidRate() > cfg.Schema.Validation.Threshold() {
		return res, eris.Errorf("pipeline: validation failed for %s %s: %d of %d rows invalid",
			cfg.Name, date, report.InvalidRows, report.ValidRows+report.InvalidRows)
	}

	if fatal := FatalErrors(report.Errors); len(fatal) > 0 {
		log.Error("validation reported errors", zap.Strings("errors", fatal))
		return res, eris.Errorf("pipeline: validation failed for %s %s: %s",
			cfg.Name, date, strings.Join(fatal, "; "))
	}

	run, err := p.loader.Load(ctx, cfg, date)
	if err != nil {
		return res, err
	}
	res.Run = run

	return res, nil
}

// FatalErrors filters the two benign-by-convention report entries: the
// literal no-data marker and duplicate-unique-key messages (prefix-matched,
// case-insensitive). Everything else is returned.
func FatalErrors(errs []string) []string {
	var fatal []string
	for _, e := range errs {
		lower := strings.ToLower(strings.TrimSpace(e))
		if lower == strings.ToLower(model.NoDataMarker) {
			continue
		}
		if strings.HasPrefix(lower, "duplicate") {
			continue
		}
		fatal = append(fatal, e)
	}
	return fatal
}
