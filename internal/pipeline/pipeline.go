// Package pipeline runs the conversion stages in order:
//
//	load -> shim -> translate -> export -> convert -> write
//
// Any stage failure stops the run; later stages are never attempted.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/born-ml/bornlite/internal/compat"
	"github.com/born-ml/bornlite/internal/config"
	"github.com/born-ml/bornlite/internal/flatbuf"
	"github.com/born-ml/bornlite/internal/lite"
	"github.com/born-ml/bornlite/internal/numlib"
	"github.com/born-ml/bornlite/internal/onnx"
	"github.com/born-ml/bornlite/internal/quantize"
	"github.com/born-ml/bornlite/internal/translate"
)

// Stage names. StageConfig covers checks made before any stage runs.
const (
	StageConfig    = "config"
	StageLoad      = "load"
	StageShim      = "shim"
	StageTranslate = "translate"
	StageExport    = "export"
	StageConvert   = "convert"
	StageWrite     = "write"
)

// StageError reports the stage a run failed in.
type StageError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Result describes a successful run.
type Result struct {
	RunID      string
	OutputPath string
	Bytes      int
	Skipped    []string
	Quantized  []string
}

// Run converts cfg.InputPath into a flat artifact at cfg.OutputPath.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &StageError{Stage: StageConfig, Err: err}
	}
	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	level, err := quantize.ParseLevel(cfg.OptimizationLevel)
	if err != nil {
		return nil, &StageError{Stage: StageConfig, Err: err}
	}

	var (
		model    *onnx.ModelProto
		resolver numlib.Resolver
		rep      *translate.Rep
		conv     *lite.Converter
		artifact []byte
	)

	stages := []struct {
		name string
		fn   func() error
	}{
		{StageLoad, func() (err error) {
			model, err = onnx.Load(cfg.InputPath)
			return err
		}},
		{StageShim, func() error {
			ns := numlib.New()
			if cfg.Compat.Disabled {
				log.Warn("compatibility shim disabled")
				resolver = ns
				return nil
			}
			adapter, err := compat.New(ns, cfg.Compat.Aliases)
			if err != nil {
				return err
			}
			resolver = adapter
			return nil
		}},
		{StageTranslate, func() (err error) {
			rep, err = translate.Prepare(model, translate.Options{
				Strict:   cfg.Strict,
				Resolver: resolver,
				Logger:   log,
			})
			return err
		}},
		{StageExport, func() error {
			return rep.ExportGraph(cfg.IntermediateDir)
		}},
		{StageConvert, func() (err error) {
			conv, err = lite.FromSavedModel(cfg.IntermediateDir)
			if err != nil {
				return err
			}
			conv.Optimization = level
			conv.MinElements = cfg.MinElements
			conv.Compress = cfg.Compress
			conv.Metadata = map[string]string{
				"run_id": runID,
				"source": cfg.InputPath,
			}
			artifact, err = conv.Convert()
			return err
		}},
		{StageWrite, func() error {
			return flatbuf.WriteFile(cfg.OutputPath, artifact)
		}},
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, &StageError{Stage: s.name, Err: err}
		}
		log.Info("stage started", zap.String("stage", s.name))
		if err := s.fn(); err != nil {
			log.Error("stage failed", zap.String("stage", s.name), zap.Error(err))
			return nil, &StageError{Stage: s.name, Err: err}
		}
	}

	res := &Result{
		RunID:      runID,
		OutputPath: cfg.OutputPath,
		Bytes:      len(artifact),
		Skipped:    rep.Skipped,
		Quantized:  conv.Report.Quantized,
	}
	log.Info("conversion finished",
		zap.String("output", res.OutputPath),
		zap.Int("bytes", res.Bytes),
		zap.Int("quantized", len(res.Quantized)),
		zap.Strings("skipped", res.Skipped))
	return res, nil
}
