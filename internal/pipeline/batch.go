// Package pipeline orchestrates the full batch run: enumerate
// recordings, trim non-wear time, extract features, classify epochs,
// and accumulate per-day summaries across all subjects.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lettse/littlemovers/internal/classifier"
	"github.com/lettse/littlemovers/internal/config"
	"github.com/lettse/littlemovers/internal/features"
	"github.com/lettse/littlemovers/internal/nonwear"
	"github.com/lettse/littlemovers/internal/rawfile"
	"github.com/lettse/littlemovers/internal/storage"
	"github.com/lettse/littlemovers/internal/summary"
)

// State identifies where the batch is in its lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateLoadingModel State = "loading_model"
	StateTrimming     State = "trimming"
	StateExtracting   State = "extracting_features"
	StatePredicting   State = "predicting"
	StateSummarizing  State = "summarizing"
	StateComplete     State = "complete"
	StateError        State = "error"
)

// Progress is one ordered progress event from the batch worker.
// Percent is monotonically non-decreasing across the run; Terminal
// marks the final event, with Err set when the batch failed.
type Progress struct {
	Percent int
	State   State
	Status  string
	Err     error
}

// ModelLoader opens a pretrained model artifact. Swappable so tests
// can run the pipeline without a real ensemble file.
type ModelLoader func(path string) (classifier.EpochClassifier, error)

// Option customizes a Batch.
type Option func(*Batch)

// WithReader substitutes the raw recording decoder.
func WithReader(r rawfile.Reader) Option {
	return func(b *Batch) { b.reader = r }
}

// WithExtractor substitutes the statistical feature backend.
func WithExtractor(ex features.WindowedFeatureExtractor) Option {
	return func(b *Batch) { b.extractor = ex }
}

// WithModelLoader substitutes the boosted-tree inference engine.
func WithModelLoader(load ModelLoader) Option {
	return func(b *Batch) { b.loadModel = load }
}

// Batch runs the whole processing job on a single background worker
// goroutine, reporting progress over an ordered, buffered event
// channel. Processing is strictly sequential: files in listing order,
// and the five stages of each file in order.
type Batch struct {
	cfg       *config.Config
	logger    *zap.SugaredLogger
	reader    rawfile.Reader
	extractor features.WindowedFeatureExtractor
	loadModel ModelLoader

	events      chan Progress
	lastPercent int
}

// New builds a batch for the given configuration.
func New(cfg *config.Config, logger *zap.SugaredLogger, opts ...Option) *Batch {
	b := &Batch{
		cfg:       cfg,
		logger:    logger,
		reader:    rawfile.NewCSVReader(),
		extractor: features.NewGonumExtractor(),
		loadModel: func(path string) (classifier.EpochClassifier, error) {
			return classifier.LoadModel(path)
		},
		events: make(chan Progress, 64),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches the worker and returns its event channel. The caller
// owns the consumer side and must drain it promptly; the channel is
// closed after the terminal event.
func (b *Batch) Start(ctx context.Context) <-chan Progress {
	go b.run(ctx)
	return b.events
}

// emit sends one progress event, clamping the percentage so it never
// decreases.
func (b *Batch) emit(percent int, state State, status string) {
	if percent < b.lastPercent {
		percent = b.lastPercent
	}
	b.lastPercent = percent
	b.events <- Progress{Percent: percent, State: state, Status: status}
}

func (b *Batch) fail(state State, err error) {
	b.logger.Errorw("batch failed", "error", err)
	b.events <- Progress{Percent: b.lastPercent, State: state, Status: "Error: " + err.Error(), Err: err}
	close(b.events)
}

func (b *Batch) complete() {
	b.events <- Progress{Percent: 100, State: StateComplete, Status: "Complete!"}
	close(b.events)
}

func (b *Batch) run(ctx context.Context) {
	b.emit(0, StateLoadingModel, "Loading the model...")

	outcome, err := classifier.OutcomeByName(b.cfg.Model.Outcome)
	if err != nil {
		// No valid outcome selection: terminal status, nothing runs.
		b.fail(StateError, fmt.Errorf("no model selected: %w", err))
		return
	}

	modelPath := filepath.Join(b.cfg.Model.Dir, outcome.ModelFile)
	clf, err := b.loadModel(modelPath)
	if err != nil {
		b.fail(StateError, err)
		return
	}
	b.emit(0, StateLoadingModel, "Model loaded successfully!")

	trimmer, err := nonwear.NewTrimmer(nonwear.Method(b.cfg.NonWear.Method), b.cfg.NonWear.LogbookFile, b.logger)
	if err != nil {
		b.fail(StateError, err)
		return
	}

	var results *storage.ResultsDB
	if b.cfg.Output.ResultsDB != "" {
		results, err = storage.OpenResultsDB(b.cfg.Output.ResultsDB)
		if err != nil {
			b.fail(StateError, err)
			return
		}
		defer results.Close()
		b.logger.Infow("results database open", "path", b.cfg.Output.ResultsDB, "run_id", results.RunID())
	}

	acc, err := storage.NewAccumulator(b.cfg.Output.Folder, storage.WriteMode(b.cfg.Output.WriteMode), outcome.Labels, results)
	if err != nil {
		b.fail(StateError, err)
		return
	}

	files, err := rawfile.ListInputFiles(b.cfg.Input.Folder, b.reader.Extension())
	if err != nil {
		b.fail(StateError, err)
		return
	}
	if len(files) == 0 {
		b.logger.Warnw("no eligible recordings in input folder",
			"folder", b.cfg.Input.Folder, "extension", b.reader.Extension())
		b.complete()
		return
	}

	for idx, path := range files {
		if ctx.Err() != nil {
			b.fail(StateError, ctx.Err())
			return
		}

		if err := b.processFile(idx, len(files), path, clf, outcome, trimmer, acc); err != nil {
			if b.cfg.Batch.FailFast {
				b.fail(StateError, fmt.Errorf("processing %s: %w", filepath.Base(path), err))
				return
			}
			// Hardened mode: log, skip the file, keep the batch going.
			b.logger.Errorw("skipping file after processing failure",
				"file", filepath.Base(path), "error", err)
			b.emit(percentOf(idx+1, len(files)), StateSummarizing,
				fmt.Sprintf("Skipped %s: %v", filepath.Base(path), err))
		}
	}

	b.complete()
}

func (b *Batch) processFile(idx, total int, path string, clf classifier.EpochClassifier, outcome classifier.Outcome, trimmer *nonwear.Trimmer, acc *storage.Accumulator) error {
	filename := filepath.Base(path)
	subjectID := rawfile.SubjectID(path)
	pct := percentOf(idx, total)

	b.emit(pct, StateTrimming, "Removing nonwear for "+filename+"...")
	samples, err := b.reader.Read(path)
	if err != nil {
		return err
	}

	trim := trimmer.Trim(subjectID, samples)
	b.logger.Infow("nonwear processed",
		"subject", subjectID, "outcome", string(trim.Outcome),
		"samples_in", len(samples), "samples_kept", len(trim.Samples))
	if trim.Outcome == nonwear.OutcomeTrimmed {
		acc.AddWearIntervals(trim.Intervals)
		acc.AddDailyWear(trim.DailySummaries)
		if err := storage.WriteTrimmedStream(b.cfg.Output.Folder, subjectID, trim.Samples); err != nil {
			return err
		}
	}
	b.emit(pct, StateTrimming, "Nonwear removed for "+filename)

	b.emit(pct, StateExtracting, "Extracting features for "+filename+"...")
	rows, startTimes := features.ExtractRows(trim.Samples, b.cfg.Input.EpochSeconds, b.cfg.Input.SampleRateHz, b.extractor)
	b.emit(pct, StateExtracting, "Features extracted for "+filename)

	b.emit(pct, StatePredicting, "Predicting "+filename+"...")
	predictions, err := classifier.Predict(clf, rows, startTimes, outcome.Labels)
	if err != nil {
		return err
	}
	if err := storage.WritePredictions(b.cfg.Output.Folder, filename, predictions, features.FeatureNames(b.extractor)); err != nil {
		return err
	}
	b.emit(percentOf(idx+1, total), StatePredicting, "File "+filename+" successfully predicted!")

	b.emit(percentOf(idx+1, total), StateSummarizing, "Summarizing "+filename+"...")
	acc.AddDailyActivity(summary.Summarize(predictions, b.cfg.Input.EpochSeconds, subjectID))
	if err := acc.Flush(); err != nil {
		return err
	}
	return nil
}

func percentOf(done, total int) int {
	return done * 100 / total
}
