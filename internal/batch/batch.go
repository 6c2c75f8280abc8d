package batch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"hybrid_copilot/internal/core"
	"hybrid_copilot/internal/logger"
	"hybrid_copilot/internal/storage"
	"hybrid_copilot/pkg"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
)

// DegradedAnswer is the final answer of a record whose run failed
const DegradedAnswer = "Error processing question"

const maxLineBytes = 1 << 20

// Runner answers one question
type Runner interface {
	Run(ctx context.Context, id, question, formatHint string) (*core.Session, error)
}

// DegradedObserver counts records replaced by a degraded result
type DegradedObserver interface {
	ObserveDegraded()
}

// Summary reports the outcome of a batch
type Summary struct {
	Total    int
	Degraded int
}

// Driver runs a batch of questions one after another
type Driver struct {
	runner   Runner
	store    storage.RunStore
	observer DegradedObserver
	validate *validator.Validate
}

// NewDriver creates a driver. store and observer may be nil.
func NewDriver(runner Runner, store storage.RunStore, observer DegradedObserver) *Driver {
	return &Driver{
		runner:   runner,
		store:    store,
		observer: observer,
		validate: validator.New(),
	}
}

// ProcessFile reads questions from inPath and writes one result per line to
// outPath. An outPath of "-" writes to stdout.
func (d *Driver) ProcessFile(ctx context.Context, inPath, outPath string) (Summary, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer in.Close()

	if outPath == "-" {
		return d.Process(ctx, in, os.Stdout)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to create output file: %w", err)
	}

	summary, err := d.Process(ctx, in, out)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close output file: %w", closeErr)
	}
	return summary, err
}

type item struct {
	input pkg.BatchInput
	err   error
}

// Process runs every question read from r and writes the results to w
func (d *Driver) Process(ctx context.Context, r io.Reader, w io.Writer) (Summary, error) {
	items, err := d.readItems(r)
	if err != nil {
		return Summary{}, err
	}

	logger.Info().Int("questions", len(items)).Msg("Processing batch")

	bw := bufio.NewWriter(w)
	summary := Summary{}
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			bw.Flush()
			return summary, err
		}

		logger.Info().
			Int("index", i+1).
			Int("total", len(items)).
			Str("id", it.input.ID).
			Msg("Processing question")

		result, degraded := d.processItem(ctx, it)
		line, err := sonic.Marshal(result)
		if err != nil {
			result = degradedResult(it.input, fmt.Errorf("failed to encode result: %w", err))
			degraded = true
			if line, err = sonic.Marshal(result); err != nil {
				return summary, fmt.Errorf("failed to encode result %s: %w", it.input.ID, err)
			}
		}

		summary.Total++
		if degraded {
			summary.Degraded++
			if d.observer != nil {
				d.observer.ObserveDegraded()
			}
		}

		d.save(ctx, result)

		if _, err := bw.Write(append(line, '\n')); err != nil {
			return summary, fmt.Errorf("failed to write result: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return summary, fmt.Errorf("failed to write results: %w", err)
	}

	logger.Info().
		Int("processed", summary.Total).
		Int("degraded", summary.Degraded).
		Msg("Batch complete")

	return summary, nil
}

// readItems decodes every non-empty line. Lines that fail to decode or
// validate are kept with their error so they produce a degraded record.
func (d *Driver) readItems(r io.Reader) ([]item, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var items []item
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := len(items) + 1

		var input pkg.BatchInput
		err := sonic.UnmarshalString(line, &input)
		if err != nil {
			err = fmt.Errorf("malformed batch line %d: %w", idx, err)
		} else if verr := d.validate.Struct(input); verr != nil {
			err = fmt.Errorf("invalid batch line %d: %w", idx, verr)
		}

		if input.ID == "" {
			input.ID = fmt.Sprintf("q%d", idx)
		}
		if input.FormatHint == "" {
			input.FormatHint = "text"
		}
		items = append(items, item{input: input, err: err})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return items, nil
}

// processItem runs one question, converting errors and panics into a
// degraded result
func (d *Driver) processItem(ctx context.Context, it item) (result pkg.Result, degraded bool) {
	if it.err != nil {
		logger.Warn().Err(it.err).Str("id", it.input.ID).Msg("Skipping batch line")
		return degradedResult(it.input, it.err), true
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.Error().
				Str("id", it.input.ID).
				Str("stack", string(debug.Stack())).
				Msg("Run panicked")
			result, degraded = degradedResult(it.input, err), true
		}
	}()

	session, err := d.runner.Run(ctx, it.input.ID, it.input.Question, it.input.FormatHint)
	if err != nil {
		logger.Error().Err(err).Str("id", it.input.ID).Msg("Run failed")
		return degradedResult(it.input, err), true
	}
	if session == nil {
		return degradedResult(it.input, errors.New("run returned no session")), true
	}

	return session.Result(), false
}

func (d *Driver) save(ctx context.Context, result pkg.Result) {
	if d.store == nil {
		return
	}
	if err := d.store.Save(ctx, result); err != nil {
		logger.Warn().Err(err).Str("id", result.ID).Msg("Failed to save run result")
	}
}

func degradedResult(input pkg.BatchInput, err error) pkg.Result {
	return pkg.Result{
		ID:          input.ID,
		Question:    input.Question,
		FinalAnswer: DegradedAnswer,
		Citations:   []string{},
		Confidence:  0,
		Explanation: err.Error(),
		Trace:       []pkg.StepRecord{},
	}
}
