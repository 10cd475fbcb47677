package translate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oukeidos/subdeck/internal/apperrors"
	"github.com/oukeidos/subdeck/internal/csvimport"
	"github.com/oukeidos/subdeck/internal/language"
	"github.com/oukeidos/subdeck/internal/logger"
)

const (
	DefaultChunkSize   = 40
	DefaultContextSize = 5
	DefaultConcurrency = 3
	MaxConcurrency     = 10
	maxAttempts        = 3
)

var (
	defaultQPS    = 3
	defaultRampUp = 2 * time.Second
)

// SystemPrompt builds the instruction for translating sourceName subtitles
// into targetName.
func SystemPrompt(sourceName, targetName string) string {
	return fmt.Sprintf(`You translate %s subtitles into %s for language learners.

1. Input Structure:
- The input is JSON with 'context_before', 'target' and 'context_after'.
- 'target' holds the segments to translate.
- 'context_before' and 'context_after' are context only. Do NOT translate them or include them in the output.

2. Output Structure:
- The output MUST be a JSON object with a 'translations' field holding an array of objects.
- Each object has 'id' (the ID from the input segment) and 'text' (the translation).
- Respond ONLY with the JSON object.

3. Rules:
- Keep the meaning close to the source so learners can compare the two lines.
- Maintain the original tone.
- Write ONLY the %s translation; do not include the %s source text.`,
		sourceName, targetName, targetName, sourceName)
}

// State is the state of one chunk.
type State int

const (
	StateStarted State = iota
	StateInProgress
	StateCompleted
	StateCanceled
)

// Progress reports chunk activity for one target language.
type Progress struct {
	Lang        string
	ChunkIndex  int
	TotalChunks int
	Attempt     int
	State       State
	Error       error
}

// Options configures a Filler. Zero values take the defaults.
type Options struct {
	ChunkSize   int
	ContextSize int
	Concurrency int
}

// LanguageResult counts cells for one target language.
type LanguageResult struct {
	Lang    string
	Missing int
	Filled  int
	Failed  int
	// Added is true when the column did not exist and was appended.
	Added bool
}

type FillResult struct {
	Languages []LanguageResult
	Usage     Usage
}

// Filled returns the number of cells filled across languages.
func (r *FillResult) Filled() int {
	n := 0
	for _, l := range r.Languages {
		n += l.Filled
	}
	return n
}

// Failed returns the number of cells left empty after errors.
func (r *FillResult) Failed() int {
	n := 0
	for _, l := range r.Languages {
		n += l.Failed
	}
	return n
}

// Filler fills empty subtitle cells of an ingestion CSV by translating the
// main-language text.
type Filler struct {
	model       Model
	chunkSize   int
	contextSize int
	concurrency int
	usage       Usage
	usageMu     sync.Mutex
}

func NewFiller(model Model, opts Options) (*Filler, error) {
	if model == nil {
		return nil, fmt.Errorf("translation model is nil")
	}
	if opts.ChunkSize < 0 || opts.ContextSize < 0 || opts.Concurrency < 0 {
		return nil, fmt.Errorf("chunk size, context size and concurrency must not be negative")
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ContextSize == 0 {
		opts.ContextSize = DefaultContextSize
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Concurrency > MaxConcurrency {
		opts.Concurrency = MaxConcurrency
	}
	return &Filler{
		model:       model,
		chunkSize:   opts.ChunkSize,
		contextSize: opts.ContextSize,
		concurrency: opts.Concurrency,
	}, nil
}

// Fill translates empty cells of the target languages in place. With no
// targets every non-main language column is filled; a target without a
// column gets one appended. Languages run one after another because the
// system instruction is per language. On cancellation the cells filled so
// far stay in sheet and ctx.Err() is returned.
func (f *Filler) Fill(ctx context.Context, sheet *csvimport.Sheet, mainLang string, targets []string, onProgress func(Progress)) (*FillResult, error) {
	h := csvimport.ClassifyHeaders(sheet.Headers, mainLang, csvimport.Options{})
	if h.MainLanguage == "" {
		return nil, apperrors.Validation(fmt.Errorf("unknown main language %q", mainLang))
	}
	if h.MainColumn < 0 {
		return nil, apperrors.Validation(fmt.Errorf("no column matches main language %q", h.MainLanguage))
	}
	mainCol := h.Columns[h.MainColumn]

	cols, added, err := targetColumns(sheet, h, mainCol.Lang, targets)
	if err != nil {
		return nil, err
	}

	var all []Segment
	for i := range sheet.Records {
		if text := sheet.Cell(i, mainCol.Index); text != "" {
			all = append(all, Segment{ID: i, Text: text})
		}
	}

	res := &FillResult{}
	source, _ := language.GetLanguage(mainCol.Lang)
	for _, col := range cols {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		lr := f.fillColumn(ctx, sheet, all, source, col, onProgress)
		lr.Added = added[col.Lang]
		res.Languages = append(res.Languages, lr)
	}
	res.Usage = f.GetUsage()
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func targetColumns(sheet *csvimport.Sheet, h csvimport.HeaderResult, mainLang string, targets []string) ([]csvimport.Column, map[string]bool, error) {
	existing := map[string]csvimport.Column{}
	var ordered []csvimport.Column
	for _, c := range h.LanguageColumns() {
		if c.Lang == mainLang {
			continue
		}
		if _, dup := existing[c.Lang]; !dup {
			existing[c.Lang] = c
			ordered = append(ordered, c)
		}
	}
	added := map[string]bool{}
	if len(targets) == 0 {
		if len(ordered) == 0 {
			return nil, nil, apperrors.Validation(fmt.Errorf("CSV has no subtitle columns besides %s; name a target language", mainLang))
		}
		return ordered, added, nil
	}

	var cols []csvimport.Column
	seen := map[string]bool{}
	for _, t := range targets {
		code := language.Canonical(t)
		if code == "" {
			return nil, nil, apperrors.Validation(fmt.Errorf("unsupported target language: %s", t))
		}
		if code == mainLang {
			return nil, nil, apperrors.Validation(fmt.Errorf("target %s is the main language", code))
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		if c, ok := existing[code]; ok {
			cols = append(cols, c)
			continue
		}
		sheet.Headers = append(sheet.Headers, code)
		cols = append(cols, csvimport.Column{Index: len(sheet.Headers) - 1, Header: code, Kind: csvimport.KindLanguage, Lang: code})
		added[code] = true
	}
	return cols, added, nil
}

func (f *Filler) fillColumn(ctx context.Context, sheet *csvimport.Sheet, all []Segment, source language.Language, col csvimport.Column, onProgress func(Progress)) LanguageResult {
	lr := LanguageResult{Lang: col.Lang}
	var targets []int
	for pos, seg := range all {
		if sheet.Cell(seg.ID, col.Index) == "" {
			targets = append(targets, pos)
		}
	}
	lr.Missing = len(targets)
	if len(targets) == 0 {
		logger.Info("No missing subtitles", "lang", col.Lang)
		return lr
	}

	target, _ := language.GetLanguage(col.Lang)
	f.model.SetSystemInstruction(SystemPrompt(source.Name, target.Name))

	chunks := SplitIntoChunks(all, targets, f.chunkSize, f.contextSize)
	results := f.runChunks(ctx, col.Lang, chunks, onProgress)

	for i, chunk := range chunks {
		texts := results[i]
		if texts == nil {
			lr.Failed += len(chunk.Target)
			continue
		}
		for _, seg := range chunk.Target {
			sheet.SetCell(seg.ID, col.Index, texts[seg.ID])
			lr.Filled++
		}
	}
	logger.Info("Language filled", "lang", col.Lang, "filled", lr.Filled, "failed", lr.Failed)
	return lr
}

// runChunks translates chunks on a bounded worker pool, ramping workers up
// and pacing requests. A nil entry in the result marks a failed chunk.
func (f *Filler) runChunks(ctx context.Context, lang string, chunks []Chunk, onProgress func(Progress)) []map[int]string {
	results := make([]map[int]string, len(chunks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	rateCh, stopRate := newRateLimiter(defaultQPS)
	defer stopRate()

	jobs := make(chan int, len(chunks))
	for i := range chunks {
		jobs <- i
	}
	close(jobs)

	report := func(p Progress) {
		if onProgress != nil {
			p.Lang = lang
			p.TotalChunks = len(chunks)
			onProgress(p)
		}
	}

	workers := min(f.concurrency, len(chunks))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			if delay := rampDelay(worker, workers, defaultRampUp); delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				if rateCh != nil {
					select {
					case <-ctx.Done():
						return
					case <-rateCh:
					}
				}
				texts, err := f.translateChunk(ctx, chunks[i], func(attempt int, prev error) {
					state := StateStarted
					if attempt > 1 {
						state = StateInProgress
					}
					report(Progress{ChunkIndex: i, Attempt: attempt, State: state, Error: prev})
				})
				if err != nil {
					if ctx.Err() == nil {
						logger.Error("Chunk failed", "lang", lang, "index", i, "error", err)
					}
					continue
				}
				mu.Lock()
				results[i] = texts
				mu.Unlock()
				report(Progress{ChunkIndex: i, State: StateCompleted})
			}
		}(w)
	}
	wg.Wait()

	if ctx.Err() != nil {
		report(Progress{ChunkIndex: -1, State: StateCanceled, Error: ctx.Err()})
	}
	return results
}

func (f *Filler) translateChunk(ctx context.Context, chunk Chunk, onAttempt func(attempt int, prev error)) (map[int]string, error) {
	req := Request{ContextBefore: chunk.Before, Target: chunk.Target, ContextAfter: chunk.After}
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		onAttempt(attempt, err)
		var resp *Response
		resp, err = f.model.Translate(ctx, req)
		if err == nil {
			f.usageMu.Lock()
			f.usage.add(resp.Usage)
			f.usageMu.Unlock()

			var texts map[int]string
			texts, err = mergeResults(chunk.Target, resp)
			if err == nil {
				return texts, nil
			}
			err = apperrors.Validation(err)
		}
		retry, backoff := retryDecision(ctx, err, attempt, maxAttempts)
		if !retry {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, err
}

// mergeResults checks the model answered every target exactly once and
// nothing else.
func mergeResults(target []Segment, resp *Response) (map[int]string, error) {
	if resp == nil {
		return nil, fmt.Errorf("empty response from model")
	}
	expected := make(map[int]bool, len(target))
	for _, s := range target {
		expected[s.ID] = true
	}
	texts := make(map[int]string, len(target))
	for _, tr := range resp.Translations {
		if _, dup := texts[tr.ID]; dup {
			return nil, fmt.Errorf("duplicate translation ID in model output: %d", tr.ID)
		}
		if !expected[tr.ID] {
			return nil, fmt.Errorf("unexpected translation ID from model: %d", tr.ID)
		}
		text := strings.Join(strings.Fields(strings.ReplaceAll(tr.Text, "\\n", " ")), " ")
		if text == "" {
			return nil, fmt.Errorf("empty translation for segment ID %d", tr.ID)
		}
		texts[tr.ID] = text
	}
	if len(texts) != len(target) {
		missing := make([]int, 0, len(target)-len(texts))
		for _, s := range target {
			if _, ok := texts[s.ID]; !ok {
				missing = append(missing, s.ID)
			}
		}
		sort.Ints(missing)
		return nil, fmt.Errorf("translation count mismatch: expected %d, got %d (missing %v)", len(target), len(texts), missing)
	}
	return texts, nil
}

func retryDecision(ctx context.Context, err error, attempt, maxAttempts int) (bool, time.Duration) {
	if err == nil || attempt >= maxAttempts {
		return false, 0
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, 0
	}
	// Malformed model output is worth another try.
	if !apperrors.IsRetryable(err) && !apperrors.Is(err, apperrors.KindValidation) {
		return false, 0
	}
	const (
		base       = 1 * time.Second
		maxBackoff = 20 * time.Second
		jitterMax  = 1 * time.Second
	)
	backoff := base << (attempt - 1)
	if apperrors.IsRateLimit(err) {
		backoff *= 2
	}
	backoff = min(backoff, maxBackoff)
	return true, backoff + time.Duration(rand.Int63n(int64(jitterMax)))
}

func newRateLimiter(qps int) (<-chan time.Time, func()) {
	if qps <= 0 {
		return nil, func() {}
	}
	ticker := time.NewTicker(time.Second / time.Duration(qps))
	return ticker.C, ticker.Stop
}

func rampDelay(worker, concurrency int, ramp time.Duration) time.Duration {
	if ramp <= 0 || concurrency <= 1 {
		return 0
	}
	return time.Duration(int64(ramp) * int64(worker) / int64(concurrency-1))
}

// GetUsage returns the token usage accumulated so far.
func (f *Filler) GetUsage() Usage {
	f.usageMu.Lock()
	defer f.usageMu.Unlock()
	return f.usage
}
