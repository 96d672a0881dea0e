// Package parser turns free-text grocery lines the catalog does not know
// into structured items using an external language model.
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/textkey"
)

const (
	maxLoggedInput       = 2000
	defaultTimeout       = 8 * time.Second
	defaultRecordTimeout = 5 * time.Second
)

// Generator sends one prompt to a language model and returns its raw text.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Recorder persists the call log.
type Recorder interface {
	Create(ctx context.Context, call model.ParserCall) error
}

type Config struct {
	Timeout         time.Duration
	RecordTimeout   time.Duration
	UnknownCategory string
	Language        string
}

// Item is one parsed line.
type Item struct {
	Article  string `json:"article"`
	Quantity int    `json:"quantity"`
	Category string `json:"category"`
}

type Parser struct {
	gen        Generator
	categories CategorySource
	recorder   Recorder
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time

	wg sync.WaitGroup
}

// New returns a Parser. A nil gen is allowed: every Parse then fails fast
// with ErrNotInitialized.
func New(gen Generator, categories CategorySource, recorder Recorder, cfg Config, logger *slog.Logger) *Parser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = defaultRecordTimeout
	}
	if cfg.UnknownCategory == "" {
		cfg.UnknownCategory = "Autre"
	}
	if cfg.Language == "" {
		cfg.Language = "French"
	}
	return &Parser{
		gen:        gen,
		categories: categories,
		recorder:   recorder,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Initialized reports whether a generator is configured.
func (p *Parser) Initialized() bool { return p.gen != nil }

// Parse returns exactly one item per line, in order. Any malformed or
// misaligned response fails the whole call.
func (p *Parser) Parse(ctx context.Context, lines []string) ([]Item, error) {
	input := strings.Join(lines, "\n")
	start := p.now()

	if p.gen == nil {
		err := &Error{Kind: KindNotInitialized, Err: ErrNotInitialized}
		p.record(ctx, input, "", err.Kind, 0)
		return nil, err
	}

	var names []string
	if p.categories != nil {
		var err error
		names, err = p.categories.Names(ctx)
		if err != nil {
			p.logger.Warn("load categories for prompt", "error", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	raw, err := p.gen.Generate(callCtx, p.systemPrompt(names), input)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()
	latency := p.now().Sub(start)

	if err != nil {
		kind := Classify(err)
		if timedOut {
			kind = KindTimeout
		}
		perr := &Error{Kind: kind, Err: err}
		p.logger.Warn("parser call failed", "lines", len(lines), "kind", kind, "latency", latency, "error", err)
		p.record(ctx, input, raw, kind, latency)
		return nil, perr
	}

	items, err := p.decode(raw, len(lines))
	if err != nil {
		perr := &Error{Kind: KindMalformed, Err: err}
		p.logger.Warn("parser response rejected", "lines", len(lines), "latency", latency, "error", err)
		p.record(ctx, input, raw, perr.Kind, latency)
		return nil, perr
	}

	p.logger.Info("parser call", "lines", len(lines), "input_bytes", len(input), "latency", latency)
	p.record(ctx, input, raw, "", latency)
	return items, nil
}

// Wait blocks until pending call log writes finish.
func (p *Parser) Wait() { p.wg.Wait() }

func (p *Parser) systemPrompt(categories []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You normalize a %s household grocery list.\n", p.cfg.Language)
	b.WriteString("Each input line is exactly one item. Never split a line into several items and never merge lines.\n")
	b.WriteString("Return a JSON array with one object per input line, in the same order, and nothing else.\n")
	b.WriteString(`Each object has "article" (the corrected, singular-or-usual product name, capitalized), `)
	b.WriteString(`"quantity" (a positive integer, 1 when none is given) and "category".` + "\n")
	fmt.Fprintf(&b, "Write article names in %s, translating and fixing spelling when needed.\n", p.cfg.Language)
	if len(categories) > 0 {
		fmt.Fprintf(&b, "Choose category from this list: %s.\n", strings.Join(categories, ", "))
	}
	fmt.Fprintf(&b, "If no category fits, use %q.\n", p.cfg.UnknownCategory)
	return b.String()
}

type rawItem struct {
	Article  *string         `json:"article"`
	Quantity json.RawMessage `json:"quantity"`
	Category *string         `json:"category"`
}

func (p *Parser) decode(raw string, want int) ([]Item, error) {
	body := stripCodeFence(raw)

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(body), &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(elems) != want {
		return nil, fmt.Errorf("%w: got %d items for %d lines", ErrMisaligned, len(elems), want)
	}

	items := make([]Item, len(elems))
	for i, e := range elems {
		var ri rawItem
		if err := json.Unmarshal(e, &ri); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrMalformed, i, err)
		}
		if ri.Article == nil || strings.TrimSpace(*ri.Article) == "" {
			return nil, fmt.Errorf("%w: item %d missing article", ErrMalformed, i)
		}
		if ri.Category == nil || strings.TrimSpace(*ri.Category) == "" {
			return nil, fmt.Errorf("%w: item %d missing category", ErrMalformed, i)
		}
		category := strings.TrimSpace(*ri.Category)
		if textkey.Equal(category, p.cfg.UnknownCategory) {
			category = p.cfg.UnknownCategory
		}
		items[i] = Item{
			Article:  strings.TrimSpace(*ri.Article),
			Quantity: coerceQuantity(ri.Quantity),
			Category: category,
		}
	}
	return items, nil
}

// stripCodeFence removes a markdown code fence around the response.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "[{") {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// coerceQuantity accepts a JSON number or numeric string, truncated toward
// zero. Anything else, or a result below 1, becomes 1.
func coerceQuantity(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 1
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 1
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 1
		}
	}
	if math.IsNaN(f) || f < 1 || f > math.MaxInt32 {
		return 1
	}
	return int(f)
}

func (p *Parser) record(ctx context.Context, input, output string, kind ErrorKind, latency time.Duration) {
	if p.recorder == nil {
		return
	}
	call := model.ParserCall{
		InputText:    truncate(input, maxLoggedInput),
		Success:      kind == "",
		ErrorKind:    string(kind),
		InputTokens:  estimateTokens(input),
		OutputTokens: estimateTokens(output),
		LatencyMS:    latency.Milliseconds(),
		CreatedAt:    p.now().UTC(),
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Warn("record parser call panicked", "panic", r)
			}
		}()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.RecordTimeout)
		defer cancel()
		if err := p.recorder.Create(rctx, call); err != nil {
			p.logger.Warn("record parser call", "error", err)
		}
	}()
}

// estimateTokens approximates four bytes per token, rounded up.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
