package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/teemow/mailgateway/internal/instrumentation"
	"github.com/teemow/mailgateway/internal/logging"
)

// Query selects what to extract. Between has the form "A,B".
type Query struct {
	Pattern string
	Between string
}

// MatchTimeout bounds a single pattern search. Backtracking patterns can
// otherwise run for exponential time on hostile bodies.
const MatchTimeout = time.Second

// ErrMalformedBetween is logged when a delimiter pair does not split into
// exactly two parts.
var ErrMalformedBetween = errors.New(`between must have the form "start,end"`)

// Extractor applies queries to message bodies. It is stateless apart from
// its logger and metrics and is safe for concurrent use.
type Extractor struct {
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// New returns an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs q against body. It never fails: every problem ends in Miss.
func (e *Extractor) Extract(ctx context.Context, body string, q Query) Result {
	logger := logging.WithOperation(e.logger, "extract")

	if q.Pattern != "" {
		m, err := firstMatch(body, q.Pattern)
		switch {
		case err != nil:
			logger.Error("Invalid extraction pattern",
				slog.String("pattern", q.Pattern),
				logging.Err(err))
		case m != nil:
			e.metrics.RecordExtraction(ctx, instrumentation.ExtractionPattern)
			logger.Debug("Pattern matched", slog.String("pattern", q.Pattern))
			return Match(*m)
		}
	}

	if q.Between != "" {
		vs, err := between(body, q.Between)
		switch {
		case err != nil:
			logger.Error("Invalid delimiter pair",
				slog.String("between", q.Between),
				logging.Err(err))
		case len(vs) > 0:
			e.metrics.RecordExtraction(ctx, instrumentation.ExtractionBetween)
			logger.Debug("Delimiters matched",
				slog.String("between", q.Between),
				slog.Int("count", len(vs)))
			return Between(vs)
		default:
			logger.Info("No content between delimiters", slog.String("between", q.Between))
		}
	}

	e.metrics.RecordExtraction(ctx, instrumentation.ExtractionMiss)
	logger.Info("Nothing extracted",
		slog.Bool("has_pattern", q.Pattern != ""),
		slog.Bool("has_between", q.Between != ""))
	return Miss
}

// firstMatch returns the leftmost match of pattern in body, or nil. An empty
// match still counts as a match. Patterns use backtracking syntax, so
// lookaround, backreferences and (?P<name>...) groups are available.
func firstMatch(body, pattern string) (*string, error) {
	re, err := regexp2.Compile(pattern, regexp2.RE2)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = MatchTimeout

	m, err := re.FindStringMatch(body)
	if err != nil || m == nil {
		return nil, err
	}
	s := m.String()
	return &s, nil
}

// between returns every substring that sits between the start delimiter
// and the next end delimiter, scanning left to right without overlap.
// Surrounding whitespace in the delimiters is ignored and the captured text
// may span lines.
func between(body, pair string) ([]string, error) {
	parts := strings.Split(pair, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: got %d parts", ErrMalformedBetween, len(parts))
	}
	start := strings.TrimSpace(parts[0])
	end := strings.TrimSpace(parts[1])

	re, err := regexp2.Compile(regexp2.Escape(start)+"(.*?)"+regexp2.Escape(end), regexp2.Singleline)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = MatchTimeout

	var out []string
	m, err := re.FindStringMatch(body)
	for err == nil && m != nil {
		out = append(out, m.GroupByNumber(1).String())
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
