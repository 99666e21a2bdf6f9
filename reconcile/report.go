package reconcile

import (
	"encoding/json"
	"io"

	"github.com/rs/zerolog"
)

// Reporter receives the outcome of each reconciliation pass.
type Reporter interface {
	Report(res Result)
	Close()
}

type CombinedReporter struct {
	Reporters []Reporter
}

func (c CombinedReporter) Report(res Result) {
	for _, r := range c.Reporters {
		r.Report(res)
	}
}

func (c CombinedReporter) Close() {
	for _, r := range c.Reporters {
		r.Close()
	}
}

// LogReporter reports to `zerolog`.
type LogReporter struct {
	zerolog.Logger
}

func (l LogReporter) Report(res Result) {
	if !res.Changed {
		l.Info().
			Str("kind", string(res.Kind)).
			Str("name", res.Name).
			Msg("already in desired state")
		return
	}
	for i, sql := range res.Plan.SQLTexts() {
		ev := l.Info().
			Str("kind", string(res.Kind)).
			Str("name", res.Name).
			Int("statement", i)
		if res.Applied || i < res.Executed {
			ev.Msg(sql)
		} else {
			ev.Msgf("-- %s", sql)
		}
	}
}

func (l LogReporter) Close() {}

// JSONReporter writes one JSON document per pass, for consumption by a
// surrounding automation layer.
type JSONReporter struct {
	Out io.Writer
}

type jsonReport struct {
	Kind       string   `json:"kind"`
	Name       string   `json:"name"`
	Changed    bool     `json:"changed"`
	Applied    bool     `json:"applied"`
	Executed   int      `json:"executed"`
	Statements []string `json:"statements"`
}

func (j JSONReporter) Report(res Result) {
	enc := json.NewEncoder(j.Out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jsonReport{
		Kind:       string(res.Kind),
		Name:       res.Name,
		Changed:    res.Changed,
		Applied:    res.Applied,
		Executed:   res.Executed,
		Statements: res.Plan.SQLTexts(),
	})
}

func (j JSONReporter) Close() {}
