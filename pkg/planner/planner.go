package planner

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sahithikokkula/sqlite-hll/pkg/extension"
)

// PlanType indicates which path to use
type PlanType string

const (
	PlanExact  PlanType = "exact"
	PlanSketch PlanType = "sketch"
)

var ErrEmptyQuery = errors.New("sql required")

type Plan struct {
	Type          PlanType `json:"type"`
	SQL           string   `json:"sql"`
	OriginalSQL   string   `json:"original_sql"`
	Table         string   `json:"table,omitempty"`
	SketchColumns []string `json:"sketch_columns,omitempty"`
	Reason        string   `json:"reason"`
}

type Planner struct {
	function string
}

func New() *Planner {
	return &Planner{function: extension.FunctionName}
}

var (
	fromRe          = regexp.MustCompile(`(?i)from\s+([a-zA-Z0-9_]+)`)
	countDistinctRe = regexp.MustCompile(`(?i)count\s*\(\s*distinct\s+([^(),]+?)\s*\)`)
)

// Plan rewrites every single-expression COUNT(DISTINCT x) into the sketch
// aggregate unless the caller insists on exact answers. Text inside
// single-quoted string literals is never rewritten.
func (p *Planner) Plan(sqlText string, preferExact bool) (*Plan, error) {
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return nil, ErrEmptyQuery
	}

	plan := &Plan{
		Type:        PlanExact,
		SQL:         sqlText,
		OriginalSQL: sqlText,
		Table:       p.extractTableName(sqlText),
	}

	var matches [][]string
	for _, s := range splitLiterals(sqlText) {
		if !s.literal {
			matches = append(matches, countDistinctRe.FindAllStringSubmatch(s.text, -1)...)
		}
	}

	switch {
	case len(matches) == 0:
		plan.Reason = "no distinct counts to approximate"
		return plan, nil
	case preferExact:
		plan.Reason = "user prefers exact"
		return plan, nil
	}

	for _, match := range matches {
		plan.SketchColumns = append(plan.SketchColumns, strings.TrimSpace(match[1]))
	}

	plan.Type = PlanSketch
	plan.SQL = p.rewrite(sqlText)
	plan.Reason = fmt.Sprintf("%d distinct count(s) answered by %s", len(matches), p.function)

	return plan, nil
}

func (p *Planner) extractTableName(sql string) string {
	if match := fromRe.FindStringSubmatch(sql); len(match) > 1 {
		return match[1]
	}
	return ""
}

func (p *Planner) rewrite(sqlText string) string {
	var b strings.Builder
	for _, s := range splitLiterals(sqlText) {
		if s.literal {
			b.WriteString(s.text)
			continue
		}
		b.WriteString(countDistinctRe.ReplaceAllString(s.text, p.function+"($1)"))
	}
	return b.String()
}

type span struct {
	text    string
	literal bool
}

// splitLiterals cuts sqlText into alternating code and single-quoted literal
// spans. A doubled quote inside a literal closes one span and opens the next,
// which keeps it literal. An unterminated literal runs to the end.
func splitLiterals(sqlText string) []span {
	var (
		spans []span
		start int
	)

	for start < len(sqlText) {
		open := strings.IndexByte(sqlText[start:], '\'')
		if open < 0 {
			spans = append(spans, span{text: sqlText[start:]})
			break
		}
		if open > 0 {
			spans = append(spans, span{text: sqlText[start : start+open]})
		}

		open += start
		end := len(sqlText)
		if closing := strings.IndexByte(sqlText[open+1:], '\''); closing >= 0 {
			end = open + 1 + closing + 1
		}
		spans = append(spans, span{text: sqlText[open:end], literal: true})
		start = end
	}

	return spans
}
