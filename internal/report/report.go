// Package report renders a summary Report as plain text.
package report

import (
	"embed"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/lox/energybill/internal/models"
)

//go:embed templates/*
var templateFS embed.FS

// Decimals used for every quantity in the text output.
const Decimals = 2

type view struct {
	*models.Report
	Label  string
	Noun   string
	Period string
	layout string
}

var tmpl = template.Must(template.New("").Funcs(template.FuncMap{
	"q":    func(q models.Quantity) string { return q.Format(Decimals) },
	"date": func(t time.Time) string { return t.Format(time.DateOnly) },
}).ParseFS(templateFS, "templates/*.tmpl"))

// Write renders r, whose buckets were built at granularity g, to w.
func Write(w io.Writer, r *models.Report, g models.Granularity) error {
	if r == nil {
		return fmt.Errorf("report: nothing to render")
	}
	v := view{
		Report: r,
		Label:  g.Label(),
		Noun:   strings.ToLower(g.Label()),
		Period: periodLabel(g),
		layout: periodLayout(g),
	}

	return tmpl.ExecuteTemplate(w, "summary.tmpl", v)
}

// At formats a period start at the resolution of the report's buckets.
func (v view) At(t time.Time) string {
	return t.Format(v.layout)
}

func periodLabel(g models.Granularity) string {
	noun := g.PeriodNoun()
	if noun == "" {
		return "Period"
	}
	return strings.ToUpper(noun[:1]) + noun[1:]
}

func periodLayout(g models.Granularity) string {
	if g == models.Hourly {
		return "2006-01-02 15:04"
	}
	return time.DateOnly
}
