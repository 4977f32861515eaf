// Package report assembles GxP summary reports from analytics results.
// Reports build as markdown section by section, render to HTML for the
// dashboard, and export to a workbook for submission data packages.
// Electronic signature capture is a placeholder section only; the signing
// ceremony itself is outside this system.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"veritas/app"
	"veritas/domain/core"
	"veritas/domain/quality"
)

// Table is a rendered result table.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Section is one report chapter: heading, body prose, optional table.
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body,omitempty"`
	Table   *Table `json:"table,omitempty"`
}

// Report is an assembled summary report.
type Report struct {
	ID          core.ReportID  `json:"id"`
	Title       string         `json:"title"`
	Author      string         `json:"author"`
	GeneratedAt core.Timestamp `json:"generated_at"`
	Draft       bool           `json:"draft"`
	Sections    []Section      `json:"sections"`
}

// Assembler builds reports from analytics outputs.
type Assembler struct{}

// NewAssembler creates an assembler
func NewAssembler() *Assembler {
	return &Assembler{}
}

// BuildSummary assembles the standard data summary report: capability
// results, QC findings, and the open deviation backlog, closed by the
// e-signature placeholder block required for document control.
func (a *Assembler) BuildSummary(author string, draft bool, capability []app.CapabilitySummary, discrepancies []quality.Discrepancy, deviations []quality.Deviation) Report {
	r := Report{
		ID:          core.ReportID(core.NewID()),
		Title:       "VERITAS - Automated Data Summary Report",
		Author:      author,
		GeneratedAt: core.Now(),
		Draft:       draft,
	}

	if len(capability) > 0 {
		r.Sections = append(r.Sections, capabilitySection(capability))
	}
	if len(discrepancies) > 0 {
		r.Sections = append(r.Sections, discrepancySection(discrepancies))
	}
	if len(deviations) > 0 {
		r.Sections = append(r.Sections, deviationSection(deviations))
	}
	r.Sections = append(r.Sections, signatureSection())
	return r
}

func capabilitySection(summaries []app.CapabilitySummary) Section {
	t := &Table{Columns: []string{"CQA", "N", "Cpk", "Capable", "Normality"}}
	for _, s := range summaries {
		cpk := "-"
		capable := "-"
		if s.Error == "" {
			cpk = fmt.Sprintf("%.3f", s.Cpk)
			capable = fmt.Sprintf("%t", s.Capable)
		}
		t.Rows = append(t.Rows, []string{s.CQA, fmt.Sprintf("%d", s.N), cpk, capable, s.Normality.Conclusion})
	}
	return Section{
		Heading: "Process Capability Summary",
		Body:    "Capability indices computed against the release specification table.",
		Table:   t,
	}
}

func discrepancySection(discrepancies []quality.Discrepancy) Section {
	t := &Table{Columns: []string{"Sample ID", "Issue", "Details"}}
	for _, d := range discrepancies {
		t.Rows = append(t.Rows, []string{d.SampleID, string(d.Issue), d.Detail})
	}
	return Section{
		Heading: "Data Integrity Findings",
		Body:    fmt.Sprintf("%d discrepancies identified by the rule-based QC scan.", len(discrepancies)),
		Table:   t,
	}
}

func deviationSection(deviations []quality.Deviation) Section {
	t := &Table{Columns: []string{"ID", "Title", "Status", "Priority", "Linked Record"}}
	for _, d := range deviations {
		t.Rows = append(t.Rows, []string{d.ID.String(), d.Title, string(d.Status), string(d.Priority), d.LinkedRecord})
	}
	return Section{Heading: "Deviation Backlog", Table: t}
}

func signatureSection() Section {
	return Section{
		Heading: "Electronic Signature",
		Body: "Signed by: ______________________    Date: ____________\n\n" +
			"Meaning of signature: I have reviewed this report and attest the data summarized herein is accurate and complete.",
	}
}

// Markdown renders the report as a markdown document.
func (r Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	if r.Draft {
		b.WriteString("**DRAFT - NOT FOR SUBMISSION**\n\n")
	}
	fmt.Fprintf(&b, "Generated: %s  \n", r.GeneratedAt.Time().Format(time.DateTime))
	fmt.Fprintf(&b, "Author: %s  \n", r.Author)
	fmt.Fprintf(&b, "Report ID: %s\n\n", r.ID)

	for _, s := range r.Sections {
		fmt.Fprintf(&b, "## %s\n\n", s.Heading)
		if s.Body != "" {
			b.WriteString(s.Body)
			b.WriteString("\n\n")
		}
		if s.Table != nil {
			writeMarkdownTable(&b, s.Table)
		}
	}
	return b.String()
}

func writeMarkdownTable(b *strings.Builder, t *Table) {
	b.WriteString("| " + strings.Join(t.Columns, " | ") + " |\n")
	sep := make([]string, len(t.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.ReplaceAll(c, "|", "\\|")
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	b.WriteString("\n")
}

// HTML renders the report for dashboard display.
func (r Report) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(r.Markdown()), p, renderer)
}
