// Package analytics is the statistical core of VERITAS: process capability,
// one-way ANOVA with Tukey HSD post-hoc comparison, Shapiro-Wilk normality
// testing, ICH Q1E stability poolability and shelf-life projection,
// rule-based QC scanning, and Isolation Forest anomaly detection.
//
// Every function is a pure transform from tabular records to a structured
// result: no I/O, no shared state, no input mutation. Failures follow the
// domain error taxonomy (invalid input, insufficient data, invalid
// specification, invalid parameter); the normality and poolability engines
// instead soft-fail with renderable results because their callers must
// always display a status.
package analytics
