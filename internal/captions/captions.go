// Package captions renders a models.WhisperResult into the caption
// formats GET /transcribe (with ?format=...) can return: vtt, srt, txt,
// csv, tsv (kept distinct from csv, not aliased — see DESIGN.md) and
// json, each word-wrapped to max_line_width=55 / max_line_count=2.
package captions

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"tsapi/internal/models"
)

const (
	maxLineWidth  = 55
	maxLineCount  = 2
	highlightWord = false
)

// Writer renders a WhisperResult to w in one caption format.
type Writer interface {
	Write(w io.Writer, result *models.WhisperResult) error
}

// For resolves the Writer for a format name, or (nil, false) if format is
// unknown.
func For(format string) (Writer, bool) {
	switch strings.ToLower(format) {
	case "vtt":
		return vttWriter{}, true
	case "srt":
		return srtWriter{}, true
	case "txt":
		return txtWriter{}, true
	case "csv":
		return csvWriter{}, true
	case "tsv":
		return tsvWriter{}, true
	case "json":
		return jsonWriter{}, true
	default:
		return nil, false
	}
}

// wrapLines splits text into at most maxLineCount lines of at most
// maxLineWidth characters each, breaking on word boundaries; a single word
// longer than maxLineWidth is kept whole on a line of its own.
// highlightWord is always false for this engine, so no per-word emphasis
// markup is ever emitted.
func wrapLines(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	var current string
	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if len(candidate) > maxLineWidth && current != "" {
			lines = append(lines, current)
			current = word
		} else {
			current = candidate
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) > maxLineCount {
		lines = lines[:maxLineCount]
	}
	return lines
}

func formatTimestampVTT(seconds float64) string {
	return formatTimestamp(seconds, ".")
}

func formatTimestampSRT(seconds float64) string {
	return formatTimestamp(seconds, ",")
}

func formatTimestamp(seconds float64, millisSep string) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	hours := totalMillis / 3_600_000
	totalMillis -= hours * 3_600_000
	minutes := totalMillis / 60_000
	totalMillis -= minutes * 60_000
	secs := totalMillis / 1000
	millis := totalMillis - secs*1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, secs, millisSep, millis)
}

type vttWriter struct{}

func (vttWriter) Write(w io.Writer, result *models.WhisperResult) error {
	if _, err := fmt.Fprintln(w, "WEBVTT"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	for _, seg := range result.Segments {
		if _, err := fmt.Fprintf(w, "%s --> %s\n", formatTimestampVTT(seg.Start), formatTimestampVTT(seg.End)); err != nil {
			return err
		}
		for _, line := range wrapLines(seg.Text) {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

type srtWriter struct{}

func (srtWriter) Write(w io.Writer, result *models.WhisperResult) error {
	for i, seg := range result.Segments {
		if _, err := fmt.Fprintf(w, "%d\n", i+1); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s --> %s\n", formatTimestampSRT(seg.Start), formatTimestampSRT(seg.End)); err != nil {
			return err
		}
		for _, line := range wrapLines(seg.Text) {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

type txtWriter struct{}

func (txtWriter) Write(w io.Writer, result *models.WhisperResult) error {
	for _, seg := range result.Segments {
		if _, err := fmt.Fprintln(w, strings.TrimSpace(seg.Text)); err != nil {
			return err
		}
	}
	return nil
}

type csvWriter struct{}

func (csvWriter) Write(w io.Writer, result *models.WhisperResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"start", "end", "text"}); err != nil {
		return err
	}
	for _, seg := range result.Segments {
		if err := cw.Write([]string{fmt.Sprintf("%.2f", seg.Start), fmt.Sprintf("%.2f", seg.End), seg.Text}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// tsvWriter is deliberately not an alias of csvWriter: kept as two
// distinct formats (see DESIGN.md) since a tab-delimited consumer (e.g.
// Audacity label tracks) can't safely accept comma-delimited output with
// unescaped commas inside text fields.
type tsvWriter struct{}

func (tsvWriter) Write(w io.Writer, result *models.WhisperResult) error {
	if _, err := fmt.Fprintln(w, "start\tend\ttext"); err != nil {
		return err
	}
	for _, seg := range result.Segments {
		text := strings.ReplaceAll(seg.Text, "\t", " ")
		if _, err := fmt.Fprintf(w, "%.2f\t%.2f\t%s\n", seg.Start, seg.End, text); err != nil {
			return err
		}
	}
	return nil
}

type jsonWriter struct{}

func (jsonWriter) Write(w io.Writer, result *models.WhisperResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
