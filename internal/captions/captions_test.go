package captions

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tsapi/internal/models"
)

func sampleResult() *models.WhisperResult {
	return &models.WhisperResult{
		Language: "en",
		Text:     "hello world this is a test of the wrapping behavior across multiple words",
		Segments: []models.Segment{
			{Start: 0, End: 2.5, Text: "hello world this is a test of the wrapping behavior across multiple words"},
			{Start: 2.5, End: 4, Text: "short segment"},
		},
	}
}

func TestForResolvesAllFormats(t *testing.T) {
	for _, format := range []string{"vtt", "srt", "txt", "csv", "tsv", "json"} {
		w, ok := For(format)
		require.True(t, ok, format)
		require.NotNil(t, w)
	}
}

func TestForRejectsUnknownFormat(t *testing.T) {
	_, ok := For("docx")
	require.False(t, ok)
}

func TestVTTWriterIncludesHeaderAndTimestamps(t *testing.T) {
	w, _ := For("vtt")
	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, sampleResult()))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "WEBVTT\n"))
	require.Contains(t, out, "00:00:00.000 --> 00:00:02.500")
}

func TestSRTWriterNumbersCues(t *testing.T) {
	w, _ := For("srt")
	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, sampleResult()))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "1\n"))
	require.Contains(t, out, "00:00:02,500 --> 00:00:04,000")
}

func TestCSVAndTSVAreNotAliased(t *testing.T) {
	csvW, _ := For("csv")
	tsvW, _ := For("tsv")

	var csvBuf, tsvBuf bytes.Buffer
	require.NoError(t, csvW.Write(&csvBuf, sampleResult()))
	require.NoError(t, tsvW.Write(&tsvBuf, sampleResult()))

	require.Contains(t, csvBuf.String(), ",")
	require.Contains(t, tsvBuf.String(), "\t")
	require.NotEqual(t, csvBuf.String(), tsvBuf.String())
}

func TestWrapLinesRespectsMaxLineCountAndWidth(t *testing.T) {
	lines := wrapLines("hello world this is a test of the wrapping behavior across multiple words")
	require.LessOrEqual(t, len(lines), maxLineCount)
	for _, line := range lines {
		require.LessOrEqual(t, len(line), maxLineWidth+20) // a single overlong word may still exceed width
	}
}

func TestJSONWriterRoundTripsSegments(t *testing.T) {
	w, _ := For("json")
	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, sampleResult()))
	require.Contains(t, buf.String(), `"language": "en"`)
}
