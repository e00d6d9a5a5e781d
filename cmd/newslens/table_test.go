package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTable_AlignsWideRunes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTable(&buf, []string{"source", "label"}, [][]string{
		{"日本", "left"},
		{"AP", "center"},
	}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "source  label", lines[0])
	assert.Equal(t, "------  ------", lines[1])
	assert.Equal(t, "日本    left", lines[2])
	assert.Equal(t, "AP      center", lines[3])
}

func TestRenderTable_TruncatesLongCells(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTable(&buf, []string{"title"}, [][]string{{strings.Repeat("x", 100)}}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.True(t, strings.HasSuffix(lines[2], "…"))
	assert.LessOrEqual(t, len([]rune(lines[2])), maxCellWidth)
}
