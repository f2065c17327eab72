package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{" JSON ", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Tier", "Items")
	table.AddRow("bytes", "3")
	table.AddRow("texture", "1")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	assert.Contains(t, out, "TIER")
	assert.Contains(t, out, "ITEMS")
	assert.Contains(t, out, "bytes")
	assert.Contains(t, out, "texture")
}

func TestPrintKeyValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintKeyValues(&buf, [][2]string{{"Folders", "2"}, {"Assets", "5"}}))

	out := buf.String()
	assert.Contains(t, out, "Folders")
	assert.Contains(t, out, "5")
}

type row struct {
	Folder string `json:"folder" yaml:"folder"`
	Items  int    `json:"items" yaml:"items"`
}

func TestPrinter_Formats(t *testing.T) {
	data := []row{{Folder: "root", Items: 3}}

	var jsonBuf bytes.Buffer
	require.NoError(t, NewPrinter(&jsonBuf, FormatJSON).Print(data))
	assert.JSONEq(t, `[{"folder":"root","items":3}]`, jsonBuf.String())

	var yamlBuf bytes.Buffer
	require.NoError(t, NewPrinter(&yamlBuf, FormatYAML).Print(data))
	assert.Contains(t, yamlBuf.String(), "folder: root")
	assert.Contains(t, yamlBuf.String(), "items: 3")

	// Non-renderers fall back to JSON in table mode.
	var tableBuf bytes.Buffer
	require.NoError(t, NewPrinter(&tableBuf, FormatTable).Print(data))
	assert.JSONEq(t, `[{"folder":"root","items":3}]`, tableBuf.String())
}

func TestPrinter_PrintfOnlyInTableMode(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, FormatJSON).Printf("hello %d\n", 1)
	assert.Empty(t, buf.String())

	NewPrinter(&buf, FormatTable).Printf("hello %d\n", 1)
	assert.Equal(t, "hello 1\n", buf.String())
}
