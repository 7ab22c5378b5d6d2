package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status" yaml:"status"`
}

type rows []row

func (r rows) Table() Data {
	d := Data{Headers: []string{"Name", "Status"}}
	for _, x := range r {
		d.Rows = append(d.Rows, []string{x.Name, x.Status})
	}
	return d
}

func TestFormatters(t *testing.T) {
	data := rows{{Name: "API", Status: "OPERATIONAL"}, {Name: "Web", Status: "MAJOR_OUTAGE"}}

	tests := []struct {
		format Format
		want   []string
	}{
		{FormatTable, []string{"API", "OPERATIONAL", "MAJOR_OUTAGE"}},
		{FormatJSON, []string{`"name": "API"`, `"status": "MAJOR_OUTAGE"`}},
		{FormatYAML, []string{"- name: API", "status: MAJOR_OUTAGE"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewFormatter(tt.format).Format(&buf, data))
			for _, s := range tt.want {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestTableFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(&buf, map[string]int{"services": 2}))
	assert.Contains(t, buf.String(), `"services": 2`)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)

	assert.Equal(t, FormatYAML, DetectFormat("yaml"))
}
