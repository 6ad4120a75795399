package ui

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"Type", "Name"}, &TableOptions{NoColor: true})
	table.AddRow("Dog", "rex")
	table.AddRow("Person", "alice")
	table.AddRow("Tag")
	table.Render()

	assert.Equal(t, 3, table.Len())
	assert.Equal(t,
		"Type    Name \n"+
			"──────  ─────\n"+
			"Dog     rex\n"+
			"Person  alice\n"+
			"Tag     \n",
		buf.String())
}

func TestTable_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, nil, nil)
	table.AddRow("ignored")
	table.Render()
	assert.Empty(t, buf.String())
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	kv := NewKeyValueTable(&buf, true)
	kv.AddRow("Elements", "4")
	kv.AddRow("Roots", "1")
	kv.Render()

	assert.Equal(t, "Elements: 4\nRoots:    1\n", buf.String())
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer
	Header(&buf, "Model", true)
	assert.Equal(t, "Model\n─────\n", buf.String())
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		opts ErrorOptions
		want string
	}{
		{
			name: "plain",
			err:  errors.New("boom"),
			opts: ErrorOptions{NoColor: true},
			want: "Error: boom\n",
		},
		{
			name: "hints",
			err:  errors.WithHint(errors.Wrap(errors.New("boom"), "load failed"), "check the input path"),
			opts: ErrorOptions{NoColor: true},
			want: "Error: load failed: boom\n\n   → check the input path\n",
		},
		{
			name: "suggestions",
			err:  errors.New(`unknown transformation "cpy"`),
			opts: ErrorOptions{Suggestions: []string{"copy"}, NoColor: true},
			want: "Error: unknown transformation \"cpy\"\n\n   Did you mean: copy?\n",
		},
		{
			name: "nil",
			opts: ErrorOptions{NoColor: true},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatError(tt.err, tt.opts))
		})
	}
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "model saved", true)
	assert.Equal(t, "✓ model saved\n", buf.String())
}

func TestSuggest(t *testing.T) {
	tests := []struct {
		target     string
		candidates []string
		want       []string
	}{
		{"cpy", []string{"copy", "identity", "pets"}, []string{"copy"}},
		{"PETS", []string{"copy", "identity", "pets"}, []string{"pets"}},
		{"zzzzzzzz", []string{"copy", "identity", "pets"}, []string{}},
		{"dog", []string{"dogs", "dot", "do", "owner"}, []string{"dogs", "dot", "do"}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, Suggest(tt.target, tt.candidates))
		})
	}
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 3, LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 3, LevenshteinDistance("saturday", "sunday"))
	assert.Equal(t, 4, LevenshteinDistance("", "pets"))
	assert.Equal(t, 0, LevenshteinDistance("dog", "dog"))
	assert.Equal(t, 1, LevenshteinDistance("héllo", "hello"))
}
