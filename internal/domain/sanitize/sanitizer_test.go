package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_RemovesPlainImports(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		wantCleaned string
		wantRemoved []string
	}{
		{
			name:        "single import",
			code:        "import json\nresult = query_logs(filter=\"ERROR\")",
			wantCleaned: "result = query_logs(filter=\"ERROR\")",
			wantRemoved: []string{"import json"},
		},
		{
			name:        "import with alias",
			code:        "import collections as c\nx = 1",
			wantCleaned: "x = 1",
			wantRemoved: []string{"import collections as c"},
		},
		{
			name:        "multiple modules one statement",
			code:        "import json, re, time\nx = 1",
			wantCleaned: "x = 1",
			wantRemoved: []string{"import json, re, time"},
		},
		{
			name:        "from import",
			code:        "from datetime import timedelta\nx = 1",
			wantCleaned: "x = 1",
			wantRemoved: []string{"from datetime import timedelta"},
		},
		{
			name:        "relative from import",
			code:        "from .helpers import parse\nx = 1",
			wantCleaned: "x = 1",
			wantRemoved: []string{"from .helpers import parse"},
		},
		{
			name:        "load statement",
			code:        "load(\"tools.star\", \"query_logs\")\nx = 1",
			wantCleaned: "x = 1",
			wantRemoved: []string{"load(\"tools.star\", \"query_logs\")"},
		},
		{
			name:        "indented import inside block",
			code:        "def f():\n    import json\n    return 1",
			wantCleaned: "def f():\n    return 1",
			wantRemoved: []string{"import json"},
		},
		{
			name:        "no imports returned unchanged",
			code:        "x = 1\nprint(x)",
			wantCleaned: "x = 1\nprint(x)",
			wantRemoved: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.code)
			assert.Equal(t, tt.wantCleaned, got.Cleaned)
			assert.Equal(t, tt.wantRemoved, got.Removed)
		})
	}
}

func TestSanitize_MultiLineImports(t *testing.T) {
	t.Run("parenthesized from import", func(t *testing.T) {
		code := "from datetime import (\n    datetime,\n    timedelta,\n)\nx = 1"
		got := Sanitize(code)
		assert.Equal(t, "x = 1", got.Cleaned)
		require.Len(t, got.Removed, 1)
		assert.Contains(t, got.Removed[0], "timedelta")
	})

	t.Run("backslash continuation", func(t *testing.T) {
		code := "from os import \\\n    path\nx = 1"
		got := Sanitize(code)
		assert.Equal(t, "x = 1", got.Cleaned)
		require.Len(t, got.Removed, 1)
	})

	t.Run("multi line load", func(t *testing.T) {
		code := "load(\n    \"tools.star\",\n    \"query_logs\",\n)\nx = 1"
		got := Sanitize(code)
		assert.Equal(t, "x = 1", got.Cleaned)
		require.Len(t, got.Removed, 1)
	})
}

func TestSanitize_StructureAware(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{
			name: "import inside string literal survives",
			code: "msg = \"do not import json here\"\nprint(msg)",
		},
		{
			name: "import at start of string survives",
			code: "msg = 'import os'\nprint(msg)",
		},
		{
			name: "import inside triple quoted block survives",
			code: "doc = \"\"\"\nimport os\nfrom sys import path\n\"\"\"\nprint(doc)",
		},
		{
			name: "commented import survives",
			code: "# import json\nx = 1",
		},
		{
			name: "identifier containing import survives",
			code: "important = 1\nprint(important)",
		},
		{
			name: "call named like load inside expression survives",
			code: "x = preload(\"data\")\nprint(x)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.code)
			assert.Equal(t, tt.code, got.Cleaned, "structure-aware scan must not alter non-import code")
			assert.Empty(t, got.Removed)
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	codes := []string{
		"import json\nfrom datetime import timedelta\nresult = 1",
		"doc = \"\"\"\nimport os\n\"\"\"\nimport re\nprint(doc)",
		"x = 1",
		"",
	}
	for _, code := range codes {
		first := Sanitize(code)
		second := Sanitize(first.Cleaned)
		assert.Equal(t, first.Cleaned, second.Cleaned)
		assert.Empty(t, second.Removed)
	}
}

func TestSanitize_TripleQuoteStateAcrossImportLine(t *testing.T) {
	// A triple-quoted block opened before an import-looking line keeps the
	// line intact.
	code := "s = '''start\nimport hidden\nend'''\nimport real\nprint(s)"
	got := Sanitize(code)
	assert.Contains(t, got.Cleaned, "import hidden")
	assert.NotContains(t, got.Cleaned, "import real")
	assert.Equal(t, []string{"import real"}, got.Removed)
}
