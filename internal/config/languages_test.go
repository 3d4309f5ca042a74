package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultLanguageTable(t *testing.T) {
	table := DefaultLanguageTable()

	assert.Equal(t, 10, table.Len())
	assert.Equal(t, "Tamil", table.Name("ta"))
	assert.Equal(t, "ja_001", table.Speaker("ja"))
	assert.Equal(t, "en_001", table.Speaker("xx"))
	assert.Equal(t, "xx", table.Name("xx"))
	assert.False(t, table.Has("pt"))

	langs := table.Languages()
	require.Len(t, langs, 10)
	assert.Equal(t, "en", langs[0].Code)
	assert.Equal(t, "ta", langs[9].Code)
}

func TestNewLanguageTable_FillsNameFromTag(t *testing.T) {
	table, err := NewLanguageTable("", []Language{{Code: "PT"}})
	require.NoError(t, err)

	assert.True(t, table.Has("pt"))
	assert.Equal(t, "Portuguese", table.Name("pt"))
	assert.Equal(t, "pt_001", table.Speaker("pt"))
	assert.Equal(t, DefaultSpeaker, table.DefaultSpeaker())
}

func TestNewLanguageTable_Rejects(t *testing.T) {
	_, err := NewLanguageTable("", []Language{{Code: ""}})
	require.Error(t, err)

	_, err = NewLanguageTable("", []Language{{Code: "not a tag!"}})
	require.Error(t, err)

	_, err = NewLanguageTable("", []Language{{Code: "en"}, {Code: "en"}})
	require.Error(t, err)
}

func TestLoadLanguageTable(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "langs.yaml")
	writeFile(t, path, "default_speaker: de_001\nlanguages:\n  - code: de\n    speaker: de_002\n  - code: fr\n")
	table, err := LoadLanguageTable(path)
	require.NoError(t, err)
	assert.Equal(t, "de_002", table.Speaker("de"))
	assert.Equal(t, "de_001", table.Speaker("es"))
	assert.Equal(t, "German", table.Name("de"))
	assert.Equal(t, []string{"de", "fr"}, table.Codes())

	empty := filepath.Join(dir, "empty.yaml")
	writeFile(t, empty, "languages: []\n")
	_, err = LoadLanguageTable(empty)
	require.Error(t, err)

	_, err = LoadLanguageTable(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
