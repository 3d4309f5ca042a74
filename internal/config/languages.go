package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"gopkg.in/yaml.v3"
)

// DefaultSpeaker is used when a language has no speaker of its own.
const DefaultSpeaker = "en_001"

// Language is one supported target language.
type Language struct {
	Code    string `json:"code" yaml:"code"`
	Name    string `json:"name" yaml:"name"`
	Speaker string `json:"speaker" yaml:"speaker"`
}

// LanguageTable maps language codes to display names and synthesis speakers.
// It is immutable once built.
type LanguageTable struct {
	defaultSpeaker string
	order          []string
	byCode         map[string]Language
}

type languageFile struct {
	DefaultSpeaker string     `yaml:"default_speaker"`
	Languages      []Language `yaml:"languages"`
}

var defaultLanguages = []Language{
	{Code: "en", Name: "English"},
	{Code: "fr", Name: "French"},
	{Code: "es", Name: "Spanish"},
	{Code: "de", Name: "German"},
	{Code: "hi", Name: "Hindi"},
	{Code: "ar", Name: "Arabic"},
	{Code: "it", Name: "Italian"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "ta", Name: "Tamil"},
}

// DefaultLanguageTable returns the built-in ten-language table.
func DefaultLanguageTable() LanguageTable {
	table, err := NewLanguageTable(DefaultSpeaker, defaultLanguages)
	if err != nil {
		panic(fmt.Sprintf("built-in language table is invalid: %v", err))
	}
	return table
}

// NewLanguageTable validates codes and fills missing names and speakers.
func NewLanguageTable(defaultSpeaker string, langs []Language) (LanguageTable, error) {
	if defaultSpeaker == "" {
		defaultSpeaker = DefaultSpeaker
	}
	table := LanguageTable{
		defaultSpeaker: defaultSpeaker,
		byCode:         make(map[string]Language, len(langs)),
	}
	for _, l := range langs {
		code := strings.ToLower(strings.TrimSpace(l.Code))
		if code == "" {
			return LanguageTable{}, fmt.Errorf("language entry without code")
		}
		tag, err := language.Parse(code)
		if err != nil {
			return LanguageTable{}, fmt.Errorf("invalid language code %q: %w", code, err)
		}
		if _, dup := table.byCode[code]; dup {
			return LanguageTable{}, fmt.Errorf("duplicate language code %q", code)
		}
		if l.Name == "" {
			l.Name = display.English.Tags().Name(tag)
		}
		if l.Speaker == "" {
			l.Speaker = code + "_001"
		}
		l.Code = code
		table.byCode[code] = l
		table.order = append(table.order, code)
	}
	return table, nil
}

// LoadLanguageTable reads a YAML table:
//
//	default_speaker: en_001
//	languages:
//	  - code: en
//	    name: English
//	  - code: pt
func LoadLanguageTable(path string) (LanguageTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LanguageTable{}, err
	}
	var f languageFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return LanguageTable{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Languages) == 0 {
		return LanguageTable{}, fmt.Errorf("%s defines no languages", path)
	}
	return NewLanguageTable(f.DefaultSpeaker, f.Languages)
}

func (t LanguageTable) Len() int { return len(t.order) }

func (t LanguageTable) Has(code string) bool {
	_, ok := t.byCode[code]
	return ok
}

// Name returns the display name, or the code itself when unknown.
func (t LanguageTable) Name(code string) string {
	if l, ok := t.byCode[code]; ok {
		return l.Name
	}
	return code
}

// Speaker returns the speaker for code, falling back to the default speaker.
func (t LanguageTable) Speaker(code string) string {
	if l, ok := t.byCode[code]; ok && l.Speaker != "" {
		return l.Speaker
	}
	return t.DefaultSpeaker()
}

func (t LanguageTable) DefaultSpeaker() string {
	if t.defaultSpeaker == "" {
		return DefaultSpeaker
	}
	return t.defaultSpeaker
}

// Languages lists entries in table order.
func (t LanguageTable) Languages() []Language {
	out := make([]Language, 0, len(t.order))
	for _, code := range t.order {
		out = append(out, t.byCode[code])
	}
	return out
}

// Codes returns the sorted language codes.
func (t LanguageTable) Codes() []string {
	codes := append([]string(nil), t.order...)
	sort.Strings(codes)
	return codes
}
