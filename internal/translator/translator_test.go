package translator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MimeLyc/voice-translator/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibreTranslate_Translate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"translatedText":" Hola "}`))
	}))
	defer srv.Close()

	out, err := NewLibreTranslate(srv.URL+"/", "lt-key", srv.Client()).Translate(context.Background(), "Hello", "", "es")
	require.NoError(t, err)
	assert.Equal(t, "Hola", out)
	assert.Equal(t, "auto", got["source"])
	assert.Equal(t, "es", got["target"])
	assert.Equal(t, "lt-key", got["api_key"])
}

func TestLibreTranslate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http error", status: http.StatusBadRequest, body: `{"error":"bad target"}`},
		{name: "empty text", status: http.StatusOK, body: `{"translatedText":""}`},
		{name: "bad json", status: http.StatusOK, body: `nope`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewLibreTranslate(srv.URL, "", srv.Client()).Translate(context.Background(), "Hello", "en", "fr")
			assert.Error(t, err)
		})
	}
}

func TestOpenAI_Translate(t *testing.T) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Guten Tag"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	tr := NewOpenAI("sk-test", srv.URL, "", config.DefaultLanguageTable())
	out, err := tr.Translate(context.Background(), "Good day", "en", "de")
	require.NoError(t, err)
	assert.Equal(t, "Guten Tag", out)

	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "from English into German")
	assert.Equal(t, "Good day", req.Messages[1].Content)
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("sk-test", srv.URL, "m", config.DefaultLanguageTable()).Translate(context.Background(), "hi", AutoDetect, "fr")
	assert.ErrorIs(t, err, ErrEmptyTranslation)
}

func TestDetectSource(t *testing.T) {
	english := strings.Repeat("The quick brown fox jumps over the lazy dog while the children are playing in the garden. ", 4)
	assert.Equal(t, "en", DetectSource(english))
	assert.Equal(t, AutoDetect, DetectSource(""))
}

func TestNew_SelectsProvider(t *testing.T) {
	langs := config.DefaultLanguageTable()

	tr, err := New(config.TranslationConfig{Provider: config.ProviderLibreTranslate, LibreTranslateURL: "http://lt"}, langs)
	require.NoError(t, err)
	assert.IsType(t, &LibreTranslate{}, tr)

	tr, err = New(config.TranslationConfig{Provider: config.ProviderOpenAI, OpenAIAPIKey: "k"}, langs)
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, tr)

	_, err = New(config.TranslationConfig{Provider: "babelfish"}, langs)
	assert.Error(t, err)
}
