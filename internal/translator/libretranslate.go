package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// LibreTranslate talks to a LibreTranslate compatible /translate endpoint.
type LibreTranslate struct {
	base   string
	apiKey string
	http   *http.Client
}

func NewLibreTranslate(base, apiKey string, client *http.Client) *LibreTranslate {
	if client == nil {
		client = &http.Client{}
	}
	return &LibreTranslate{
		base:   strings.TrimRight(base, "/"),
		apiKey: apiKey,
		http:   client,
	}
}

func (c *LibreTranslate) Translate(ctx context.Context, text, source, target string) (string, error) {
	src := strings.TrimSpace(source)
	if src == "" {
		src = AutoDetect
	}

	payload := map[string]any{
		"q":      text,
		"source": src,
		"target": target,
		"format": "text",
	}
	if c.apiKey != "" {
		payload["api_key"] = c.apiKey
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/translate", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("libretranslate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("libretranslate http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var lr struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", fmt.Errorf("decode libretranslate: %w", err)
	}

	out := strings.TrimSpace(lr.TranslatedText)
	if out == "" {
		return "", ErrEmptyTranslation
	}
	return out, nil
}
