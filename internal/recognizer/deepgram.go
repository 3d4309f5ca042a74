package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// maxDeepgramResponse bounds the transcript payload read into memory.
const maxDeepgramResponse = 4 << 20

// Deepgram posts the raw WAV to the prerecorded listen endpoint.
type Deepgram struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewDeepgram(apiKey, endpoint string, client *http.Client) *Deepgram {
	if endpoint == "" {
		endpoint = "https://api.deepgram.com/v1/listen"
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Deepgram{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   client,
	}
}

func (c *Deepgram) Recognize(ctx context.Context, wavPath string) (string, error) {
	if err := checkSource(wavPath); err != nil {
		return "", err
	}
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceMissing, err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.endpoint+"?model=nova-2&smart_format=true&detect_language=true",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", unavailable(err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", unavailable(fmt.Errorf("deepgram request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", unavailable(fmt.Errorf("deepgram status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDeepgramResponse))
	if err != nil {
		return "", unavailable(fmt.Errorf("read deepgram response: %w", err))
	}

	var parsed struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", unavailable(fmt.Errorf("decode deepgram: %w", err))
	}

	if len(parsed.Results.Channels) == 0 ||
		len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", ErrUnintelligible
	}
	text := strings.TrimSpace(parsed.Results.Channels[0].Alternatives[0].Transcript)
	if text == "" {
		return "", ErrUnintelligible
	}
	return text, nil
}
