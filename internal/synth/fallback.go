package synth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxChunkRunes is the longest text the translate_tts endpoint accepts per call.
const maxChunkRunes = 100

// Fallback is a lightweight cloud synthesizer that writes MP3.
type Fallback interface {
	Synthesize(ctx context.Context, text, lang string, w io.Writer) error
}

// googleTTS calls the public translate_tts endpoint chunk by chunk and
// concatenates the MP3 frames.
type googleTTS struct {
	endpoint string
	http     *http.Client
}

func NewGoogleTTS(endpoint string, client *http.Client) Fallback {
	if endpoint == "" {
		endpoint = "https://translate.google.com/translate_tts"
	}
	if client == nil {
		client = &http.Client{}
	}
	return &googleTTS{endpoint: endpoint, http: client}
}

func (g *googleTTS) Synthesize(ctx context.Context, text, lang string, w io.Writer) error {
	chunks := splitText(text, maxChunkRunes)
	if len(chunks) == 0 {
		return fmt.Errorf("nothing to synthesize")
	}
	for i, chunk := range chunks {
		if err := g.fetch(ctx, chunk, lang, i, len(chunks), w); err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func (g *googleTTS) fetch(ctx context.Context, chunk, lang string, idx, total int, w io.Writer) error {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", chunk)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tts http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("empty audio response")
	}
	return nil
}

// splitText breaks text into pieces of at most limit runes, preferring
// whitespace and punctuation boundaries.
func splitText(text string, limit int) []string {
	var chunks []string
	rest := []rune(strings.TrimSpace(text))
	for len(rest) > 0 {
		if len(rest) <= limit {
			chunks = append(chunks, string(rest))
			break
		}
		cut := limit
		for i := limit; i > limit/2; i-- {
			if unicode.IsSpace(rest[i]) || unicode.IsPunct(rest[i-1]) {
				cut = i
				break
			}
		}
		piece := strings.TrimSpace(string(rest[:cut]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
		rest = []rune(strings.TrimSpace(string(rest[cut:])))
	}
	return chunks
}
