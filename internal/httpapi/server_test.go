package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MimeLyc/voice-translator/internal/config"
	"github.com/MimeLyc/voice-translator/internal/jobs"
	"github.com/MimeLyc/voice-translator/internal/service"
	"github.com/MimeLyc/voice-translator/internal/synth"
	"github.com/MimeLyc/voice-translator/pkg/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passNormalizer struct{}

func (passNormalizer) Normalize(_ context.Context, src string) (string, error) { return src, nil }

type stubRecognizer struct{ err error }

func (r stubRecognizer) Recognize(context.Context, string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "hello", nil
}

type stubTranslator struct {
	calls int32
	err   error
	block chan struct{}
}

func (t *stubTranslator) Translate(ctx context.Context, _, _, _ string) (string, error) {
	atomic.AddInt32(&t.calls, 1)
	if t.block != nil {
		select {
		case <-t.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if t.err != nil {
		return "", t.err
	}
	return "bonjour", nil
}

type stubSynth struct{ dir string }

func (s stubSynth) Synthesize(_ context.Context, name, text, _ string) (*synth.Artifact, error) {
	path := filepath.Join(s.dir, name+".wav")
	if err := os.WriteFile(path, []byte("RIFF"+text), 0o644); err != nil {
		return nil, err
	}
	return &synth.Artifact{Path: path, Ext: "wav", Backend: synth.BackendNeural}, nil
}

type stubSelection struct{}

func (stubSelection) Selection() synth.Selection {
	return synth.Selection{State: synth.StateNeuralReady, Backend: synth.BackendNeural, Device: "cpu"}
}

type fixture struct {
	tr        *stubTranslator
	server    *Server
	uploadDir string
}

func newFixture(t *testing.T, rec stubRecognizer, opts ...Option) *fixture {
	t.Helper()
	tmp := t.TempDir()
	f := &fixture{tr: &stubTranslator{}, uploadDir: filepath.Join(tmp, "uploads")}
	outDir := filepath.Join(tmp, "output")
	require.NoError(t, os.MkdirAll(outDir, 0o755))

	langs := config.DefaultLanguageTable()
	orch := service.New(service.Dependencies{
		Normalizer:  passNormalizer{},
		Recognizer:  rec,
		Translator:  f.tr,
		Synthesizer: stubSynth{dir: outDir},
		Languages:   langs,
	}, service.Options{MaxTextLength: 20})

	opts = append([]Option{WithUploads(f.uploadDir, 1024), WithPollInterval(10 * time.Millisecond)}, opts...)
	f.server = NewServer(orch, langs, opts...)
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func formRequest(t *testing.T, fields map[string]string, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		part, err := mw.CreateFormFile("audio", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/translate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestTranslate_TextThenDownload(t *testing.T) {
	f := newFixture(t, stubRecognizer{})

	rec := f.do(formRequest(t, map[string]string{"inputType": "text", "text": "hello", "language": "fr"}, "", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "hello", body["transcript"])
	assert.Equal(t, "bonjour", body["translated_text"])
	assert.Equal(t, "neural", body["backend"])
	assert.True(t, strings.HasSuffix(body["audio_output_path"].(string), ".wav"))
	jobID := body["job_id"].(string)
	assert.Equal(t, "/api/jobs/"+jobID+"/download", body["download_url"])

	for _, url := range []string{"/download", "/api/jobs/" + jobID + "/download"} {
		dl := f.do(httptest.NewRequest(http.MethodGet, url, nil))
		require.Equal(t, http.StatusOK, dl.Code, url)
		assert.Equal(t, `attachment; filename="translated_audio.wav"`, dl.Header().Get("Content-Disposition"))
		assert.Equal(t, "audio/wav", dl.Header().Get("Content-Type"))
		assert.Equal(t, "RIFFbonjour", dl.Body.String())
	}

	progress := f.do(httptest.NewRequest(http.MethodGet, "/progress", nil))
	assert.Equal(t, float64(100), decode(t, progress)["progress"])
}

func TestTranslate_AudioUploadIsStored(t *testing.T) {
	f := newFixture(t, stubRecognizer{})

	rec := f.do(formRequest(t, map[string]string{"inputType": "audio", "language": "es"}, "../my clip.mp3", []byte("ID3")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries, err := os.ReadDir(f.uploadDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "my_clip.mp3"), entries[0].Name())
}

func TestTranslate_BadExtensionNeverStored(t *testing.T) {
	f := newFixture(t, stubRecognizer{}, WithAllowedExtensions([]string{"wav"}))

	rec := f.do(formRequest(t, map[string]string{"inputType": "audio", "language": "es"}, "clip.mp3", []byte("ID3")))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "Invalid file format!", decode(t, rec)["error_message"])

	entries, err := os.ReadDir(f.uploadDir)
	if !os.IsNotExist(err) {
		require.NoError(t, err)
	}
	assert.Empty(t, entries)
}

func TestTranslate_Rejections(t *testing.T) {
	cases := []struct {
		name     string
		fields   map[string]string
		file     string
		content  []byte
		wantCode int
		wantMsg  string
	}{
		{
			name:     "unsupported extension",
			fields:   map[string]string{"inputType": "audio", "language": "fr"},
			file:     "audio.xyz",
			content:  []byte("x"),
			wantCode: http.StatusBadRequest,
			wantMsg:  "Invalid file format!",
		},
		{
			name:     "missing upload",
			fields:   map[string]string{"inputType": "audio", "language": "fr"},
			wantCode: http.StatusBadRequest,
			wantMsg:  "No audio file uploaded!",
		},
		{
			name:     "too large",
			fields:   map[string]string{"inputType": "audio", "language": "fr"},
			file:     "big.wav",
			content:  bytes.Repeat([]byte("a"), 2048),
			wantCode: http.StatusBadRequest,
			wantMsg:  "File size exceeds 1.0 kB!",
		},
		{
			name:     "empty text",
			fields:   map[string]string{"inputType": "text", "text": "", "language": "fr"},
			wantCode: http.StatusBadRequest,
			wantMsg:  "No text entered!",
		},
		{
			name:     "text too long",
			fields:   map[string]string{"inputType": "text", "text": strings.Repeat("a", 21), "language": "fr"},
			wantCode: http.StatusBadRequest,
			wantMsg:  "Text exceeds 20 characters!",
		},
		{
			name:     "bad input type",
			fields:   map[string]string{"inputType": "video", "language": "fr"},
			wantCode: http.StatusBadRequest,
			wantMsg:  "Invalid input type!",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, stubRecognizer{})
			rec := f.do(formRequest(t, tc.fields, tc.file, tc.content))
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantMsg, decode(t, rec)["error_message"])
			assert.Zero(t, atomic.LoadInt32(&f.tr.calls))
		})
	}
}

func TestTranslate_StageFailureStatus(t *testing.T) {
	f := newFixture(t, stubRecognizer{})
	f.tr.err = errors.New("quota exceeded")
	rec := f.do(formRequest(t, map[string]string{"inputType": "text", "text": "hello", "language": "de"}, "", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Translation failed!", body["error_message"])
	assert.Equal(t, "TranslationFailed", body["error_type"])

	down := newFixture(t, stubRecognizer{err: errors.New("503 from upstream")})
	rec = down.do(formRequest(t, map[string]string{"inputType": "audio", "language": "de"}, "a.wav", []byte("RIFF")))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Speech recognition failed!", decode(t, rec)["error_message"])

	dl := down.do(httptest.NewRequest(http.MethodGet, "/download", nil))
	assert.Equal(t, http.StatusNotFound, dl.Code)
}

func TestCancel_LatestJob(t *testing.T) {
	f := newFixture(t, stubRecognizer{})
	f.tr.block = make(chan struct{})

	rec := f.do(formRequest(t, map[string]string{"inputType": "text", "text": "hello", "language": "fr", "async": "true"}, "", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID := decode(t, rec)["job_id"].(string)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&f.tr.calls) == 1 }, time.Second, 5*time.Millisecond)

	cancel := f.do(httptest.NewRequest(http.MethodPost, "/cancel", nil))
	require.Equal(t, http.StatusOK, cancel.Code)
	assert.Equal(t, true, decode(t, cancel)["cancelled"])

	require.Eventually(t, func() bool {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID, nil))
		return decode(t, rec)["status"] == string(jobs.StatusCancelled)
	}, 2*time.Second, 10*time.Millisecond)

	progress := f.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/progress", nil))
	assert.Equal(t, float64(0), decode(t, progress)["progress"])

	again := f.do(httptest.NewRequest(http.MethodPost, "/api/jobs/"+jobID+"/cancel", nil))
	assert.Equal(t, false, decode(t, again)["cancelled"])
}

func TestCancel_LoggedOnce(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "server.log")
	fl, err := log.NewFileLogger(logPath, log.LevelInfo)
	require.NoError(t, err)
	prev := log.GetLogger()
	log.SetLogger(fl.Logger)
	t.Cleanup(func() {
		log.SetLogger(prev)
		_ = fl.Close()
	})

	f := newFixture(t, stubRecognizer{})
	f.tr.block = make(chan struct{})
	rec := f.do(formRequest(t, map[string]string{"inputType": "text", "text": "hello", "language": "fr", "async": "true"}, "", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID := decode(t, rec)["job_id"].(string)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&f.tr.calls) == 1 }, time.Second, 5*time.Millisecond)

	cancel := f.do(httptest.NewRequest(http.MethodPost, "/api/jobs/"+jobID+"/cancel", nil))
	require.Equal(t, true, decode(t, cancel)["cancelled"])
	require.Eventually(t, func() bool {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID, nil))
		return decode(t, rec)["status"] == string(jobs.StatusCancelled)
	}, 2*time.Second, 10*time.Millisecond)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "cancellation requested"), string(data))
}

func TestJobs_NotFound(t *testing.T) {
	f := newFixture(t, stubRecognizer{})
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil),
		httptest.NewRequest(http.MethodGet, "/api/jobs/nope/progress", nil),
		httptest.NewRequest(http.MethodPost, "/api/jobs/nope/cancel", nil),
		httptest.NewRequest(http.MethodGet, "/api/jobs/nope/download", nil),
	} {
		assert.Equal(t, http.StatusNotFound, f.do(req).Code, req.URL.Path)
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/progress", nil))
	assert.Equal(t, float64(0), decode(t, rec)["progress"])

	list := f.do(httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	assert.Equal(t, "[]\n", list.Body.String())
}

func TestLanguagesAndHealth(t *testing.T) {
	f := newFixture(t, stubRecognizer{}, WithHealth(stubSelection{}, "@hourly"))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/languages", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var langs struct {
		DefaultSpeaker string            `json:"default_speaker"`
		Languages      []config.Language `json:"languages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &langs))
	assert.Equal(t, config.DefaultSpeaker, langs.DefaultSpeaker)
	assert.Len(t, langs.Languages, 10)

	health := decode(t, f.do(httptest.NewRequest(http.MethodGet, "/api/health", nil)))
	assert.Equal(t, "ok", health["status"])
	synthesis := health["synthesis"].(map[string]any)
	assert.Equal(t, "neural", synthesis["backend"])
	assert.Equal(t, "@hourly", health["cleanup"].(map[string]any)["expression"])
}

func TestSubmitRateLimit(t *testing.T) {
	f := newFixture(t, stubRecognizer{}, WithSubmitRateLimit(1))
	fields := map[string]string{"inputType": "text", "text": "hello", "language": "fr"}

	assert.Equal(t, http.StatusOK, f.do(formRequest(t, fields, "", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(formRequest(t, fields, "", nil)).Code)
}

func TestProgressStream_SendsLatest(t *testing.T) {
	f := newFixture(t, stubRecognizer{})
	f.do(formRequest(t, map[string]string{"inputType": "text", "text": "hello", "language": "fr"}, "", nil))

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/progress/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "), line)
	var event progressResponse
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
	assert.Equal(t, 100, event.Progress)
	assert.Equal(t, jobs.StatusSuccess, event.Status)
}

func TestJobSocket_StreamsUntilTerminal(t *testing.T) {
	f := newFixture(t, stubRecognizer{})
	f.tr.block = make(chan struct{})

	rec := f.do(formRequest(t, map[string]string{"inputType": "text", "text": "hello", "language": "fr", "async": "1"}, "", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID := decode(t, rec)["job_id"].(string)

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/jobs/"+jobID+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var first progressResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, jobID, first.JobID)
	assert.False(t, first.Status.Terminal())

	close(f.tr.block)

	var last progressResponse
	for {
		var msg progressResponse
		if err := conn.ReadJSON(&msg); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
		last = msg
	}
	assert.Equal(t, jobs.StatusSuccess, last.Status)
	assert.Equal(t, 100, last.Progress)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(service.ErrInvalidInput))
	assert.Equal(t, http.StatusBadRequest, statusFor(service.ErrTextTooLong))
	assert.Equal(t, http.StatusConflict, statusFor(service.ErrCancelled))
	assert.Equal(t, http.StatusBadGateway, statusFor(service.ErrServiceUnavailable))
	assert.Equal(t, http.StatusInternalServerError, statusFor(service.ErrSynthesisFailed))
}
