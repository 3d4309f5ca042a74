package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/voice-translator/internal/jobs"
	"github.com/MimeLyc/voice-translator/internal/service"
	"github.com/MimeLyc/voice-translator/pkg/file"
	"github.com/MimeLyc/voice-translator/pkg/icron"
	"github.com/MimeLyc/voice-translator/pkg/log"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
)

const multipartOverhead = 1 << 20

type translateResponse struct {
	JobID           string `json:"job_id"`
	Status          string `json:"status"`
	Transcript      string `json:"transcript,omitempty"`
	TranslatedText  string `json:"translated_text,omitempty"`
	AudioOutputPath string `json:"audio_output_path,omitempty"`
	Backend         string `json:"backend,omitempty"`
	DownloadURL     string `json:"download_url,omitempty"`
	ArtifactURL     string `json:"artifact_url,omitempty"`
}

type progressResponse struct {
	JobID    string      `json:"job_id,omitempty"`
	Status   jobs.Status `json:"status,omitempty"`
	Progress int         `json:"progress"`
}

// handleTranslate accepts a multipart form with inputType, audio, text and
// language. It answers once the pipeline finishes unless async is set.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge), strings.Contains(err.Error(), "request body too large"):
			writeError(w, http.StatusBadRequest, s.fileTooLargeMessage())
			return
		case !errors.Is(err, http.ErrNotMultipart):
			writeError(w, http.StatusBadRequest, "Invalid form data!")
			return
		}
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	req := service.Request{
		InputKind:      jobs.InputKind(strings.ToLower(strings.TrimSpace(r.FormValue("inputType")))),
		Text:           r.FormValue("text"),
		TargetLanguage: strings.ToLower(strings.TrimSpace(r.FormValue("language"))),
	}

	if req.InputKind == jobs.InputAudio {
		upload, header, err := r.FormFile("audio")
		switch {
		case errors.Is(err, http.ErrMissingFile):
			// left empty so the pipeline reports the missing upload
		case err != nil:
			writeError(w, http.StatusBadRequest, "Invalid form data!")
			return
		default:
			defer upload.Close()
			if header.Size > s.maxFileSize {
				writeError(w, http.StatusBadRequest, s.fileTooLargeMessage())
				return
			}
			// rejected before anything touches the upload dir
			if !file.HasExt(header.Filename, s.allowedExts) {
				writeError(w, http.StatusBadRequest, "Invalid file format!")
				return
			}
			saved, err := s.saveUpload(upload, header)
			if err != nil {
				log.Error("Failed to store upload %s: %v", header.Filename, err)
				writeError(w, http.StatusInternalServerError, "Failed to store upload!")
				return
			}
			req.AudioPath = saved
		}
	}

	async, _ := strconv.ParseBool(r.FormValue("async"))
	if async {
		job, state := s.pipeline.Start(s.baseCtx, req)
		go func() { _, _ = s.pipeline.Run(job.ID, state, req) }()
		writeJSON(w, http.StatusAccepted, translateResponse{
			JobID:       job.ID,
			Status:      string(job.Status),
			DownloadURL: downloadURL(job.ID),
		})
		return
	}

	job, state := s.pipeline.Start(r.Context(), req)
	result, err := s.pipeline.Run(job.ID, state, req)
	if err != nil {
		writePipelineError(w, job.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{
		JobID:           result.JobID,
		Status:          string(jobs.StatusSuccess),
		Transcript:      result.Transcript,
		TranslatedText:  result.TranslatedText,
		AudioOutputPath: result.AudioOutputPath,
		Backend:         string(result.Backend),
		DownloadURL:     downloadURL(result.JobID),
		ArtifactURL:     result.ArtifactURL,
	})
}

func (s *Server) saveUpload(src multipart.File, header *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%d_%s", time.Now().UnixNano(), file.SafeName(header.Filename))
	dst := filepath.Join(s.uploadDir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	return dst, nil
}

func (s *Server) fileTooLargeMessage() string {
	return fmt.Sprintf("File size exceeds %s!", humanize.Bytes(uint64(s.maxFileSize)))
}

func downloadURL(jobID string) string {
	return "/api/jobs/" + jobID + "/download"
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Registry().List())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.pipeline.Registry().Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleLatestProgress(w http.ResponseWriter, _ *http.Request) {
	job, ok := s.pipeline.Registry().Latest()
	if !ok {
		writeJSON(w, http.StatusOK, progressResponse{})
		return
	}
	writeJSON(w, http.StatusOK, progressOf(job))
}

func (s *Server) handleJobProgress(w http.ResponseWriter, r *http.Request) {
	job, ok := s.pipeline.Registry().Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, progressOf(job))
}

func progressOf(job *jobs.Job) progressResponse {
	return progressResponse{JobID: job.ID, Status: job.Status, Progress: job.Progress}
}

func (s *Server) handleLatestCancel(w http.ResponseWriter, _ *http.Request) {
	job, ok := s.pipeline.Registry().Latest()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"cancelled": false})
		return
	}
	s.cancel(w, job.ID)
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.pipeline.Registry().Get(id); !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.cancel(w, id)
}

func (s *Server) cancel(w http.ResponseWriter, id string) {
	cancelled := s.pipeline.Registry().Cancel(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":    id,
		"cancelled": cancelled,
	})
}

func (s *Server) handleLatestDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := s.pipeline.Registry().Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "No translated audio available!")
		return
	}
	serveArtifact(w, r, job)
}

func (s *Server) handleJobDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := s.pipeline.Registry().Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	serveArtifact(w, r, job)
}

// serveArtifact sends the artifact as translated_audio.<ext>, the extension
// following whichever backend produced it.
func serveArtifact(w http.ResponseWriter, r *http.Request, job *jobs.Job) {
	if job.Status != jobs.StatusSuccess || job.ArtifactPath == "" {
		writeError(w, http.StatusNotFound, "No translated audio available!")
		return
	}
	if _, err := os.Stat(job.ArtifactPath); err != nil {
		writeError(w, http.StatusNotFound, "No translated audio available!")
		return
	}

	ext := file.Ext(job.ArtifactPath)
	switch ext {
	case "wav":
		w.Header().Set("Content-Type", "audio/wav")
	case "mp3":
		w.Header().Set("Content-Type", "audio/mpeg")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="translated_audio.%s"`, ext))
	http.ServeFile(w, r, job.ArtifactPath)
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default_speaker": s.languages.DefaultSpeaker(),
		"languages":       s.languages.Languages(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.synthesis != nil {
		resp["synthesis"] = s.synthesis.Selection()
	}
	if s.cleanupCron != "" {
		if info, err := icron.GetTriggerInfo(s.cleanupCron, time.Now()); err == nil {
			resp["cleanup"] = info
		}
	}
	if job, ok := s.pipeline.Registry().Latest(); ok {
		resp["latest_job"] = progressOf(job)
	}
	writeJSON(w, http.StatusOK, resp)
}

// writePipelineError maps a pipeline failure to its HTTP status and the
// message shown to the user.
func writePipelineError(w http.ResponseWriter, jobID string, err error) {
	perr, ok := service.AsPipelineError(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"job_id":        jobID,
			"error_message": "Unexpected error!",
		})
		return
	}
	writeJSON(w, statusFor(perr.Type), map[string]any{
		"job_id":        jobID,
		"error_type":    perr.Type.String(),
		"error_message": perr.UserMessage(),
	})
}

func statusFor(t service.ErrorType) int {
	switch {
	case t.IsInput(), t == service.ErrSourceMissing:
		return http.StatusBadRequest
	case t == service.ErrCancelled:
		return http.StatusConflict
	case t == service.ErrServiceUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error_message": msg,
	})
}
