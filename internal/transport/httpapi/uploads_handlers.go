package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/gin-gonic/gin"

	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/domain/archive"
	"gamepub/internal/errs"
	"gamepub/internal/usecase/upload"
)

// spoolFiles keeps each session's archive on disk while the session may still read it.
type spoolFiles struct {
	mu    sync.Mutex
	files map[string]*os.File
}

func newSpoolFiles() *spoolFiles {
	return &spoolFiles{files: make(map[string]*os.File)}
}

func spool(src io.Reader) (*os.File, int64, error) {
	tmp, err := os.CreateTemp("", "gamepub-upload-*")
	if err != nil {
		return nil, 0, errs.Wrap(err, "create spool file")
	}
	n, err := io.Copy(tmp, src)
	if err != nil {
		discard(tmp)
		return nil, 0, errs.Wrap(err, "spool upload")
	}
	return tmp, n, nil
}

func discard(f *os.File) {
	if f == nil {
		return
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
}

func (s *spoolFiles) replace(id string, f *os.File) {
	s.mu.Lock()
	prev := s.files[id]
	s.files[id] = f
	s.mu.Unlock()
	discard(prev)
}

func (s *spoolFiles) release(id string) {
	s.mu.Lock()
	f := s.files[id]
	delete(s.files, id)
	s.mu.Unlock()
	discard(f)
}

func (s *spoolFiles) closeAll() {
	s.mu.Lock()
	files := s.files
	s.files = make(map[string]*os.File)
	s.mu.Unlock()
	for _, f := range files {
		discard(f)
	}
}

func (s *Server) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes+multipartSlack)
}

func formFileError(err error) error {
	return errs.WithKind(errs.Wrap(err, "read multipart field \"file\""), errs.KindValidation)
}

func (s *Server) validateArchive(c *gin.Context) {
	s.limitBody(c)
	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, formFileError(err))
		return
	}
	src, err := fh.Open()
	if err != nil {
		writeError(c, errs.Wrap(err, "open multipart file"))
		return
	}
	defer src.Close()

	c.JSON(http.StatusOK, archive.Validate(src, fh.Size))
}

func (s *Server) createUpload(c *gin.Context) {
	id, m, err := s.uploads.Create(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "state": m.State()})
}

func (s *Server) session(c *gin.Context) (string, *upload.Manager, bool) {
	id := pathParam(c, "id")
	m, err := s.uploads.Get(id, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return "", nil, false
	}
	return id, m, true
}

func (s *Server) getUpload(c *gin.Context) {
	_, m, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, m.State())
}

func (s *Server) deleteUpload(c *gin.Context) {
	id := pathParam(c, "id")
	if err := s.uploads.Remove(c.Request.Context(), id, actorFrom(c)); err != nil {
		writeError(c, err)
		return
	}
	s.files.release(id)
	c.Status(http.StatusNoContent)
}

func (s *Server) setUploadFile(c *gin.Context) {
	id, m, ok := s.session(c)
	if !ok {
		return
	}
	s.limitBody(c)
	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, formFileError(err))
		return
	}
	src, err := fh.Open()
	if err != nil {
		writeError(c, errs.Wrap(err, "open multipart file"))
		return
	}
	defer src.Close()

	// Oversized files are rejected on size alone, so the part is not copied.
	if fh.Size > s.cfg.MaxUploadBytes {
		result := m.SetFile(upload.File{Name: fh.Filename, Size: fh.Size, Source: src})
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}

	tmp, n, err := spool(src)
	if err != nil {
		writeError(c, err)
		return
	}
	result := m.SetFile(upload.File{Name: fh.Filename, Size: n, Source: tmp})
	if !result.Valid {
		discard(tmp)
		if m.State().File == nil {
			s.files.release(id)
		}
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	s.files.replace(id, tmp)
	c.JSON(http.StatusOK, result)
}

func (s *Server) updateUploadManifest(c *gin.Context) {
	_, m, ok := s.session(c)
	if !ok {
		return
	}
	var req upload.Manifest
	if !bindJSON(c, &req) {
		return
	}
	m.UpdateManifest(req)
	c.JSON(http.StatusOK, m.State())
}

func (s *Server) updateUploadMetadata(c *gin.Context) {
	_, m, ok := s.session(c)
	if !ok {
		return
	}
	var req upload.Metadata
	if !bindJSON(c, &req) {
		return
	}
	m.UpdateMetadata(req)
	c.JSON(http.StatusOK, m.State())
}

func (s *Server) validateUpload(c *gin.Context) {
	_, m, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, m.Validate())
}

// startUpload runs the upload inline, or detached from the request when async=true.
func (s *Server) startUpload(c *gin.Context) {
	id, m, ok := s.session(c)
	if !ok {
		return
	}

	if c.Query("async") == "true" {
		ctx := context.WithoutCancel(c.Request.Context())
		go func() {
			if err := m.Upload(ctx); err != nil {
				logging.Warn(ctx, "background upload failed",
					slog.String("session_id", id),
					slog.Any("err", errs.Loggable(err)),
				)
			}
		}()
		c.JSON(http.StatusAccepted, m.State())
		return
	}

	if err := m.Upload(c.Request.Context()); err != nil {
		status, body := errorBody(err)
		body["state"] = m.State()
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, m.State())
}

func (s *Server) resetUpload(c *gin.Context) {
	id, m, ok := s.session(c)
	if !ok {
		return
	}
	m.Reset()
	s.files.release(id)
	c.JSON(http.StatusOK, m.State())
}
