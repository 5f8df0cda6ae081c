package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/domain/archive"
	"gamepub/internal/domain/version"
	"gamepub/internal/errs"
	"gamepub/internal/ports"
)

const (
	DefaultMaxFileSize int64 = 100 * 1024 * 1024
)

// File is a candidate archive. Source must stay readable until the upload ends.
type File struct {
	Name   string
	Size   int64
	Source io.ReaderAt
}

type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Manifest is the working copy of the fields the archive manifest can supply.
type Manifest struct {
	GameID     string `json:"gameId"`
	Version    string `json:"version"`
	Runtime    string `json:"runtime"`
	EntryPoint string `json:"entryPoint"`
}

type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Grade       string   `json:"grade"`
	Subject     string   `json:"subject"`
	Skills      []string `json:"skills"`
	Themes      []string `json:"themes"`
	Level       string   `json:"level"`
	LinkGithub  string   `json:"linkGithub"`
}

func (m Metadata) clone() Metadata {
	m.Skills = append([]string(nil), m.Skills...)
	m.Themes = append([]string(nil), m.Themes...)
	return m
}

// State is a point-in-time snapshot of a session.
type State struct {
	File      *FileInfo          `json:"file,omitempty"`
	Manifest  Manifest           `json:"manifest"`
	Metadata  Metadata           `json:"metadata"`
	Stage     Stage              `json:"stage"`
	Progress  int                `json:"progress"`
	Error     string             `json:"error,omitempty"`
	Archive   *archive.Result    `json:"archive,omitempty"`
	Receipt   *ports.BlobReceipt `json:"receipt,omitempty"`
	VersionID string             `json:"versionId,omitempty"`
}

func (s State) clone() State {
	out := s
	out.Metadata = s.Metadata.clone()
	if s.File != nil {
		f := *s.File
		out.File = &f
	}
	if s.Archive != nil {
		a := *s.Archive
		a.Errors = append([]string(nil), a.Errors...)
		a.Warnings = append([]string(nil), a.Warnings...)
		if a.Manifest != nil {
			m := *a.Manifest
			a.Manifest = &m
		}
		out.Archive = &a
	}
	if s.Receipt != nil {
		r := *s.Receipt
		out.Receipt = &r
	}
	return out
}

// FileCheckResult is the outcome of SetFile.
type FileCheckResult struct {
	Valid    bool            `json:"valid"`
	Errors   []string        `json:"errors"`
	Warnings []string        `json:"warnings"`
	Archive  *archive.Result `json:"archive,omitempty"`
}

// ValidationResult lists every cross-field violation, not only the first.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// MetadataUpdate is what stage two writes to the version record.
type MetadataUpdate struct {
	Version     string
	Runtime     string
	EntryPoint  string
	StoragePath string
	Metadata    Metadata
	Actor       ports.Actor
}

// MetadataStore persists the version record after a successful transfer and
// returns the version id it wrote. CheckUpload runs before any bytes are
// transferred and rejects targets the actor may not replace.
type MetadataStore interface {
	CheckUpload(ctx context.Context, gameID string, versionNumber string, actor ports.Actor) error
	UpdateMetadata(ctx context.Context, gameID string, update MetadataUpdate) (string, error)
}

type Options struct {
	MaxFileSize       int64
	AllowedExtensions []string
	// StageTimeout bounds each network stage when positive.
	StageTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	exts := make([]string, 0, len(o.AllowedExtensions))
	for _, ext := range o.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = []string{".zip"}
	}
	o.AllowedExtensions = exts
	return o
}

type subscriber struct {
	id uint64
	fn func(State)
}

// Manager drives one upload session. It is safe for concurrent use; at most one
// Upload runs at a time.
type Manager struct {
	blobs    ports.BlobStore
	metadata MetadataStore
	actor    ports.Actor
	opts     Options

	// notifyMu orders whole mutations, delivery included, so subscribers see
	// snapshots in the order they were produced.
	notifyMu sync.Mutex

	mu          sync.Mutex
	state       State
	file        *File
	generation  uint64
	running     bool
	nextSubID   uint64
	subscribers []subscriber
}

func NewManager(blobs ports.BlobStore, metadata MetadataStore, actor ports.Actor, opts Options) *Manager {
	return &Manager{
		blobs:    blobs,
		metadata: metadata,
		actor:    actor,
		opts:     opts.withDefaults(),
		state:    State{Stage: StageIdle},
	}
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Subscribe registers fn for every state change. Subscribers run synchronously,
// in registration order, and must not block or call methods that change the session.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	m.nextSubID++
	id := m.nextSubID
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subscribers {
				if s.id == id {
					m.subscribers = append(m.subscribers[:i:i], m.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// mutate applies fn under the lock and notifies subscribers when it reports a change.
func (m *Manager) mutate(fn func(s *State) bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if !fn(&m.state) {
		m.mu.Unlock()
		return
	}
	snapshot := m.state.clone()
	subs := append([]subscriber(nil), m.subscribers...)
	m.mu.Unlock()

	for _, s := range subs {
		s.fn(snapshot.clone())
	}
}

// SetFile checks f and, when it is acceptable, makes it the session's archive.
// Failures are reported in the result and in State.Error.
func (m *Manager) SetFile(f File) FileCheckResult {
	result := m.checkFile(f)

	busy := false
	m.mutate(func(s *State) bool {
		if m.running {
			busy = true
			return false
		}
		s.Archive = result.Archive
		if !result.Valid {
			m.file = nil
			s.File = nil
			s.Error = strings.Join(result.Errors, "; ")
			return true
		}

		file := f
		m.file = &file
		s.File = &FileInfo{Name: filepath.Base(f.Name), Size: f.Size}
		s.Error = ""
		if a := result.Archive; a != nil && a.Manifest != nil {
			mergeManifest(s, a)
		}
		return true
	})
	if busy {
		result.Valid = false
		result.Errors = append(result.Errors, "cannot change the file while an upload is running")
	}
	return result
}

func (m *Manager) checkFile(f File) FileCheckResult {
	result := FileCheckResult{Errors: []string{}, Warnings: []string{}}

	name := strings.TrimSpace(f.Name)
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case name == "":
		result.Errors = append(result.Errors, "a file is required")
	case f.Size <= 0:
		result.Errors = append(result.Errors, "file is empty")
	case f.Size > m.opts.MaxFileSize:
		result.Errors = append(result.Errors, fmt.Sprintf("file is %s, larger than the %s limit",
			humanize.IBytes(uint64(f.Size)), humanize.IBytes(uint64(m.opts.MaxFileSize))))
	}
	if name != "" && !m.allowedExtension(ext) {
		result.Errors = append(result.Errors, fmt.Sprintf("file type %q is not allowed (allowed: %s)",
			ext, strings.Join(m.opts.AllowedExtensions, ", ")))
	}
	if f.Source == nil && name != "" {
		result.Errors = append(result.Errors, "file content is not readable")
	}

	if len(result.Errors) == 0 && ext == ".zip" {
		checked := archive.Validate(f.Source, f.Size)
		result.Archive = &checked
		result.Errors = append(result.Errors, checked.Errors...)
		result.Warnings = append(result.Warnings, checked.Warnings...)
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func (m *Manager) allowedExtension(ext string) bool {
	for _, allowed := range m.opts.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func mergeManifest(s *State, a *archive.Result) {
	man := a.Manifest
	if v := strings.TrimSpace(man.ID); v != "" {
		s.Manifest.GameID = v
	}
	if v := strings.TrimSpace(man.Version); v != "" {
		s.Manifest.Version = v
	}
	if v := strings.TrimSpace(man.Runtime); v != "" {
		s.Manifest.Runtime = v
	}
	switch {
	case strings.TrimSpace(man.EntryPoint) != "":
		s.Manifest.EntryPoint = strings.TrimSpace(man.EntryPoint)
	case a.EntryFile != "":
		s.Manifest.EntryPoint = a.EntryFile
	}
	if v := strings.TrimSpace(man.Title); v != "" {
		s.Metadata.Title = v
	}
}

// UpdateManifest replaces the working manifest.
func (m *Manager) UpdateManifest(man Manifest) {
	man = Manifest{
		GameID:     strings.TrimSpace(man.GameID),
		Version:    strings.TrimSpace(man.Version),
		Runtime:    strings.TrimSpace(man.Runtime),
		EntryPoint: strings.TrimSpace(man.EntryPoint),
	}
	m.mutate(func(s *State) bool {
		if s.Manifest == man {
			return false
		}
		s.Manifest = man
		return true
	})
}

// UpdateMetadata replaces the working metadata.
func (m *Manager) UpdateMetadata(md Metadata) {
	md = md.clone()
	m.mutate(func(s *State) bool {
		s.Metadata = md
		return true
	})
}

// Validate checks the current state without changing it.
func (m *Manager) Validate() ValidationResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return validateState(m.state, m.file != nil)
}

func validateState(s State, hasFile bool) ValidationResult {
	out := ValidationResult{Errors: []string{}}
	if !hasFile || s.File == nil {
		out.Errors = append(out.Errors, "an archive file is required")
	}
	if r := version.ValidateGameID(s.Manifest.GameID); !r.Valid {
		out.Errors = append(out.Errors, r.Error)
	}
	if r := version.ValidateVersion(s.Manifest.Version); !r.Valid {
		out.Errors = append(out.Errors, r.Error)
	}
	if s.Manifest.Runtime == "" {
		out.Errors = append(out.Errors, "runtime is required")
	}
	if s.Manifest.EntryPoint == "" {
		out.Errors = append(out.Errors, "entry point is required")
	}
	out.Valid = len(out.Errors) == 0
	return out
}

// Reset returns the session to idle. An in-flight Upload keeps running but can
// no longer change the session.
func (m *Manager) Reset() {
	m.mutate(func(s *State) bool {
		m.generation++
		m.running = false
		m.file = nil
		*s = State{Stage: StageIdle}
		return true
	})
}

// Upload runs validate, transfer, processing and the metadata update in order.
// A failure leaves the session in StageFailed with progress frozen where it
// stopped and returns a *StageError.
func (m *Manager) Upload(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	var (
		gen      uint64
		file     File
		manifest Manifest
		metadata Metadata
		check    ValidationResult
	)
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrUploadInProgress
	}
	if !canMove(m.state.Stage, StageValidating) {
		from := m.state.Stage
		m.mu.Unlock()
		return stageMoveError(from, StageValidating)
	}
	m.running = true
	gen = m.generation
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		if m.generation == gen {
			m.running = false
		}
		m.mu.Unlock()
	}()

	m.mutate(func(s *State) bool {
		if m.generation != gen {
			return false
		}
		s.Stage = StageValidating
		s.Progress = progressValidating
		s.Error = ""
		s.Receipt = nil
		s.VersionID = ""
		check = validateState(*s, m.file != nil)
		if m.file != nil {
			file = *m.file
		}
		manifest = s.Manifest
		metadata = s.Metadata.clone()
		return true
	})

	ctx = logging.WithAttrs(ctx,
		slog.String("component", "upload.manager"),
		slog.String("game_id", manifest.GameID),
		slog.String("version", manifest.Version),
	)

	if !check.Valid {
		err := &StageError{Stage: StageValidating, Err: errs.WithKind(errors.New(strings.Join(check.Errors, "; ")), errs.KindValidation)}
		if !m.fail(gen, err) {
			return ErrSessionReset
		}
		return err
	}

	if err := m.checkTarget(ctx, manifest); err != nil {
		stageErr := &StageError{Stage: StageValidating, Err: err}
		if !m.fail(gen, stageErr) {
			return ErrSessionReset
		}
		logging.Warn(ctx, "upload target rejected before transfer", slog.Any("err", errs.Loggable(err)))
		return stageErr
	}

	if moveErr := m.advance(gen, StageUploading, progressUploading); moveErr != nil {
		return moveErr
	}
	receipt, err := m.transfer(ctx, file, manifest)
	if err != nil {
		stageErr := &StageError{Stage: StageUploading, Err: err}
		if !m.fail(gen, stageErr) {
			return ErrSessionReset
		}
		logging.Warn(ctx, "archive transfer failed", slog.Any("err", errs.Loggable(err)))
		return stageErr
	}

	if moveErr := m.advance(gen, StageProcessing, progressProcessing, func(s *State) {
		r := receipt
		s.Receipt = &r
	}); moveErr != nil {
		return moveErr
	}
	gameID, err := processReceipt(receipt, manifest)
	if err != nil {
		stageErr := &StageError{Stage: StageProcessing, Err: err}
		if !m.fail(gen, stageErr) {
			return ErrSessionReset
		}
		return stageErr
	}

	if moveErr := m.advance(gen, StageUpdating, progressUpdating); moveErr != nil {
		return moveErr
	}
	versionID, err := m.updateMetadata(ctx, gameID, MetadataUpdate{
		Version:     manifest.Version,
		Runtime:     manifest.Runtime,
		EntryPoint:  manifest.EntryPoint,
		StoragePath: receipt.StoragePath,
		Metadata:    metadata,
		Actor:       m.actor,
	})
	if err != nil {
		stageErr := &StageError{Stage: StageUpdating, Err: err}
		if !m.fail(gen, stageErr) {
			return ErrSessionReset
		}
		// The blob stays in the store; the receipt in state names it for cleanup.
		logging.Warn(ctx, "metadata update failed after transfer; archive left in storage",
			slog.String("storage_path", receipt.StoragePath),
			slog.Any("err", errs.Loggable(err)),
		)
		return stageErr
	}

	if moveErr := m.advance(gen, StageComplete, progressComplete, func(s *State) {
		s.VersionID = versionID
		s.Manifest.GameID = gameID
	}); moveErr != nil {
		return moveErr
	}
	logging.Info(ctx, "upload complete",
		slog.String("version_id", versionID),
		slog.String("storage_path", receipt.StoragePath),
	)
	return nil
}

func (m *Manager) checkTarget(ctx context.Context, manifest Manifest) error {
	if m.metadata == nil {
		return errors.New("metadata store is not configured")
	}
	ctx, cancel := m.stageContext(ctx)
	defer cancel()
	return m.metadata.CheckUpload(ctx, manifest.GameID, manifest.Version, m.actor)
}

// transfer stores the archive under a fresh attempt id, so a transfer never
// replaces the payload a version record already points at.
func (m *Manager) transfer(ctx context.Context, file File, manifest Manifest) (ports.BlobReceipt, error) {
	if m.blobs == nil {
		return ports.BlobReceipt{}, errors.New("blob store is not configured")
	}
	ctx, cancel := m.stageContext(ctx)
	defer cancel()
	return m.blobs.Put(ctx, ports.BlobPut{
		GameID:   manifest.GameID,
		Version:  manifest.Version,
		Attempt:  uuid.NewString(),
		FileName: filepath.Base(file.Name),
		Size:     file.Size,
		Body:     io.NewSectionReader(file.Source, 0, file.Size),
	})
}

func (m *Manager) updateMetadata(ctx context.Context, gameID string, update MetadataUpdate) (string, error) {
	if m.metadata == nil {
		return "", errors.New("metadata store is not configured")
	}
	ctx, cancel := m.stageContext(ctx)
	defer cancel()
	return m.metadata.UpdateMetadata(ctx, gameID, update)
}

func (m *Manager) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.StageTimeout > 0 {
		return context.WithTimeout(ctx, m.opts.StageTimeout)
	}
	return context.WithCancel(ctx)
}

// processReceipt resolves the game id assigned by the store.
func processReceipt(r ports.BlobReceipt, manifest Manifest) (string, error) {
	if strings.TrimSpace(r.StoragePath) == "" {
		return "", errors.New("blob store returned no storage path")
	}
	gameID := strings.TrimSpace(r.GameID)
	if gameID == "" {
		gameID = manifest.GameID
	}
	if res := version.ValidateGameID(gameID); !res.Valid {
		return "", fmt.Errorf("blob store assigned an invalid game id %q: %s", gameID, res.Error)
	}
	return gameID, nil
}

// advance moves to the next stage unless the session was reset meanwhile.
func (m *Manager) advance(gen uint64, to Stage, progress int, extra ...func(*State)) error {
	var err error
	m.mutate(func(s *State) bool {
		if m.generation != gen {
			err = ErrSessionReset
			return false
		}
		if !canMove(s.Stage, to) {
			err = stageMoveError(s.Stage, to)
			return false
		}
		s.Stage = to
		s.Progress = progress
		for _, fn := range extra {
			fn(s)
		}
		return true
	})
	return err
}

// fail records err unless the session was reset meanwhile; progress is kept.
func (m *Manager) fail(gen uint64, err error) bool {
	applied := false
	m.mutate(func(s *State) bool {
		if m.generation != gen || !canMove(s.Stage, StageFailed) {
			return false
		}
		s.Stage = StageFailed
		s.Error = err.Error()
		applied = true
		return true
	})
	return applied
}
