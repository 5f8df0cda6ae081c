package versions

import (
	"context"
	"errors"
	"sync"
	"time"

	"gamepub/internal/domain/qcreport"
	"gamepub/internal/domain/version"
	"gamepub/internal/errs"
	"gamepub/internal/ports"
	"gamepub/internal/usecase/upload"
)

var (
	ErrForbidden = errs.WithKind(errors.New("actor is not allowed to perform this operation"), errs.KindForbidden)
	// ErrNoArchive blocks submit for a version that has never received an archive.
	ErrNoArchive = errs.WithKind(errors.New("version has no uploaded archive"), errs.KindValidation)

	errActorRequired = ports.ErrUnauthenticated
)

// Service owns games, versions, their lifecycle and the QC evidence attached to them.
type Service struct {
	repo     ports.VersionRepository
	uow      ports.UnitOfWork
	cache    ports.Cache
	cacheTTL time.Duration
	events   ports.EventPublisher
	now      func() time.Time

	mu         sync.RWMutex
	thresholds qcreport.Thresholds
}

var _ upload.MetadataStore = (*Service)(nil)

type Option func(*Service)

// WithThresholds sets the performance thresholds used by RecordQCReport.
func WithThresholds(t qcreport.Thresholds) Option {
	return func(s *Service) { s.thresholds = t }
}

// WithEvents publishes every committed transition. A nil publisher disables publishing.
func WithEvents(p ports.EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) { s.cacheTTL = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the versions usecases with repository, unit of work and optional cache.
func NewService(repo ports.VersionRepository, uow ports.UnitOfWork, cache ports.Cache, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		uow:        uow,
		cache:      cache,
		thresholds: qcreport.DefaultThresholds(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metadata is the descriptive payload of a version.
type Metadata = upload.Metadata

type RegisterGameInput struct {
	GameID string
	Title  string
	Actor  ports.Actor
}

type CreateVersionInput struct {
	GameID  string
	Version string
	Actor   ports.Actor
}

// MetadataPatch changes only the fields that are set.
type MetadataPatch struct {
	Title       *string
	Description *string
	Grade       *string
	Subject     *string
	Level       *string
	LinkGithub  *string
	Skills      []string
	Themes      []string
}

type TransitionInput struct {
	VersionID string
	Action    version.Action
	Actor     ports.Actor
	Note      string
}

type TransitionResult struct {
	VersionID string         `json:"versionId"`
	GameID    string         `json:"gameId"`
	Version   string         `json:"version"`
	From      version.Status `json:"from"`
	To        version.Status `json:"to"`
	Action    version.Action `json:"action"`
	Role      version.Role   `json:"role"`
}

type RecordQCReportInput struct {
	VersionID string
	Actor     ports.Actor
	Results   qcreport.SubResults
	// AutoDecide records pass or fail on a version that is in qc_processing.
	AutoDecide bool
}

type RecordQCReportResult struct {
	ReportID   string            `json:"reportId"`
	Report     qcreport.Report   `json:"report"`
	Transition *TransitionResult `json:"transition,omitempty"`
}

type GameDetail struct {
	GameID    string `json:"gameId"`
	Title     string `json:"title"`
	OwnerID   string `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type VersionDetail struct {
	ID               string                  `json:"id"`
	GameID           string                  `json:"gameId"`
	Version          string                  `json:"version"`
	Status           version.Status          `json:"status"`
	StoragePath      string                  `json:"storagePath,omitempty"`
	EntryFile        string                  `json:"entryFile,omitempty"`
	Runtime          string                  `json:"runtime,omitempty"`
	Metadata         Metadata                `json:"metadata"`
	SelfQA           version.SelfQAChecklist `json:"selfQAChecklist"`
	SelfQAComplete   bool                    `json:"selfQAComplete"`
	CreatedBy        string                  `json:"createdBy"`
	LastCodeUpdateBy string                  `json:"lastCodeUpdateBy,omitempty"`
	LastCodeUpdateAt string                  `json:"lastCodeUpdateAt,omitempty"`
	CreatedAt        string                  `json:"createdAt"`
	UpdatedAt        string                  `json:"updatedAt"`
}

type HistoryItem struct {
	EventID   uint64 `json:"eventId"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"createdAt"`
}

type QCReportItem struct {
	ReportID      string           `json:"reportId"`
	VersionID     string           `json:"versionId"`
	Actor         string           `json:"actor"`
	OverallResult qcreport.Verdict `json:"overallResult"`
	Report        qcreport.Report  `json:"report"`
	CreatedAt     string           `json:"createdAt"`
}

func (s *Service) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("version repository is required")
	}
	if s.uow == nil {
		return errors.New("version unit of work is required")
	}
	return nil
}

// Thresholds returns the performance thresholds currently applied to QC reports.
func (s *Service) Thresholds() qcreport.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds
}

// SetThresholds replaces the QC thresholds; reports already stored keep theirs.
func (s *Service) SetThresholds(t qcreport.Thresholds) {
	s.mu.Lock()
	s.thresholds = t
	s.mu.Unlock()
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, s.cacheTTL)
}

// CachedStatus returns the last status written for a version, falling back to the store.
func (s *Service) CachedStatus(ctx context.Context, versionID string) (version.Status, error) {
	if s.cache != nil {
		if raw, found, err := s.cache.Get(ctx, cacheVersionStatusKey(versionID)); err == nil && found {
			if st, err := version.ParseStatus(raw); err == nil {
				return st, nil
			}
		}
	}
	v, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return "", err
	}
	return v.Status, nil
}
