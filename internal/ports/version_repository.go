package ports

import (
	"context"
	"errors"

	"gamepub/internal/errs"
)

var (
	ErrGameNotFound    = errs.WithKind(errors.New("game not found"), errs.KindNotFound)
	ErrVersionNotFound = errs.WithKind(errors.New("game version not found"), errs.KindNotFound)
	ErrGameExists      = errs.WithKind(errors.New("game already exists"), errs.KindConflict)
	ErrVersionExists   = errs.WithKind(errors.New("game version already exists"), errs.KindConflict)
	// ErrStatusConflict means the stored status changed between read and write.
	ErrStatusConflict = errs.WithKind(errors.New("game version status changed concurrently"), errs.KindConflict)
)

type GameRecord struct {
	GameID    string
	Title     string
	OwnerID   string
	CreatedAt string
	UpdatedAt string
}

// VersionMetadata is the descriptive payload a developer edits alongside the archive.
type VersionMetadata struct {
	Title       string
	Description string
	Grade       string
	Subject     string
	Skills      []string
	Themes      []string
	Level       string
	LinkGithub  string
}

type SelfQARecord struct {
	TestedDevices    bool
	TestedAudio      bool
	GameplayComplete bool
	ContentVerified  bool
	Note             string
}

type GameVersionRecord struct {
	ID               string
	GameID           string
	Version          string
	Status           string
	StoragePath      string
	EntryFile        string
	Runtime          string
	Metadata         VersionMetadata
	SelfQA           SelfQARecord
	CreatedBy        string
	LastCodeUpdateBy string
	LastCodeUpdateAt string
	CreatedAt        string
	UpdatedAt        string
}

type VersionEvent struct {
	EventID    uint64
	VersionID  string
	Actor      string
	Action     string
	FromStatus string
	ToStatus   string
	Note       string
	CreatedAt  string
}

type VersionEventCreate struct {
	VersionID  string
	Actor      string
	Action     string
	FromStatus string
	ToStatus   string
	Note       string
	CreatedAt  string
}

type QCReportRecord struct {
	ReportID      string
	VersionID     string
	Actor         string
	OverallResult string
	CriticalCount int
	WarningCount  int
	ReportJSON    []byte
	CreatedAt     string
}

type VersionReadRepository interface {
	GetGame(ctx context.Context, gameID string) (GameRecord, error)
	ListGames(ctx context.Context, ownerID string) ([]GameRecord, error)
	GetVersion(ctx context.Context, versionID string) (GameVersionRecord, error)
	FindVersion(ctx context.Context, gameID string, version string) (GameVersionRecord, error)
	ListVersions(ctx context.Context, gameID string) ([]GameVersionRecord, error)
	ListVersionEvents(ctx context.Context, versionID string) ([]VersionEvent, error)
	ListQCReports(ctx context.Context, versionID string, limit int) ([]QCReportRecord, error)
}

type VersionRepository interface {
	VersionReadRepository
	CreateGame(ctx context.Context, game GameRecord) (GameRecord, error)
	CreateVersion(ctx context.Context, v GameVersionRecord) (GameVersionRecord, error)
	// SaveVersion overwrites the mutable columns; status is only changed by UpdateVersionStatus.
	SaveVersion(ctx context.Context, v GameVersionRecord) error
	// UpdateVersionStatus is a compare-and-set on the current status.
	UpdateVersionStatus(ctx context.Context, versionID string, from string, to string, updatedAt string) error
	AppendVersionEvent(ctx context.Context, input VersionEventCreate) error
	CreateQCReport(ctx context.Context, report QCReportRecord) (QCReportRecord, error)
}
