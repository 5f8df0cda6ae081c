package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"gamepub/internal/infrastructure/persistence/sqlite/model"
	"gamepub/internal/ports"
)

func setupVersionRepository(t *testing.T) (*VersionRepository, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "gamepub.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewVersionRepository(db), db
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func seedVersion(t *testing.T, repo *VersionRepository, id string, number string) ports.GameVersionRecord {
	t.Helper()
	ctx := context.Background()
	now := nowString()

	if _, err := repo.GetGame(ctx, "com.x.y"); errors.Is(err, ports.ErrGameNotFound) {
		if _, err := repo.CreateGame(ctx, ports.GameRecord{GameID: "com.x.y", Title: "X", OwnerID: "dev-1", CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("CreateGame() error = %v", err)
		}
	}

	v, err := repo.CreateVersion(ctx, ports.GameVersionRecord{
		ID:        id,
		GameID:    "com.x.y",
		Version:   number,
		Status:    "draft",
		CreatedBy: "dev-1",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateVersion() error = %v", err)
	}
	return v
}

func TestCreateGameRejectsDuplicates(t *testing.T) {
	repo, _ := setupVersionRepository(t)
	ctx := context.Background()
	now := nowString()

	game := ports.GameRecord{GameID: "com.x.y", Title: "X", OwnerID: "dev-1", CreatedAt: now, UpdatedAt: now}
	if _, err := repo.CreateGame(ctx, game); err != nil {
		t.Fatalf("CreateGame() error = %v", err)
	}
	if _, err := repo.CreateGame(ctx, game); !errors.Is(err, ports.ErrGameExists) {
		t.Fatalf("CreateGame(duplicate) error = %v", err)
	}

	games, err := repo.ListGames(ctx, "dev-1")
	if err != nil {
		t.Fatalf("ListGames() error = %v", err)
	}
	if len(games) != 1 || games[0].OwnerID != "dev-1" {
		t.Fatalf("ListGames() = %#v", games)
	}
	if games, _ := repo.ListGames(ctx, "someone-else"); len(games) != 0 {
		t.Fatalf("ListGames(other owner) = %#v", games)
	}
}

func TestCreateVersionUniquePerGame(t *testing.T) {
	repo, _ := setupVersionRepository(t)
	seedVersion(t, repo, "v-1", "1.0.0")

	_, err := repo.CreateVersion(context.Background(), ports.GameVersionRecord{
		ID: "v-2", GameID: "com.x.y", Version: "1.0.0", Status: "draft", CreatedBy: "dev-1",
		CreatedAt: nowString(), UpdatedAt: nowString(),
	})
	if !errors.Is(err, ports.ErrVersionExists) {
		t.Fatalf("CreateVersion(duplicate) error = %v", err)
	}

	found, err := repo.FindVersion(context.Background(), "com.x.y", "1.0.0")
	if err != nil {
		t.Fatalf("FindVersion() error = %v", err)
	}
	if found.ID != "v-1" {
		t.Fatalf("FindVersion() id = %q", found.ID)
	}
	if _, err := repo.FindVersion(context.Background(), "com.x.y", "9.9.9"); !errors.Is(err, ports.ErrVersionNotFound) {
		t.Fatalf("FindVersion(missing) error = %v", err)
	}
}

func TestSaveVersionRoundTripsMetadataAndSelfQA(t *testing.T) {
	repo, _ := setupVersionRepository(t)
	ctx := context.Background()
	v := seedVersion(t, repo, "v-1", "1.0.0")

	v.StoragePath = "com.x.y/1.0.0/game.zip"
	v.EntryFile = "index.html"
	v.Runtime = "html5"
	v.Metadata = ports.VersionMetadata{
		Title:  "Counting Stars",
		Grade:  "2",
		Skills: []string{"counting", "addition"},
		Themes: []string{"space"},
		Level:  "easy",
	}
	v.SelfQA = ports.SelfQARecord{TestedDevices: true, TestedAudio: true, Note: "checked on ipad"}
	v.LastCodeUpdateBy = "dev-1"
	v.LastCodeUpdateAt = nowString()
	v.Status = "published" // ignored by SaveVersion
	if err := repo.SaveVersion(ctx, v); err != nil {
		t.Fatalf("SaveVersion() error = %v", err)
	}

	got, err := repo.GetVersion(ctx, "v-1")
	if err != nil {
		t.Fatalf("GetVersion() error = %v", err)
	}
	if got.Status != "draft" {
		t.Fatalf("SaveVersion() changed status to %q", got.Status)
	}
	if got.Metadata.Title != "Counting Stars" || len(got.Metadata.Skills) != 2 || got.Metadata.Skills[1] != "addition" {
		t.Fatalf("GetVersion() metadata = %#v", got.Metadata)
	}
	if !got.SelfQA.TestedDevices || got.SelfQA.GameplayComplete || got.SelfQA.Note != "checked on ipad" {
		t.Fatalf("GetVersion() self-qa = %#v", got.SelfQA)
	}
	if got.LastCodeUpdateBy != "dev-1" || got.StoragePath != "com.x.y/1.0.0/game.zip" {
		t.Fatalf("GetVersion() = %#v", got)
	}

	if err := repo.SaveVersion(ctx, ports.GameVersionRecord{ID: "missing"}); !errors.Is(err, ports.ErrVersionNotFound) {
		t.Fatalf("SaveVersion(missing) error = %v", err)
	}
}

func TestUpdateVersionStatusCompareAndSet(t *testing.T) {
	repo, _ := setupVersionRepository(t)
	ctx := context.Background()
	seedVersion(t, repo, "v-1", "1.0.0")

	if err := repo.UpdateVersionStatus(ctx, "v-1", "draft", "uploaded", nowString()); err != nil {
		t.Fatalf("UpdateVersionStatus() error = %v", err)
	}
	if err := repo.UpdateVersionStatus(ctx, "v-1", "draft", "uploaded", nowString()); !errors.Is(err, ports.ErrStatusConflict) {
		t.Fatalf("UpdateVersionStatus(stale) error = %v", err)
	}
	if err := repo.UpdateVersionStatus(ctx, "nope", "draft", "uploaded", nowString()); !errors.Is(err, ports.ErrVersionNotFound) {
		t.Fatalf("UpdateVersionStatus(missing) error = %v", err)
	}

	got, _ := repo.GetVersion(ctx, "v-1")
	if got.Status != "uploaded" {
		t.Fatalf("status = %q", got.Status)
	}
}

func TestVersionEventsAndQCReports(t *testing.T) {
	repo, _ := setupVersionRepository(t)
	ctx := context.Background()
	seedVersion(t, repo, "v-1", "1.0.0")

	for _, step := range [][2]string{{"draft", "uploaded"}, {"uploaded", "qc_processing"}} {
		if err := repo.AppendVersionEvent(ctx, ports.VersionEventCreate{
			VersionID: "v-1", Actor: "dev-1", Action: "step", FromStatus: step[0], ToStatus: step[1], CreatedAt: nowString(),
		}); err != nil {
			t.Fatalf("AppendVersionEvent() error = %v", err)
		}
	}
	events, err := repo.ListVersionEvents(ctx, "v-1")
	if err != nil {
		t.Fatalf("ListVersionEvents() error = %v", err)
	}
	if len(events) != 2 || events[0].ToStatus != "uploaded" || events[1].ToStatus != "qc_processing" {
		t.Fatalf("ListVersionEvents() = %#v", events)
	}

	for i, verdict := range []string{"FAIL", "PASS"} {
		if _, err := repo.CreateQCReport(ctx, ports.QCReportRecord{
			ReportID:      []string{"r-1", "r-2"}[i],
			VersionID:     "v-1",
			Actor:         "qc-1",
			OverallResult: verdict,
			ReportJSON:    []byte(`{"overallResult":"` + verdict + `"}`),
			CreatedAt:     time.Date(2026, 2, 14, 10, i, 0, 0, time.UTC).Format(time.RFC3339Nano),
		}); err != nil {
			t.Fatalf("CreateQCReport() error = %v", err)
		}
	}
	reports, err := repo.ListQCReports(ctx, "v-1", 1)
	if err != nil {
		t.Fatalf("ListQCReports() error = %v", err)
	}
	if len(reports) != 1 || reports[0].ReportID != "r-2" || string(reports[0].ReportJSON) != `{"overallResult":"PASS"}` {
		t.Fatalf("ListQCReports() = %#v", reports)
	}
}
