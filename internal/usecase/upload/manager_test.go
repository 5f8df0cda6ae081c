package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"gamepub/internal/domain/version"
	"gamepub/internal/errs"
	"gamepub/internal/ports"
)

const testManifest = `{"id":"com.x.y","version":"1.0.0","title":"Counting Stars","runtime":"html5"}`

func buildArchive(t *testing.T, files map[string]string) File {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	r := bytes.NewReader(buf.Bytes())
	return File{Name: "game.zip", Size: r.Size(), Source: r}
}

func validArchive(t *testing.T) File {
	return buildArchive(t, map[string]string{
		"index.html":    "<html></html>",
		"manifest.json": testManifest,
	})
}

type fakeBlobs struct {
	mu       sync.Mutex
	calls    int
	attempts []string
	body     []byte
	err      error
	started  chan struct{}
	release  chan struct{}
	waitCtx  bool
}

func (f *fakeBlobs) Put(ctx context.Context, in ports.BlobPut) (ports.BlobReceipt, error) {
	f.mu.Lock()
	f.calls++
	f.attempts = append(f.attempts, in.Attempt)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.waitCtx {
		<-ctx.Done()
		return ports.BlobReceipt{}, ctx.Err()
	}
	if f.err != nil {
		return ports.BlobReceipt{}, f.err
	}

	body, err := io.ReadAll(in.Body)
	if err != nil {
		return ports.BlobReceipt{}, err
	}
	f.mu.Lock()
	f.body = body
	f.mu.Unlock()
	return ports.BlobReceipt{
		GameID:      in.GameID,
		StoragePath: in.GameID + "/" + in.Version + "/" + in.FileName,
		Size:        int64(len(body)),
	}, nil
}

func (f *fakeBlobs) Delete(context.Context, string) error { return nil }

func (f *fakeBlobs) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMetadataStore struct {
	mu       sync.Mutex
	gameID   string
	update   MetadataUpdate
	err      error
	checkErr error
	checked  []string
}

func (f *fakeMetadataStore) CheckUpload(_ context.Context, gameID string, versionNumber string, actor ports.Actor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, gameID+"@"+versionNumber+" by "+actor.UserID)
	return f.checkErr
}

func (f *fakeMetadataStore) UpdateMetadata(_ context.Context, gameID string, update MetadataUpdate) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.gameID = gameID
	f.update = update
	return "ver-1", nil
}

var developer = ports.Actor{UserID: "dev-1", Roles: []version.Role{version.RoleDeveloper}}

func newTestManager(blobs *fakeBlobs, store *fakeMetadataStore, opts Options) *Manager {
	return NewManager(blobs, store, developer, opts)
}

func TestSetFileMergesManifest(t *testing.T) {
	m := newTestManager(&fakeBlobs{}, &fakeMetadataStore{}, Options{})

	res := m.SetFile(validArchive(t))
	if !res.Valid || len(res.Errors) != 0 {
		t.Fatalf("SetFile() = %#v", res)
	}
	if res.Archive == nil || !res.Archive.HasIndex || !res.Archive.HasManifest {
		t.Fatalf("SetFile() archive = %#v", res.Archive)
	}

	s := m.State()
	want := Manifest{GameID: "com.x.y", Version: "1.0.0", Runtime: "html5", EntryPoint: "index.html"}
	if s.Manifest != want {
		t.Fatalf("Manifest = %#v", s.Manifest)
	}
	if s.Metadata.Title != "Counting Stars" {
		t.Fatalf("Metadata.Title = %q", s.Metadata.Title)
	}
	if s.File == nil || s.File.Name != "game.zip" || s.Error != "" || s.Stage != StageIdle {
		t.Fatalf("State() = %#v", s)
	}
	if v := m.Validate(); !v.Valid {
		t.Fatalf("Validate() = %#v", v)
	}
}

func TestSetFileRejections(t *testing.T) {
	cases := map[string]struct {
		opts Options
		file func(t *testing.T) File
	}{
		"too large": {
			opts: Options{MaxFileSize: 16},
			file: validArchive,
		},
		"extension": {
			file: func(t *testing.T) File {
				f := validArchive(t)
				f.Name = "game.rar"
				return f
			},
		},
		"missing entry point": {
			file: func(t *testing.T) File {
				return buildArchive(t, map[string]string{"manifest.json": testManifest})
			},
		},
		"empty": {
			file: func(t *testing.T) File { return File{Name: "game.zip", Source: bytes.NewReader(nil)} },
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			m := newTestManager(&fakeBlobs{}, &fakeMetadataStore{}, tc.opts)
			res := m.SetFile(tc.file(t))
			if res.Valid || len(res.Errors) == 0 {
				t.Fatalf("SetFile() = %#v", res)
			}
			s := m.State()
			if s.File != nil || s.Error == "" {
				t.Fatalf("State() = %#v", s)
			}
		})
	}
}

func TestValidateAggregatesAndIsPure(t *testing.T) {
	m := newTestManager(&fakeBlobs{}, &fakeMetadataStore{}, Options{})
	m.UpdateManifest(Manifest{GameID: "My_Game!", Version: "1.0"})

	first := m.Validate()
	second := m.Validate()
	if first.Valid {
		t.Fatalf("Validate() = %#v", first)
	}
	// file, game id, version, runtime, entry point
	if len(first.Errors) != 5 {
		t.Fatalf("Validate() errors = %v", first.Errors)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Validate() not stable: %#v vs %#v", first, second)
	}
	if m.State().Stage != StageIdle {
		t.Fatalf("Validate() changed stage")
	}
}

func recordStages(m *Manager) (func() ([]Stage, []int), func()) {
	var (
		mu       sync.Mutex
		stages   []Stage
		progress []int
	)
	unsubscribe := m.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, s.Stage)
		progress = append(progress, s.Progress)
	})
	return func() ([]Stage, []int) {
		mu.Lock()
		defer mu.Unlock()
		return append([]Stage(nil), stages...), append([]int(nil), progress...)
	}, unsubscribe
}

func TestUploadHappyPath(t *testing.T) {
	blobs := &fakeBlobs{}
	store := &fakeMetadataStore{}
	m := newTestManager(blobs, store, Options{})
	m.SetFile(validArchive(t))
	m.UpdateMetadata(Metadata{Title: "Counting Stars", Skills: []string{"counting"}, Level: "easy"})

	seen, unsubscribe := recordStages(m)
	defer unsubscribe()

	if err := m.Upload(context.Background()); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	stages, progress := seen()
	wantStages := []Stage{StageValidating, StageUploading, StageProcessing, StageUpdating, StageComplete}
	if !reflect.DeepEqual(stages, wantStages) {
		t.Fatalf("stages = %v", stages)
	}
	if !reflect.DeepEqual(progress, []int{0, 25, 60, 80, 100}) {
		t.Fatalf("progress = %v", progress)
	}

	s := m.State()
	if s.VersionID != "ver-1" || s.Receipt == nil || s.Receipt.StoragePath != "com.x.y/1.0.0/game.zip" {
		t.Fatalf("State() = %#v", s)
	}
	if store.gameID != "com.x.y" || store.update.Runtime != "html5" || store.update.EntryPoint != "index.html" {
		t.Fatalf("metadata update = %q %#v", store.gameID, store.update)
	}
	if store.update.Actor.UserID != "dev-1" || store.update.Metadata.Skills[0] != "counting" {
		t.Fatalf("metadata update = %#v", store.update)
	}
	if int64(len(blobs.body)) != s.File.Size {
		t.Fatalf("transferred %d bytes, want %d", len(blobs.body), s.File.Size)
	}
	if !reflect.DeepEqual(store.checked, []string{"com.x.y@1.0.0 by dev-1"}) {
		t.Fatalf("CheckUpload calls = %v", store.checked)
	}
}

func TestUploadRejectedTargetSkipsTransfer(t *testing.T) {
	blobs := &fakeBlobs{}
	store := &fakeMetadataStore{checkErr: errs.Wrap(errs.New(errs.KindForbidden, "version is not editable"), "version 1.0.0 is published")}
	m := newTestManager(blobs, store, Options{})
	m.SetFile(validArchive(t))

	err := m.Upload(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageValidating {
		t.Fatalf("Upload() error = %v", err)
	}
	if errs.KindOf(err) != errs.KindForbidden {
		t.Fatalf("KindOf() = %v", errs.KindOf(err))
	}
	if blobs.callCount() != 0 {
		t.Fatalf("blob store called %d times", blobs.callCount())
	}
	if s := m.State(); s.Stage != StageFailed || s.Progress != 0 || s.Receipt != nil || s.Error == "" {
		t.Fatalf("State() = %#v", s)
	}
	if store.gameID != "" {
		t.Fatalf("metadata written for a rejected target")
	}
}

func TestEveryTransferUsesAFreshAttempt(t *testing.T) {
	blobs := &fakeBlobs{}
	store := &fakeMetadataStore{err: errors.New("metadata store returned 500")}
	m := newTestManager(blobs, store, Options{})
	m.SetFile(validArchive(t))

	_ = m.Upload(context.Background())
	store.err = nil
	if err := m.Upload(context.Background()); err != nil {
		t.Fatalf("Upload(retry) error = %v", err)
	}
	if len(blobs.attempts) != 2 || blobs.attempts[0] == "" || blobs.attempts[0] == blobs.attempts[1] {
		t.Fatalf("attempts = %v", blobs.attempts)
	}
}

func TestUploadMetadataFailureFreezesProgress(t *testing.T) {
	store := &fakeMetadataStore{err: errors.New("metadata store returned 500")}
	m := newTestManager(&fakeBlobs{}, store, Options{})
	m.SetFile(validArchive(t))

	err := m.Upload(context.Background())
	if !errors.Is(err, ErrUploadStage) {
		t.Fatalf("Upload() error = %v", err)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageUpdating {
		t.Fatalf("Upload() error = %#v", err)
	}
	if errs.KindOf(err) != errs.KindUploadStage {
		t.Fatalf("KindOf() = %v", errs.KindOf(err))
	}

	s := m.State()
	if s.Stage != StageFailed || s.Progress != 80 || s.Error == "" {
		t.Fatalf("State() = %#v", s)
	}
	if s.Receipt == nil || s.Receipt.StoragePath == "" {
		t.Fatalf("orphaned blob receipt not retained: %#v", s.Receipt)
	}

	// retry from scratch once the store recovers
	store.err = nil
	if err := m.Upload(context.Background()); err != nil {
		t.Fatalf("Upload(retry) error = %v", err)
	}
	if s := m.State(); s.Stage != StageComplete || s.Progress != 100 || s.Error != "" {
		t.Fatalf("State() after retry = %#v", s)
	}
}

func TestUploadTransferFailure(t *testing.T) {
	m := newTestManager(&fakeBlobs{err: errors.New("connection reset")}, &fakeMetadataStore{}, Options{})
	m.SetFile(validArchive(t))

	err := m.Upload(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageUploading {
		t.Fatalf("Upload() error = %v", err)
	}
	if s := m.State(); s.Stage != StageFailed || s.Progress != 25 || s.Receipt != nil {
		t.Fatalf("State() = %#v", s)
	}
}

func TestUploadValidationFailureSkipsTransfer(t *testing.T) {
	blobs := &fakeBlobs{}
	m := newTestManager(blobs, &fakeMetadataStore{}, Options{})

	err := m.Upload(context.Background())
	if errs.KindOf(err) != errs.KindValidation || !errors.Is(err, ErrUploadStage) {
		t.Fatalf("Upload() error = %v", err)
	}
	if blobs.callCount() != 0 {
		t.Fatalf("blob store called %d times", blobs.callCount())
	}
	if s := m.State(); s.Stage != StageFailed || s.Progress != 0 || s.Error == "" {
		t.Fatalf("State() = %#v", s)
	}
}

func TestUploadRejectsConcurrentRun(t *testing.T) {
	blobs := &fakeBlobs{started: make(chan struct{}, 1), release: make(chan struct{})}
	m := newTestManager(blobs, &fakeMetadataStore{}, Options{})
	m.SetFile(validArchive(t))

	done := make(chan error, 1)
	go func() { done <- m.Upload(context.Background()) }()
	<-blobs.started

	if err := m.Upload(context.Background()); !errors.Is(err, ErrUploadInProgress) {
		t.Fatalf("Upload(concurrent) error = %v", err)
	}
	if res := m.SetFile(validArchive(t)); res.Valid {
		t.Fatalf("SetFile() during upload = %#v", res)
	}

	close(blobs.release)
	if err := <-done; err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
}

func TestResetDetachesInFlightUpload(t *testing.T) {
	blobs := &fakeBlobs{started: make(chan struct{}, 1), release: make(chan struct{})}
	store := &fakeMetadataStore{}
	m := newTestManager(blobs, store, Options{})
	m.SetFile(validArchive(t))

	done := make(chan error, 1)
	go func() { done <- m.Upload(context.Background()) }()
	<-blobs.started

	m.Reset()
	close(blobs.release)
	if err := <-done; !errors.Is(err, ErrSessionReset) {
		t.Fatalf("Upload() error = %v", err)
	}

	s := m.State()
	if s.Stage != StageIdle || s.Progress != 0 || s.File != nil || s.Receipt != nil {
		t.Fatalf("State() = %#v", s)
	}
	if store.gameID != "" {
		t.Fatalf("metadata written after reset")
	}
}

func TestUploadStageTimeout(t *testing.T) {
	m := newTestManager(&fakeBlobs{waitCtx: true}, &fakeMetadataStore{}, Options{StageTimeout: 20 * time.Millisecond})
	m.SetFile(validArchive(t))

	err := m.Upload(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, ErrUploadStage) {
		t.Fatalf("Upload() error = %v", err)
	}
}

func TestSubscribersNotifiedInOrder(t *testing.T) {
	m := newTestManager(&fakeBlobs{}, &fakeMetadataStore{}, Options{})

	var calls []string
	unsubA := m.Subscribe(func(State) { calls = append(calls, "a") })
	m.Subscribe(func(s State) {
		calls = append(calls, "b")
		s.Metadata.Skills = append(s.Metadata.Skills, "mutated")
	})

	m.UpdateMetadata(Metadata{Skills: []string{"x"}})
	if !reflect.DeepEqual(calls, []string{"a", "b"}) {
		t.Fatalf("calls = %v", calls)
	}
	if got := m.State().Metadata.Skills; len(got) != 1 {
		t.Fatalf("subscriber mutated session state: %v", got)
	}

	unsubA()
	unsubA()
	m.Reset()
	if !reflect.DeepEqual(calls, []string{"a", "b", "b"}) {
		t.Fatalf("calls after unsubscribe = %v", calls)
	}
}

func TestConcurrentMutationsDeliverLatestSnapshotLast(t *testing.T) {
	m := newTestManager(&fakeBlobs{}, &fakeMetadataStore{}, Options{})
	m.SetFile(validArchive(t))

	var (
		mu   sync.Mutex
		last State
	)
	m.Subscribe(func(s State) {
		mu.Lock()
		last = s
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = m.Upload(context.Background())
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			m.UpdateMetadata(Metadata{Level: fmt.Sprintf("level-%d", i)})
		}
	}()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(last, m.State()) {
		t.Fatalf("last delivered snapshot = %#v, state = %#v", last, m.State())
	}
}

func TestUnchangedManifestDoesNotNotify(t *testing.T) {
	m := newTestManager(&fakeBlobs{}, &fakeMetadataStore{}, Options{})
	count := 0
	m.Subscribe(func(State) { count++ })

	m.UpdateManifest(Manifest{GameID: "com.x.y"})
	m.UpdateManifest(Manifest{GameID: " com.x.y "})
	if count != 1 {
		t.Fatalf("notifications = %d", count)
	}
}

func TestCanMoveTable(t *testing.T) {
	allowed := map[Stage][]Stage{
		StageIdle:       {StageValidating},
		StageValidating: {StageUploading, StageFailed},
		StageUploading:  {StageProcessing, StageFailed},
		StageProcessing: {StageUpdating, StageFailed},
		StageUpdating:   {StageComplete, StageFailed},
		StageComplete:   {StageValidating},
		StageFailed:     {StageValidating},
	}
	all := []Stage{StageIdle, StageValidating, StageUploading, StageProcessing, StageUpdating, StageComplete, StageFailed}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			if got := canMove(from, to); got != want {
				t.Fatalf("canMove(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}
