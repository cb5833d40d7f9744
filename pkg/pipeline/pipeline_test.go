package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/quidome/archivetools/pkg/bucket"
	"github.com/quidome/archivetools/pkg/createdat"
	"github.com/quidome/archivetools/pkg/dedupe"
	"github.com/quidome/archivetools/pkg/resolve"
	"github.com/quidome/archivetools/pkg/scan"
	"github.com/quidome/archivetools/pkg/setdates"
)

func write(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// fakeExif reports canned capture times by base name.
func fakeExif(times map[string]time.Time) createdat.Extractor {
	return createdat.ExtractorFunc(func(_ context.Context, it *createdat.Item) (time.Time, bool, error) {
		tm, ok := times[filepath.Base(it.Path)]
		return tm, ok, nil
	})
}

// newEngine keeps the real filename and sidecar extractors, fakes EXIF and
// disables sources that depend on the test machine.
func newEngine(t *testing.T, exif map[string]time.Time) *createdat.Engine {
	t.Helper()
	e, err := createdat.NewEngine(createdat.Options{
		Location:          time.UTC,
		SidecarExtensions: []string{".xmp"},
		Extractors: map[createdat.SourceKind]createdat.Extractor{
			createdat.SourceExif:       fakeExif(exif),
			createdat.SourceFolder:     nil,
			createdat.SourceFilesystem: nil,
		},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestOrganize_YearBuckets(t *testing.T) {
	src := t.TempDir()
	write(t, filepath.Join(src, "A.jpg"), "a")
	write(t, filepath.Join(src, "20231220_010101.jpg"), "b")
	write(t, filepath.Join(src, "20231220_010101.xmp"), "meta without dates")
	write(t, filepath.Join(src, "holiday.jpg"), "no date anywhere")

	e := newEngine(t, map[string]time.Time{"A.jpg": time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)})

	var logs bytes.Buffer
	sum, err := Organize(context.Background(), e, OrganizeOptions{
		Source:      src,
		Granularity: bucket.Year,
		Mode:        resolve.Default,
		Namer:       bucket.DefaultNamer(),
		Scan:        scan.DefaultOptions(),
	}, log.New(&logs))
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}

	for _, p := range []string{
		filepath.Join(src, "2024", "A.jpg"),
		filepath.Join(src, "2023", "20231220_010101.jpg"),
		filepath.Join(src, "2023", "20231220_010101.xmp"),
		filepath.Join(src, "holiday.jpg"),
	} {
		if !exists(p) {
			t.Fatalf("expected %s to exist", p)
		}
	}
	if exists(filepath.Join(src, "A.jpg")) {
		t.Fatalf("A.jpg must have been moved")
	}
	if sum.Count("moved") != 2 || sum.Count("unresolved") != 1 || sum.Count("sidecars") != 1 {
		t.Fatalf("unexpected summary %v", sum.Lines())
	}
	if !strings.Contains(logs.String(), "holiday.jpg") {
		t.Fatalf("unresolved file must be reported: %q", logs.String())
	}
}

func TestOrganize_DryRunAndRerun(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	write(t, filepath.Join(src, "IMG_20240301_120000.jpg"), "x")

	e := newEngine(t, nil)
	opts := OrganizeOptions{
		Source:      src,
		Destination: dst,
		Granularity: bucket.Month,
		Namer:       bucket.DefaultNamer(),
		Scan:        scan.DefaultOptions(),
		Copy:        true,
		DryRun:      true,
	}

	sum, err := Organize(context.Background(), e, opts, nil)
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}
	target := filepath.Join(dst, "20240301-20240331 - März", "IMG_20240301_120000.jpg")
	if exists(target) {
		t.Fatalf("dry run must not write")
	}
	if sum.Count("planned") != 1 {
		t.Fatalf("unexpected summary %v", sum.Lines())
	}

	opts.DryRun = false
	if _, err := Organize(context.Background(), newEngine(t, nil), opts, nil); err != nil {
		t.Fatalf("Organize: %v", err)
	}
	if !exists(target) || !exists(filepath.Join(src, "IMG_20240301_120000.jpg")) {
		t.Fatalf("copy must create target and keep source")
	}

	sum, err = Organize(context.Background(), newEngine(t, nil), opts, nil)
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}
	if sum.Count("skipped_identical") != 1 || sum.Count("copied") != 0 {
		t.Fatalf("second run must skip: %v", sum.Lines())
	}
}

func TestOrganize_RenameOnConflict(t *testing.T) {
	src := t.TempDir()
	write(t, filepath.Join(src, "a", "IMG_20240301_120000.jpg"), "first")
	write(t, filepath.Join(src, "b", "IMG_20240301_120000.jpg"), "second")

	for _, rename := range []bool{false, true} {
		dst := t.TempDir()
		sum, err := Organize(context.Background(), newEngine(t, nil), OrganizeOptions{
			Source:      src,
			Destination: dst,
			Granularity: bucket.Day,
			Namer:       bucket.DefaultNamer(),
			Scan:        scan.DefaultOptions(),
			Copy:        true,
			Rename:      rename,
		}, nil)
		if err != nil {
			t.Fatalf("Organize: %v", err)
		}
		renamed := filepath.Join(dst, "20240301", "IMG_20240301_120000_1.jpg")
		if rename && (!exists(renamed) || sum.Count("renamed") != 1) {
			t.Fatalf("rename: %v", sum.Lines())
		}
		if !rename && (exists(renamed) || sum.Count("skipped_exists") != 1) {
			t.Fatalf("no rename: %v", sum.Lines())
		}
	}
}

func TestResolveAll_KeepsOrder(t *testing.T) {
	e := newEngine(t, nil)
	var items []*createdat.Item
	for _, name := range []string{"20200101.jpg", "x.jpg", "20210101.jpg"} {
		items = append(items, createdat.NewItem(filepath.Join("lib", name), nil))
	}

	got, err := ResolveAll(context.Background(), e, items, resolve.Default, 2)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if got[0].Result.CreatedAt.Year() != 2020 || got[1].Result.Found || got[2].Result.CreatedAt.Year() != 2021 {
		t.Fatalf("unexpected results %#v", got)
	}
}

func TestDeleteDuplicates_OldestKeepsEarlierCapture(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "A.jpg"), "identical")
	write(t, filepath.Join(root, "sub", "B.jpg"), "identical")
	write(t, filepath.Join(root, "C.jpg"), "identicaX")

	exif := map[string]time.Time{
		"A.jpg": time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		"B.jpg": time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	opts := DuplicatesOptions{
		Root:      root,
		Mode:      resolve.Oldest,
		Algorithm: dedupe.SHA256,
		Scan:      scan.DefaultOptions(),
		DryRun:    true,
	}

	sum, decisions, err := DeleteDuplicates(context.Background(), newEngine(t, exif), opts, nil)
	if err != nil {
		t.Fatalf("DeleteDuplicates: %v", err)
	}
	if len(decisions) != 1 || filepath.Base(decisions[0].Keeper) != "B.jpg" {
		t.Fatalf("unexpected decisions %#v", decisions)
	}
	if !exists(filepath.Join(root, "A.jpg")) || sum.Count("would_delete") != 1 {
		t.Fatalf("dry run must not delete: %v", sum.Lines())
	}

	opts.DryRun = false
	sum, _, err = DeleteDuplicates(context.Background(), newEngine(t, exif), opts, nil)
	if err != nil {
		t.Fatalf("DeleteDuplicates: %v", err)
	}
	if exists(filepath.Join(root, "A.jpg")) || !exists(filepath.Join(root, "sub", "B.jpg")) || !exists(filepath.Join(root, "C.jpg")) {
		t.Fatalf("wrong files deleted")
	}
	if sum.Count("deleted") != 1 || sum.Bytes("reclaimed") != int64(len("identical")) || sum.Count("duplicate_sets") != 1 {
		t.Fatalf("unexpected summary %v", sum.Lines())
	}
}

func TestDeleteDuplicates_AnchorIsKept(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.jpg"), "same")
	write(t, filepath.Join(root, "b.jpg"), "same")
	write(t, filepath.Join(root, "sub", "c.jpg"), "same")
	anchor := filepath.Join(root, "b.jpg")

	_, decisions, err := DeleteDuplicates(context.Background(), newEngine(t, nil), DuplicatesOptions{
		File: anchor,
		Mode: resolve.Oldest,
		Scan: scan.DefaultOptions(),
	}, nil)
	if err != nil {
		t.Fatalf("DeleteDuplicates: %v", err)
	}
	if len(decisions) != 1 || decisions[0].Keeper != anchor {
		t.Fatalf("unexpected decisions %#v", decisions)
	}
	if !exists(anchor) || exists(filepath.Join(root, "a.jpg")) {
		t.Fatalf("anchor peers must be removed, anchor kept")
	}
	if !exists(filepath.Join(root, "sub", "c.jpg")) {
		t.Fatalf("files outside the anchor folder are not considered")
	}
}

func TestDeleteDuplicates_CanceledDeletesNothing(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.jpg"), "same")
	write(t, filepath.Join(root, "b.jpg"), "same")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := DeleteDuplicates(ctx, newEngine(t, nil), DuplicatesOptions{Root: root, Scan: scan.DefaultOptions()}, nil); err == nil {
		t.Fatalf("expected cancellation error")
	}
	if !exists(filepath.Join(root, "a.jpg")) || !exists(filepath.Join(root, "b.jpg")) {
		t.Fatalf("nothing may be deleted after cancellation")
	}
}

type recordingRunner struct{ names []string }

func (r *recordingRunner) Run(_ context.Context, name string, _ ...string) error {
	r.names = append(r.names, name)
	return nil
}

func TestSetDates(t *testing.T) {
	root := t.TempDir()
	photo := filepath.Join(root, "IMG_20220202_020202.jpg")
	write(t, photo, "x")
	write(t, filepath.Join(root, "IMG_20220202_020202.xmp"), "meta")
	write(t, filepath.Join(root, "nodate.png"), "y")

	r := &recordingRunner{}
	w := setdates.DefaultOptions()
	w.Runner = r

	sum, err := SetDates(context.Background(), newEngine(t, nil), SetDatesOptions{
		Root:   root,
		Scan:   scan.DefaultOptions(),
		Writer: w,
	}, nil)
	if err != nil {
		t.Fatalf("SetDates: %v", err)
	}

	want := time.Date(2022, 2, 2, 2, 2, 2, 0, time.UTC)
	st, err := os.Stat(photo)
	if err != nil || !st.ModTime().Equal(want) {
		t.Fatalf("mtime = %v, %v", st.ModTime(), err)
	}
	if len(r.names) != 1 || r.names[0] != "exiftool" {
		t.Fatalf("unexpected commands %v", r.names)
	}
	if sum.Count("updated") != 1 || sum.Count("unresolved") != 1 || sum.Count("processed") != 2 {
		t.Fatalf("unexpected summary %v", sum.Lines())
	}
}

func TestSetDates_SingleFile(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "2019-05-06 07.08.09.png")
	write(t, p, "x")

	sum, err := SetDates(context.Background(), newEngine(t, nil), SetDatesOptions{
		File:   p,
		Writer: setdates.Options{Runner: &recordingRunner{}},
	}, nil)
	if err != nil {
		t.Fatalf("SetDates: %v", err)
	}
	st, _ := os.Stat(p)
	if want := time.Date(2019, 5, 6, 7, 8, 9, 0, time.UTC); !st.ModTime().Equal(want) {
		t.Fatalf("mtime = %v, want %v", st.ModTime(), want)
	}
	if sum.Count("processed") != 1 {
		t.Fatalf("unexpected summary %v", sum.Lines())
	}
}

func TestInspect(t *testing.T) {
	e := newEngine(t, map[string]time.Time{"20231220_010101.jpg": time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)})
	got, err := Inspect(context.Background(), e, []string{filepath.Join("lib", "20231220_010101.jpg")}, resolve.Filename, 1)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(got) != 1 || len(got[0].Observations) != 2 {
		t.Fatalf("unexpected inspection %#v", got)
	}
	if got[0].Result.Source != createdat.SourceFilename || got[0].Result.CreatedAt.Year() != 2023 {
		t.Fatalf("unexpected result %#v", got[0].Result)
	}
}

func TestOrganize_DayBucketsUseLocalTime(t *testing.T) {
	src := t.TempDir()
	write(t, filepath.Join(src, "clip.mp4"), "video")
	write(t, filepath.Join(src, "photo.jpg"), "photo")

	cet := time.FixedZone("CET", 3600)
	e, err := createdat.NewEngine(createdat.Options{
		Location:        cet,
		VideoExtensions: []string{".mp4"},
		Extractors: map[createdat.SourceKind]createdat.Extractor{
			createdat.SourceExif: fakeExif(map[string]time.Time{
				"photo.jpg": time.Date(2024, 1, 2, 0, 30, 0, 0, cet),
			}),
			createdat.SourceContainer: createdat.ExtractorFunc(func(_ context.Context, it *createdat.Item) (time.Time, bool, error) {
				if filepath.Base(it.Path) != "clip.mp4" {
					return time.Time{}, false, nil
				}
				return time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC), true, nil
			}),
			createdat.SourceFolder:     nil,
			createdat.SourceFilesystem: nil,
		},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if _, err := Organize(context.Background(), e, OrganizeOptions{
		Source:      src,
		Granularity: bucket.Day,
		Namer:       bucket.DefaultNamer(),
		Scan:        scan.DefaultOptions(),
	}, nil); err != nil {
		t.Fatalf("Organize: %v", err)
	}

	for _, name := range []string{"clip.mp4", "photo.jpg"} {
		if !exists(filepath.Join(src, "20240102", name)) {
			t.Errorf("expected %s in 20240102", name)
		}
	}
}

func TestOrganize_WarnsWhenModeFallsBack(t *testing.T) {
	src := t.TempDir()
	write(t, filepath.Join(src, "IMG_20240301_120000.jpg"), "x")

	var logs bytes.Buffer
	sum, err := Organize(context.Background(), newEngine(t, nil), OrganizeOptions{
		Source:      src,
		Granularity: bucket.Year,
		Mode:        resolve.Exif,
		Namer:       bucket.DefaultNamer(),
		Scan:        scan.DefaultOptions(),
		DryRun:      true,
	}, log.New(&logs))
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}
	if sum.Count("planned") != 1 {
		t.Fatalf("unexpected summary %v", sum.Lines())
	}
	out := logs.String()
	if !strings.Contains(out, "using default order") || !strings.Contains(out, "IMG_20240301_120000.jpg") {
		t.Fatalf("expected a fallback warning, got %q", out)
	}
}

func TestDeleteDuplicates_CanceledWhileResolvingDeletesNothing(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "A.jpg"), "identical")
	write(t, filepath.Join(root, "B.jpg"), "identical")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	times := map[string]time.Time{
		"A.jpg": time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		"B.jpg": time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	e, err := createdat.NewEngine(createdat.Options{
		Location: time.UTC,
		Extractors: map[createdat.SourceKind]createdat.Extractor{
			createdat.SourceExif: createdat.ExtractorFunc(func(_ context.Context, it *createdat.Item) (time.Time, bool, error) {
				cancel()
				tm, ok := times[filepath.Base(it.Path)]
				return tm, ok, nil
			}),
			createdat.SourceFolder:     nil,
			createdat.SourceFilesystem: nil,
		},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	_, decisions, err := DeleteDuplicates(ctx, e, DuplicatesOptions{
		Root:      root,
		Mode:      resolve.Oldest,
		Algorithm: dedupe.SHA256,
		Scan:      scan.DefaultOptions(),
	}, nil)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if len(decisions) != 0 {
		t.Fatalf("no decision may be made on partial dates: %#v", decisions)
	}
	if !exists(filepath.Join(root, "A.jpg")) || !exists(filepath.Join(root, "B.jpg")) {
		t.Fatalf("nothing may be deleted after cancellation")
	}
}

func TestDeleteDuplicates_CountsUnresolved(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.jpg"), "same")
	write(t, filepath.Join(root, "b.jpg"), "same")
	write(t, filepath.Join(root, "IMG_20240301_120000.jpg"), "same")

	sum, decisions, err := DeleteDuplicates(context.Background(), newEngine(t, nil), DuplicatesOptions{
		Root:   root,
		Mode:   resolve.Oldest,
		Scan:   scan.DefaultOptions(),
		DryRun: true,
	}, nil)
	if err != nil {
		t.Fatalf("DeleteDuplicates: %v", err)
	}
	if len(decisions) != 1 || filepath.Base(decisions[0].Keeper) != "IMG_20240301_120000.jpg" {
		t.Fatalf("resolved file must be kept: %#v", decisions)
	}
	if sum.Count("unresolved") != 2 || sum.Count("would_delete") != 2 {
		t.Fatalf("unexpected summary %v", sum.Lines())
	}
}
