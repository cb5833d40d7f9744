package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quidome/archivetools/pkg/plan"
)

func write(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveAgainstDestination(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "in")
	dst := filepath.Join(tmp, "out", "2024")

	write(t, filepath.Join(src, "same.jpg"), "same")
	write(t, filepath.Join(dst, "same.jpg"), "same")
	write(t, filepath.Join(src, "clash.jpg"), "new")
	write(t, filepath.Join(dst, "clash.jpg"), "old")
	write(t, filepath.Join(src, "fresh.jpg"), "fresh")

	ops := []plan.Operation{
		{SourcePath: filepath.Join(src, "same.jpg"), DestinationPath: filepath.Join(dst, "same.jpg")},
		{SourcePath: filepath.Join(src, "clash.jpg"), DestinationPath: filepath.Join(dst, "clash.jpg"), Sidecars: []plan.Sidecar{{SourcePath: filepath.Join(src, "clash.xmp")}}},
		{SourcePath: filepath.Join(src, "fresh.jpg"), DestinationPath: filepath.Join(dst, "fresh.jpg")},
		{SourcePath: filepath.Join(tmp, "other", "fresh.jpg"), DestinationPath: filepath.Join(dst, "fresh.jpg")},
		{SourcePath: filepath.Join(dst, "clash.jpg"), DestinationPath: filepath.Join(dst, "clash.jpg")},
	}
	write(t, filepath.Join(tmp, "other", "fresh.jpg"), "different")

	testCases := []struct {
		name     string
		rename   bool
		want     []Action
		wantPath []string
	}{
		{
			name:   "rename",
			rename: true,
			want:   []Action{ActionSkippedIdentical, ActionTransferRenamed, ActionTransfer, ActionTransferRenamed, ActionSkippedInPlace},
			wantPath: []string{
				filepath.Join(dst, "same.jpg"),
				filepath.Join(dst, "clash_1.jpg"),
				filepath.Join(dst, "fresh.jpg"),
				filepath.Join(dst, "fresh_1.jpg"),
				filepath.Join(dst, "clash.jpg"),
			},
		},
		{
			name:   "skip",
			rename: false,
			want:   []Action{ActionSkippedIdentical, ActionSkippedExists, ActionTransfer, ActionSkippedExists, ActionSkippedInPlace},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			decisions, err := ResolveAgainstDestination(ops, Options{Rename: tc.rename})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(decisions) != len(tc.want) {
				t.Fatalf("expected %d decisions, got %d", len(tc.want), len(decisions))
			}
			for i, d := range decisions {
				if d.Action != tc.want[i] {
					t.Errorf("decision %d: action %s, want %s", i, d.Action, tc.want[i])
				}
				if tc.wantPath != nil && d.Operation.DestinationPath != tc.wantPath[i] {
					t.Errorf("decision %d: path %s, want %s", i, d.Operation.DestinationPath, tc.wantPath[i])
				}
			}
			if tc.rename {
				sc := decisions[1].Operation.Sidecars
				if len(sc) != 1 || sc[0].DestinationPath != filepath.Join(dst, "clash_1.xmp") {
					t.Errorf("sidecar did not follow rename: %#v", sc)
				}
			}
		})
	}
}

func TestFilesAreIdentical(t *testing.T) {
	tmp := t.TempDir()
	big := make([]byte, headerBytes*2+17)
	for i := range big {
		big[i] = byte(i)
	}
	changed := append([]byte(nil), big...)
	changed[len(changed)-1]++

	write(t, filepath.Join(tmp, "a"), string(big))
	write(t, filepath.Join(tmp, "b"), string(big))
	write(t, filepath.Join(tmp, "c"), string(changed))

	same, err := filesAreIdentical(filepath.Join(tmp, "a"), filepath.Join(tmp, "b"))
	if err != nil || !same {
		t.Fatalf("expected identical, got %v, %v", same, err)
	}
	same, err = filesAreIdentical(filepath.Join(tmp, "a"), filepath.Join(tmp, "c"))
	if err != nil || same {
		t.Fatalf("expected different, got %v, %v", same, err)
	}
}

func TestAction_Mutates(t *testing.T) {
	if !ActionTransfer.Mutates() || !ActionTransferRenamed.Mutates() {
		t.Fatalf("transfers mutate")
	}
	if ActionSkippedIdentical.Mutates() || ActionSkippedExists.Mutates() || ActionSkippedInPlace.Mutates() {
		t.Fatalf("skips do not mutate")
	}
}
