package resolve

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/quidome/archivetools/pkg/createdat"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func obs(pairs ...any) createdat.Observations {
	var out createdat.Observations
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, createdat.Observation{Source: pairs[i].(createdat.SourceKind), Time: pairs[i+1].(time.Time)})
	}
	return out
}

func TestResolve(t *testing.T) {
	all := obs(
		createdat.SourceContainer, day(2022, 5, 1),
		createdat.SourceExif, day(2021, 5, 1),
		createdat.SourceFilename, day(2023, 5, 1),
		createdat.SourceFilesystem, day(2025, 5, 1),
	)

	testCases := []struct {
		name       string
		obs        createdat.Observations
		mode       Mode
		want       time.Time
		wantSource createdat.SourceKind
		wantFound  bool
		fellBack   bool
	}{
		{name: "default prefers container over exif", obs: all, mode: Default, want: day(2022, 5, 1), wantSource: createdat.SourceContainer, wantFound: true},
		{name: "oldest", obs: all, mode: Oldest, want: day(2021, 5, 1), wantSource: createdat.SourceExif, wantFound: true},
		{name: "newest", obs: all, mode: Newest, want: day(2025, 5, 1), wantSource: createdat.SourceFilesystem, wantFound: true},
		{name: "single source present", obs: all, mode: Filename, want: day(2023, 5, 1), wantSource: createdat.SourceFilename, wantFound: true},
		{
			name:       "exif mode falls back to default",
			obs:        obs(createdat.SourceFilename, day(2023, 12, 20)),
			mode:       Exif,
			want:       day(2023, 12, 20),
			wantSource: createdat.SourceFilename,
			wantFound:  true,
			fellBack:   true,
		},
		{name: "nothing found", obs: nil, mode: Default, wantFound: false},
		{name: "nothing found in single source mode", obs: nil, mode: Sidecar, wantFound: false},
		{name: "nothing found oldest", obs: nil, mode: Oldest, wantFound: false},
		{
			name:       "oldest tie keeps higher precedence",
			obs:        obs(createdat.SourceFolder, day(2020, 1, 1), createdat.SourceFilesystem, day(2020, 1, 1)),
			mode:       Oldest,
			want:       day(2020, 1, 1),
			wantSource: createdat.SourceFolder,
			wantFound:  true,
		},
		{
			name:       "newest tie keeps higher precedence",
			obs:        obs(createdat.SourceExif, day(2020, 1, 1), createdat.SourceSidecar, day(2020, 1, 1)),
			mode:       Newest,
			want:       day(2020, 1, 1),
			wantSource: createdat.SourceExif,
			wantFound:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tc.obs, tc.mode)
			if got.Found != tc.wantFound {
				t.Fatalf("Found = %v, want %v", got.Found, tc.wantFound)
			}
			if !tc.wantFound {
				if !got.CreatedAt.IsZero() || got.Source != "" {
					t.Fatalf("unresolved result carries data: %#v", got)
				}
				return
			}
			if !got.CreatedAt.Equal(tc.want) || got.Source != tc.wantSource {
				t.Fatalf("Resolve = %v from %s, want %v from %s", got.CreatedAt, got.Source, tc.want, tc.wantSource)
			}
			if got.FellBack != tc.fellBack {
				t.Fatalf("FellBack = %v, want %v", got.FellBack, tc.fellBack)
			}
		})
	}
}

func TestResolve_Bounds(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 500; i++ {
		var o createdat.Observations
		for _, k := range createdat.Precedence {
			if r.Intn(2) == 0 {
				continue
			}
			o = append(o, createdat.Observation{Source: k, Time: base.Add(time.Duration(r.Intn(1000)) * time.Hour)})
		}

		oldest := Resolve(o, Oldest)
		newest := Resolve(o, Newest)
		def := Resolve(o, Default)
		if len(o) == 0 {
			if oldest.Found || newest.Found || def.Found {
				t.Fatalf("empty observations must stay unresolved")
			}
			continue
		}
		if !def.Found {
			t.Fatalf("default must resolve when any source is present: %#v", o)
		}
		for _, ob := range o {
			if oldest.CreatedAt.After(ob.Time) {
				t.Fatalf("oldest %v after %v", oldest.CreatedAt, ob.Time)
			}
			if newest.CreatedAt.Before(ob.Time) {
				t.Fatalf("newest %v before %v", newest.CreatedAt, ob.Time)
			}
		}
	}
}

func TestResolve_EveryModeResolvesWithAnySource(t *testing.T) {
	for _, k := range createdat.Precedence {
		o := obs(k, day(2019, 1, 1))
		for _, m := range Modes() {
			if !Resolve(o, m).Found {
				t.Fatalf("mode %s with only %s must resolve", m, k)
			}
		}
	}
}

func TestParseMode(t *testing.T) {
	testCases := []struct {
		input string
		want  Mode
	}{
		{input: "", want: Default},
		{input: "Oldest", want: Oldest},
		{input: " newest ", want: Newest},
		{input: "ffprobe", want: Container},
		{input: "metadata", want: Filesystem},
		{input: "folder", want: Folder},
	}
	for _, tc := range testCases {
		got, err := ParseMode(tc.input)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("ParseMode(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}

	if _, err := ParseMode("random"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestMode_Source(t *testing.T) {
	for _, m := range []Mode{Default, Oldest, Newest} {
		if _, ok := m.Source(); ok {
			t.Fatalf("%s is not a single-source mode", m)
		}
	}
	if k, ok := Exif.Source(); !ok || k != createdat.SourceExif {
		t.Fatalf("Exif.Source() = %q, %v", k, ok)
	}
}
