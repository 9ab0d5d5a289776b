package state

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadAbsent(t *testing.T) {
	s := Load(t.TempDir())
	if !s.IsZero() {
		t.Errorf("Load of empty dir = %+v, want zero state", s)
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := Load(dir)
	if !s.IsZero() {
		t.Errorf("Load of malformed file = %+v, want zero state", s)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := State{
		OutputDir: dir,
		StartDate: "2021-01-01",
		EndDate:   "2021-03-31",
		Tables:    []string{"blocks", "transactions"},
		RemoveGz:  true,
	}
	if err := want.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := Load(dir)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestSaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	first := State{OutputDir: dir, StartDate: "2020-01-01", EndDate: "2020-01-02", Tables: []string{"blocks"}}
	if err := first.Save(); err != nil {
		t.Fatal(err)
	}
	second := State{OutputDir: dir, StartDate: "2021-05-01", EndDate: "2021-05-09", Tables: []string{"outputs"}, RemoveGz: true}
	if err := second.Save(); err != nil {
		t.Fatal(err)
	}

	got := Load(dir)
	if !reflect.DeepEqual(got, second) {
		t.Errorf("after overwrite = %+v, want %+v", got, second)
	}
}

func TestRange(t *testing.T) {
	s := State{StartDate: "2021-01-01", EndDate: "2021-01-31"}
	start, end, err := s.Range()
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if start.After(end) {
		t.Errorf("start %v after end %v", start, end)
	}

	bad := State{StartDate: "garbage", EndDate: "2021-01-31"}
	if _, _, err := bad.Range(); err == nil {
		t.Error("Range accepted malformed start date")
	}
}

func TestPathLocation(t *testing.T) {
	got := Path("/data")
	if got != filepath.Join("/data", ".download_state.json") {
		t.Errorf("Path = %q", got)
	}
}
