package diff

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/unbound-force/shrinkowners/internal/ownership"
)

var files = []string{"web/a.js", "web/b.js", "api/main.go", "api/db.go", "README.md"}

const originalRules = `
/web/ @web
/api/ @backend
/api/db.go @backend @dba
`

const testRules = `
/ #web
/api/ #backend
`

func trees(t *testing.T, original, test string) (*ownership.Tree, *ownership.Tree) {
	t.Helper()
	o, tt, err := Trees(context.Background(), files, original, test, ownership.Options{
		Workers: 1,
		Logger:  log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("Trees: %v", err)
	}
	return o, tt
}

func TestCompare(t *testing.T) {
	r, err := Compare(trees(t, originalRules, testRules))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	if r.Files != len(files) {
		t.Errorf("Files = %d, want %d", r.Files, len(files))
	}

	web, ok := r.Team("@web")
	if !ok {
		t.Fatal("missing web team")
	}
	if web.Original != 2 || web.Test != 3 {
		t.Errorf("web original/test = %d/%d, want 2/3", web.Original, web.Test)
	}
	if !slices.Equal(web.Gained, []string{"/README.md"}) || len(web.Lost) != 0 {
		t.Errorf("web lost=%v gained=%v", web.Lost, web.Gained)
	}

	dba, ok := r.Team("dba")
	if !ok {
		t.Fatal("missing dba team")
	}
	if !slices.Equal(dba.Lost, []string{"/api/db.go"}) || dba.Test != 0 {
		t.Errorf("dba = %+v", dba)
	}

	if r.Lost != 1 || r.Gained != 1 {
		t.Errorf("totals lost=%d gained=%d, want 1/1", r.Lost, r.Gained)
	}
	if r.LostShare() != 0.2 || r.GainedShare() != 0.2 {
		t.Errorf("shares = %v/%v, want 0.2/0.2", r.LostShare(), r.GainedShare())
	}

	// web gained the most, then the rest by name.
	var order []string
	for _, td := range r.Teams {
		order = append(order, td.Team)
	}
	if want := []string{"web", "backend", "dba"}; !slices.Equal(order, want) {
		t.Errorf("team order = %v, want %v", order, want)
	}
}

func TestCompare_Identical(t *testing.T) {
	r, err := Compare(trees(t, originalRules, originalRules))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if r.Lost != 0 || r.Gained != 0 {
		t.Errorf("identical files should not differ, got lost=%d gained=%d", r.Lost, r.Gained)
	}
}

func TestCompareFile(t *testing.T) {
	o, tt := trees(t, originalRules, testRules)

	d, err := CompareFile(o, tt, "api/db.go")
	if err != nil {
		t.Fatalf("CompareFile: %v", err)
	}
	if !d.Changed() {
		t.Error("api/db.go should have changed")
	}
	if !slices.Equal(d.Removed(), []string{"dba"}) || len(d.Added()) != 0 {
		t.Errorf("removed=%v added=%v", d.Removed(), d.Added())
	}

	d, err = CompareFile(o, tt, "web/a.js")
	if err != nil {
		t.Fatalf("CompareFile: %v", err)
	}
	if d.Changed() {
		t.Errorf("web/a.js should be unchanged: %+v", d)
	}
}

func TestCompareFile_UnownedHasNoOwners(t *testing.T) {
	o, tt := trees(t, originalRules, testRules)
	d, err := CompareFile(o, tt, "README.md")
	if err != nil {
		t.Fatalf("CompareFile: %v", err)
	}
	if len(d.Original) != 0 {
		t.Errorf("original owners = %v, want none", d.Original)
	}
	if !slices.Equal(d.Added(), []string{"web"}) {
		t.Errorf("added = %v, want [web]", d.Added())
	}
}

func TestCompareFile_UnknownPath(t *testing.T) {
	o, tt := trees(t, originalRules, testRules)
	if _, err := CompareFile(o, tt, "nope.txt"); !errors.Is(err, ownership.ErrUnknownPath) {
		t.Errorf("got %v, want ErrUnknownPath", err)
	}
}
