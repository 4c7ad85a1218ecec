package targets

import (
	"context"
	"testing"
)

type dummyTarget struct{ name string }

func (d *dummyTarget) Name() string { return d.name }
func (d *dummyTarget) Post(ctx context.Context, req TargetRequest) (TargetResult, error) {
	return TargetResult{TargetName: d.name, Location: "loc:" + req.MarkdownName()}, nil
}

func TestRegistry_AddGetNames(t *testing.T) {
	reg := NewRegistry()
	if len(reg.Names()) != 0 {
		t.Fatalf("expected empty registry")
	}
	reg.Add(&dummyTarget{name: "t2"})
	reg.Add(&dummyTarget{name: "t1"})

	tg, ok := reg.Get("t1")
	if !ok {
		t.Fatalf("expected to get target t1")
	}
	if _, ok := reg.Get("nope"); ok {
		t.Fatalf("unexpected target for unknown name")
	}
	names := reg.Names()
	if len(names) != 2 || names[0] != "t1" || names[1] != "t2" {
		t.Fatalf("names mismatch: %+v", names)
	}

	res, err := tg.Post(context.Background(), TargetRequest{JobID: "job", Markdown: "md", FileName: "scan.png"})
	if err != nil {
		t.Fatalf("dummy post returned error: %v", err)
	}
	if res.Location != "loc:scan.md" {
		t.Fatalf("unexpected location %q", res.Location)
	}
}

func TestTargetRequest_MarkdownName(t *testing.T) {
	cases := []struct {
		req  TargetRequest
		want string
	}{
		{TargetRequest{FileName: "lecture.pdf"}, "lecture.md"},
		{TargetRequest{FileName: "archive.tar.gz"}, "archive.tar.md"},
		{TargetRequest{FileName: "README"}, "README.md"},
		{TargetRequest{FileName: `C:\scans\page 1.jpg`}, "page 1.md"},
		{TargetRequest{SourcePath: "/data/in/notes.png"}, "notes.md"},
		{TargetRequest{FileName: ".hidden"}, ".hidden.md"},
		{TargetRequest{JobID: "abc"}, "abc.md"},
		{TargetRequest{JobID: "5b0e7c1a-9d2f-4e31", FileName: "scan.png", Unique: true}, "scan-5b0e7c1a.md"},
		{TargetRequest{JobID: "abc", FileName: "scan.png", Unique: true}, "scan-abc.md"},
		{TargetRequest{JobID: "abc", Unique: true}, "abc.md"},
		{TargetRequest{FileName: "scan.png", Unique: true}, "scan.md"},
	}
	for _, c := range cases {
		if got := c.req.MarkdownName(); got != c.want {
			t.Fatalf("MarkdownName(%+v) = %q, want %q", c.req, got, c.want)
		}
	}
}
