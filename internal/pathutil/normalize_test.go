package pathutil

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":            "",
		"/data/":      "/data",
		"a/./b/../c":  "a/c",
		"/data//x///": "/data/x",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRel(t *testing.T) {
	rel, err := Rel("/data/", "/data/a/b")
	if err != nil || rel != "a/b" {
		t.Fatalf("Rel = %q, %v", rel, err)
	}
	rel, err = Rel("/data", "/data")
	if err != nil || rel != "." {
		t.Fatalf("Rel(root, root) = %q, %v", rel, err)
	}
	if _, err := Rel("/data", "/other/x"); err == nil {
		t.Fatalf("expected error outside root")
	}
	if _, err := Rel("/data", "/data-old"); err == nil {
		t.Fatalf("expected error for sibling prefix")
	}
}

func TestJoinURL(t *testing.T) {
	if got := JoinURL("s3://bucket/", "a/b"); got != "s3://bucket/a/b" {
		t.Fatalf("JoinURL = %q", got)
	}
	if got := JoinURL("s3://bucket", "."); got != "s3://bucket" {
		t.Fatalf("JoinURL root = %q", got)
	}
}
