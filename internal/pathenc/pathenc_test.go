package pathenc

import "testing"

func TestEncode(t *testing.T) {
	cases := []struct {
		path, want string
	}{
		{"/Users/foo/project", "-Users-foo-project"},
		{"/Users/foo/.claude", "-Users-foo--claude"},
		{"/home/dev/my.app", "-home-dev-my-app"},
		{"/", "-"},
	}
	for _, c := range cases {
		if got := Encode(c.path); got != c.want {
			t.Errorf("Encode(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a := Encode("/srv/data/project")
	b := Encode("/srv/data/project")
	if a != b {
		t.Errorf("expected identical keys, got %q and %q", a, b)
	}
}

func TestEncodeNoSeparators(t *testing.T) {
	key := Encode("/deep/ly/nested/path.with.dots")
	for _, r := range key {
		if r == '/' {
			t.Fatalf("encoded key %q contains a path separator", key)
		}
	}
}

func TestDecodeBestEffort(t *testing.T) {
	// Lossless for paths without dots.
	if got := Decode(Encode("/Users/foo/project")); got != "/Users/foo/project" {
		t.Errorf("round trip = %q", got)
	}
	// Lossy for dots: they come back as slashes.
	if got := Decode(Encode("/home/dev/my.app")); got != "/home/dev/my/app" {
		t.Errorf("lossy decode = %q, want /home/dev/my/app", got)
	}
}

func TestKnownCollision(t *testing.T) {
	// Documented limitation: '.' and '/' encode identically.
	if Encode("/a/b.c") != Encode("/a/b/c") {
		t.Error("expected the documented dot/slash collision")
	}
}
