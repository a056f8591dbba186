package service

import "testing"

func TestTableOrder(t *testing.T) {
	got := All()
	want := []string{YouTube, Spotify, Amazon}
	if len(got) != len(want) {
		t.Fatalf("len(All()) = %d; want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("All()[%d] = %q; want %q", i, got[i].Name, name)
		}
	}
	if Default().Name != YouTube {
		t.Fatalf("Default() = %q; want youtube", Default().Name)
	}
	if Default().FallbackURL != "https://music.youtube.com" {
		t.Fatalf("Default().FallbackURL = %q", Default().FallbackURL)
	}
}

func TestForURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{url: "https://music.youtube.com/watch?v=abc", want: YouTube, ok: true},
		{url: "http://music.youtube.com/", want: YouTube, ok: true},
		{url: "https://music.youtube.com", want: YouTube, ok: true},
		{url: "https://open.spotify.com/album/1", want: Spotify, ok: true},
		{url: "https://music.amazon.com/my/library", want: Amazon, ok: true},
		{url: "https://www.youtube.com/watch?v=abc", ok: false},
		{url: "https://spotify.com/", ok: false},
		{url: "ftp://music.youtube.com/", ok: false},
		{url: "chrome://newtab/", ok: false},
		{url: "not a url", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			d, ok := ForURL(tt.url)
			if ok != tt.ok {
				t.Fatalf("ForURL(%q) ok = %v; want %v", tt.url, ok, tt.ok)
			}
			if ok && d.Name != tt.want {
				t.Fatalf("ForURL(%q) = %q; want %q", tt.url, d.Name, tt.want)
			}
		})
	}
}

func TestParsePatternWildcardHost(t *testing.T) {
	p, err := ParsePattern("https://*.example.com/player/*")
	if err != nil {
		t.Fatalf("ParsePattern() = %v", err)
	}
	cases := map[string]bool{
		"https://example.com/player/1":     true,
		"https://a.b.example.com/player/x": true,
		"https://example.com/other":        false,
		"http://a.example.com/player/1":    false,
		"https://badexample.com/player/1":  false,
	}
	for u, want := range cases {
		if got := p.Match(u); got != want {
			t.Errorf("Match(%q) = %v; want %v", u, got, want)
		}
	}
}

func TestParsePatternRejectsMalformed(t *testing.T) {
	for _, s := range []string{"music.youtube.com/*", "*://music.youtube.com", "gopher://x/*", "*://mu*sic.com/*", "*:///x"} {
		if _, err := ParsePattern(s); err == nil {
			t.Errorf("ParsePattern(%q) = nil error; want failure", s)
		}
	}
}

func TestByName(t *testing.T) {
	d, ok := ByName(Amazon)
	if !ok || d.FallbackURL != "https://music.amazon.com" {
		t.Fatalf("ByName(amazon) = %+v, %v", d, ok)
	}
	if _, ok := ByName("tidal"); ok {
		t.Fatal("ByName(tidal) ok = true; want false")
	}
}
