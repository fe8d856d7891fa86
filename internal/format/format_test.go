package format

import "testing"

func TestTime(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{-1, "0:00"},
		{0, "0:00"},
		{65.9, "1:05"},
		{125, "2:05"},
	}
	for _, c := range cases {
		if got := Time(c.in); got != c.want {
			t.Errorf("Time(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTimeFloorsFractionalSeconds(t *testing.T) {
	if Time(65.9) != Time(65.0) {
		t.Errorf("Time should floor before formatting")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("short string should pass through, got %q", got)
	}
	if got := Truncate("hello world", 5); got != "hell…" {
		t.Errorf("Truncate(\"hello world\", 5) = %q, want \"hell…\"", got)
	}
	if len(Truncate("hello world", 5)) == 0 {
		t.Errorf("unexpected empty result")
	}
	if Truncate("abcdefgh", 8) != "abcdefgh" {
		t.Errorf("exact-length string must not be truncated")
	}
}

func TestTruncateRuneCount(t *testing.T) {
	s := "日本語のタイトル"
	got := Truncate(s, 4)
	if r := []rune(got); len(r) != 4 {
		t.Errorf("Truncate must count runes, got %d runes in %q", len(r), got)
	}
}

func TestPangoEscapeOrder(t *testing.T) {
	got := PangoEscape(`a & <b> 'c' "d"`)
	want := "a &amp; &lt;b&gt; &apos;c&apos; &quot;d&quot;"
	if got != want {
		t.Errorf("PangoEscape() = %q, want %q", got, want)
	}
}

func TestPangoEscapeAmpersandFirst(t *testing.T) {
	// If '<' were escaped before '&', "<" -> "&lt;" would then have its '&'
	// re-escaped into "&amp;lt;". Verify that does not happen.
	got := PangoEscape("<")
	if got != "&lt;" {
		t.Errorf("PangoEscape(\"<\") = %q, want \"&lt;\"", got)
	}
}

func TestLabel(t *testing.T) {
	if Label("", "") != "" {
		t.Errorf("empty label should be empty")
	}
	if Label("Artist", "") != "Artist" {
		t.Errorf("artist-only label wrong")
	}
	if Label("", "Title") != "Title" {
		t.Errorf("title-only label wrong")
	}
	if Label("Artist", "Title") != "Artist - Title" {
		t.Errorf("full label wrong")
	}
}
