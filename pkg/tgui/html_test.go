package tgui

import "testing"

func TestEsc(t *testing.T) {
	t.Parallel()
	if got := Esc(`a <b> & "c"`); got != "a &lt;b&gt; &amp; &#34;c&#34;" {
		t.Fatalf("Esc = %q", got)
	}
}

func TestBoldLink(t *testing.T) {
	t.Parallel()
	got := BoldLink("Go <1.25>", "https://go.dev/?a=1&b=2")
	want := `<a href="https://go.dev/?a=1&amp;b=2"><b>Go &lt;1.25&gt;</b></a>`
	if got.String() != want {
		t.Fatalf("BoldLink = %q, want %q", got, want)
	}
}

func TestB(t *testing.T) {
	t.Parallel()
	if got := B("x & y"); got != "<b>x &amp; y</b>" {
		t.Fatalf("B = %q", got)
	}
}

func TestJoinHSkipsBlank(t *testing.T) {
	t.Parallel()
	got := JoinH("\n", B("a"), "", Raw("  "), I("b"))
	if got != "<b>a</b>\n<i>b</i>" {
		t.Fatalf("JoinH = %q", got)
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	if got := TruncRunes("привет", 4); got != "прив…" {
		t.Fatalf("TruncRunes = %q", got)
	}
	if got := TruncRunes("short", 10); got != "short" {
		t.Fatalf("TruncRunes = %q", got)
	}
}
