package charset

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/sigil/markup"
	"github.com/npillmayer/sigil/stream"
	"github.com/stretchr/testify/assert"
)

func TestDetectBOMWinsOverMeta(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.charset")
	defer teardown()
	//
	input := append([]byte{0xEF, 0xBB, 0xBF},
		[]byte(`<meta charset="windows-1252">`)...)
	_, name, bomLen := Detect(input, false)
	if name != "utf-8" || bomLen != 3 {
		t.Errorf("expected BOM to win (utf-8, skip 3), got %s, skip %d", name, bomLen)
	}
}

func TestDetectUTF16BOM(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.charset")
	defer teardown()
	//
	_, name, bomLen := Detect([]byte{0xFE, 0xFF, 0x00, 0x3C}, false)
	if name != "utf-16be" || bomLen != 2 {
		t.Errorf("expected utf-16be with 2-byte BOM, got %s/%d", name, bomLen)
	}
}

func TestDetectMetaCharset(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.charset")
	defer teardown()
	//
	cases := []struct {
		in   string
		want string
	}{
		{`<html><head><meta charset="ISO-8859-1"></head>`, "windows-1252"},
		{`<meta http-equiv="Content-Type" content="text/html; charset=utf-8">`, "utf-8"},
		{`<!-- <meta charset="utf-8"> --><meta charset=windows-1252>`, "windows-1252"},
		{`<p>no declaration</p>`, "windows-1252"}, // HTML fallback
	}
	for _, c := range cases {
		_, name, _ := Detect([]byte(c.in), false)
		assert.Equal(t, c.want, name, "input: %s", c.in)
	}
}

func TestDetectXMLDeclaration(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.charset")
	defer teardown()
	//
	_, name, _ := Detect([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><a/>`), true)
	if name != "windows-1252" {
		t.Errorf("expected Latin-1 to resolve to windows-1252, got %s", name)
	}
	_, name, _ = Detect([]byte(`<a/>`), true)
	if name != "utf-8" {
		t.Errorf("expected XML fallback utf-8, got %s", name)
	}
}

func TestDecodeWindows1252(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.charset")
	defer teardown()
	//
	// 0x93/0x94 are curly quotes in Windows-1252, even when the document
	// declares Latin-1.
	input := append([]byte(`<meta charset="latin1">`), 0x93, 0x41, 0x94)
	runes, err := stream.ToList(Runes(stream.Of(input), Config{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := string(runes)
	if got != `<meta charset="latin1">“A”` {
		t.Errorf("unexpected decode result: %q", got)
	}
}

func TestDecodeInvalidUTF8(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.charset")
	defer teardown()
	//
	var diags []markup.Diagnostic
	input := []byte("a\xFFb")
	runes, err := stream.ToList(Runes(stream.Of(input),
		Config{Forced: "utf-8", Report: markup.Collect(&diags)}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(runes) != "a�b" {
		t.Errorf("expected U+FFFD substitution, got %q", string(runes))
	}
	if len(diags) != 1 || diags[0].Kind != markup.DecodingError {
		t.Errorf("expected one decoding-error diagnostic, got %v", diags)
	}
}

func TestDecodeUTF16LE(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.charset")
	defer teardown()
	//
	input := []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00}
	runes, err := stream.ToList(Runes(stream.Of(input), Config{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(runes) != "hi" {
		t.Errorf("expected hi, got %q", string(runes))
	}
}

func TestDecodeAcrossChunkBoundary(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.charset")
	defer teardown()
	//
	// é = C3 A9 split across chunks; the sniff limit is not reached, so
	// the decoder must decide at EOF and still stitch the rune together.
	runes, err := stream.ToList(Runes(stream.Of([]byte{0xC3}, []byte{0xA9}),
		Config{Forced: "utf-8"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(runes) != "é" {
		t.Errorf("expected é, got %q", string(runes))
	}
}
