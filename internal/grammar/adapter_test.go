package grammar

import (
	"testing"

	"github.com/montanetech/codeix-sub000/internal/model"
)

func TestParseUnknownLanguage(t *testing.T) {
	_, err := Parse([]byte("whatever"), "cobol", "f.cob")
	if err == nil {
		t.Fatalf("expected an error for an unknown language")
	}
	var unkErr *ErrUnknownLanguage
	if _, ok := err.(*ErrUnknownLanguage); !ok {
		t.Fatalf("expected *ErrUnknownLanguage, got %T", err)
	}
	_ = unkErr
}

func TestParseGoFunctions(t *testing.T) {
	src := []byte(`package main

func main() {
	greet()
}

func greet() {
	println("hi")
}
`)
	res, err := Parse(src, "go", "src/main.go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := map[string]bool{}
	for _, s := range res.Symbols {
		if s.Kind == model.KindFunction {
			names[s.Name] = true
		}
	}
	if !names["main"] || !names["greet"] {
		t.Fatalf("expected main and greet functions, got %+v", res.Symbols)
	}
}

func TestParseMarkdownHeadingsAndFence(t *testing.T) {
	src := []byte("# Guide\n\n## Install\n\n### Linux\n\nSome text.\n\n```bash\necho hi\n```\n")
	res, err := extractMarkdown(src, "README.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var qualified []string
	for _, s := range res.Symbols {
		qualified = append(qualified, s.Name)
	}
	want := "Guide/Install/Linux"
	found := false
	for _, q := range qualified {
		if q == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected qualified name %q among %v", want, qualified)
	}
	if len(res.Texts) != 1 || res.Texts[0].Kind != model.TextSample {
		t.Fatalf("expected one sample text entry, got %+v", res.Texts)
	}
	if res.Texts[0].Parent != want {
		t.Fatalf("expected fenced block parent %q, got %q", want, res.Texts[0].Parent)
	}
}

func TestParseMarkdownStrippedClosingHash(t *testing.T) {
	_, title, ok := parseATXHeading("## Title ##")
	if !ok || title != "Title" {
		t.Fatalf("expected stripped closing hashes, got %q ok=%v", title, ok)
	}
	_, title2, ok2 := parseATXHeading("# C#")
	if !ok2 || title2 != "C#" {
		t.Fatalf("expected trailing # preserved when not a closer, got %q ok=%v", title2, ok2)
	}
}

func TestExtractScriptBlocksOffsetsLines(t *testing.T) {
	src := []byte("<template><div/></template>\n<script lang=\"ts\">\nfunction greet() {}\n</script>\n")
	res, err := extractVue(src, "App.vue")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Symbols) != 1 {
		t.Fatalf("expected one symbol, got %+v", res.Symbols)
	}
	if res.Symbols[0].LineStart != 3 {
		t.Fatalf("expected function on line 3 of the composite file, got %d", res.Symbols[0].LineStart)
	}
}
