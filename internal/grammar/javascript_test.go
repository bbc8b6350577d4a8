package grammar

import (
	"testing"

	"github.com/montanetech/codeix-sub000/internal/model"
)

func TestParseJSFunctionDeclaration(t *testing.T) {
	src := []byte(`function greet() {
	console.log("hi")
}
`)
	res, err := Parse(src, "javascript", "greet.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, s := range res.Symbols {
		if s.Kind == model.KindFunction && s.Name == "greet" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a greet function symbol, got %+v", res.Symbols)
	}
}

func TestParseJSArrowConstYieldsOneFunctionSymbol(t *testing.T) {
	src := []byte(`const greet = () => {
	console.log("hi")
}
`)
	res, err := Parse(src, "javascript", "greet.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var matches []model.Symbol
	for _, s := range res.Symbols {
		if s.Name == "greet" {
			matches = append(matches, s)
		}
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly one symbol for the arrow-function const, got %+v", matches)
	}
	if matches[0].Kind != model.KindFunction {
		t.Fatalf("expected the surviving symbol to be a function, got %+v", matches[0])
	}
}

func TestParseJSPlainConstStillYieldsVariable(t *testing.T) {
	src := []byte(`const total = 42
`)
	res, err := Parse(src, "javascript", "total.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, s := range res.Symbols {
		if s.Kind == model.KindVariable && s.Name == "total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a total variable symbol, got %+v", res.Symbols)
	}
}
