package pattern

import "testing"

func TestLiteralMatch(t *testing.T) {
	p, err := Compile(KindLiteral, "Bash")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !p.Match("Bash") {
		t.Fatalf("expected literal match")
	}
	if p.Match("bash") {
		t.Fatalf("literal match must be case-sensitive")
	}
}

func TestRegexMatchIsCaseInsensitive(t *testing.T) {
	p, err := Compile(KindRegex, "rm\\s+-rf")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !p.Match("sudo RM -RF /") {
		t.Fatalf("expected case-insensitive regex match")
	}
}

func TestGlobMultiSegment(t *testing.T) {
	p, err := Compile(KindGlob, "/project/**/*.go")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !p.Match("/project/internal/pkg/file.go") {
		t.Fatalf("expected ** to cross segments")
	}
	if p.Match("/other/file.go") {
		t.Fatalf("unexpected match outside prefix")
	}
}

func TestCompileInvalidRegexFails(t *testing.T) {
	if _, err := Compile(KindRegex, "("); err == nil {
		t.Fatalf("expected error for invalid regex")
	}
}

func TestExtractFieldDotPath(t *testing.T) {
	input := map[string]interface{}{
		"a": map[string]interface{}{
			"b": "value",
		},
	}
	v, ok := ExtractField(input, "a.b")
	if !ok || v != "value" {
		t.Fatalf("expected a.b = value, got %v ok=%v", v, ok)
	}
}

func TestExtractFieldAbsentOnWrongType(t *testing.T) {
	input := map[string]interface{}{"a": "not-an-object"}
	if _, ok := ExtractField(input, "a.b"); ok {
		t.Fatalf("expected absent field when intermediate is non-object")
	}
	if _, ok := ExtractField(input, "missing"); ok {
		t.Fatalf("expected absent field for missing key")
	}
}
