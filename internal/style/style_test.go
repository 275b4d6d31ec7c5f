package style

import (
	"strings"
	"testing"
)

func TestFormatCanonicalizes(t *testing.T) {
	messy := "package demo\n\nfunc  Messy( a ,b int ) int {return a+b}\n"
	res, err := FormatSource(messy)
	if err != nil {
		t.Fatalf("FormatSource failed: %v", err)
	}
	if !res.Changed {
		t.Error("misformatted source should read as changed")
	}
	want := "package demo\n\nfunc Messy(a, b int) int { return a + b }\n"
	if res.Formatted != want {
		t.Errorf("formatted = %q, want %q", res.Formatted, want)
	}
}

func TestFormatAlreadyClean(t *testing.T) {
	clean := "package demo\n\nfunc Tidy() int {\n\treturn 1\n}\n"
	res, err := FormatSource(clean)
	if err != nil {
		t.Fatalf("FormatSource failed: %v", err)
	}
	if res.Changed {
		t.Error("clean source should not read as changed")
	}
	if res.Formatted != clean {
		t.Errorf("formatted = %q", res.Formatted)
	}
}

func TestFormatAcceptsBareDeclarations(t *testing.T) {
	res, err := FormatSource("func Add(a,b int) int { return a+b }")
	if err != nil {
		t.Fatalf("FormatSource failed: %v", err)
	}
	if !strings.Contains(res.Formatted, "func Add(a, b int) int") {
		t.Errorf("formatted = %q", res.Formatted)
	}
}

func TestFormatRejectsBrokenSource(t *testing.T) {
	if _, err := FormatSource("package demo\n\nfunc Broken( {"); err == nil {
		t.Fatal("expected an error for unparseable source")
	}
}

func TestFormatLineWidthIsAdvisory(t *testing.T) {
	res, err := Format("package demo\n", Options{LineWidth: 100})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !strings.Contains(res.Note, "advisory") {
		t.Errorf("note = %q", res.Note)
	}

	res, err = Format("package demo\n", Options{})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if res.Note != "" {
		t.Errorf("default options should carry no note, got %q", res.Note)
	}
}
