package schema

import (
	"errors"
	"testing"
)

func TestParseType_RoundTrip(t *testing.T) {
	tests := []string{
		"string",
		"number",
		"boolean",
		"primitive",
		"trigger",
		"unspecified",
		"<T>",
		"[string]",
		"[[number]]",
		"{a: string, b: number}",
		"{items: [{id: number, tags: [string]}], meta: <M>}",
		`{"{variables}": number}`,
		"{}",
		"[<itemType>]",
	}

	for _, src := range tests {
		typ, err := ParseType(src)
		if err != nil {
			t.Fatalf("ParseType(%q) error = %v", src, err)
		}
		if got := typ.String(); got != src {
			t.Errorf("ParseType(%q).String() = %q", src, got)
		}
		again, err := ParseType(typ.String())
		if err != nil {
			t.Fatalf("reparse %q: %v", typ.String(), err)
		}
		if !Equal(typ, again) {
			t.Errorf("round trip of %q changed the type to %q", src, again)
		}
	}
}

func TestParseType_Whitespace(t *testing.T) {
	typ, err := ParseType("  { a :[ string ] ,b: < T > }  ")
	if err != nil {
		t.Fatalf("ParseType error = %v", err)
	}
	want := Map(E("a", Stream(String())), E("b", Generic("T")))
	if !Equal(typ, want) {
		t.Errorf("got %s, want %s", typ, want)
	}
}

func TestParseType_Empty(t *testing.T) {
	typ, err := ParseType("")
	if err != nil {
		t.Fatalf("ParseType error = %v", err)
	}
	if typ.Kind() != KindUnspecified {
		t.Errorf("Kind() = %v, want unspecified", typ.Kind())
	}
}

func TestParseType_Errors(t *testing.T) {
	tests := []struct {
		src     string
		unknown bool
	}{
		{"int", true},
		{"[float]", true},
		{"[string", false},
		{"{a string}", false},
		{"{a: string, a: number}", false},
		{"<>", false},
		{"string number", false},
		{`{"open: string}`, false},
	}

	for _, tt := range tests {
		_, err := ParseType(tt.src)
		if err == nil {
			t.Errorf("ParseType(%q) expected error", tt.src)
			continue
		}
		if got := errors.Is(err, ErrUnknownType); got != tt.unknown {
			t.Errorf("ParseType(%q) errors.Is(ErrUnknownType) = %v, want %v (%v)", tt.src, got, tt.unknown, err)
		}
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		typ  Type
		want Kind
	}{
		{Unspecified(), KindUnspecified},
		{String(), KindPrimitive},
		{Primitive(), KindPrimitive},
		{Trigger(), KindTrigger},
		{Generic("T"), KindGeneric},
		{Stream(Number()), KindStream},
		{Map(), KindMap},
	}

	for _, tt := range tests {
		if got := tt.typ.Kind(); got != tt.want {
			t.Errorf("%s.Kind() = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestClone_IsDeep(t *testing.T) {
	orig := Map(E("a", Stream(String())))
	cp := Clone(orig).(*MapType)
	cp.Entries[0].Key = "changed"
	cp.Entries[0].Type.(*StreamType).Sub = Number()

	if !Equal(orig, MustParse("{a: [string]}")) {
		t.Errorf("Clone shares state with original: %s", orig)
	}
}

func TestIsConcrete(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"string", true},
		{"primitive", true},
		{"trigger", true},
		{"unspecified", false},
		{"<T>", false},
		{"[string]", true},
		{"[<T>]", false},
		{"{a: string, b: [number]}", true},
		{"{a: string, b: <T>}", false},
		{"{}", true},
	}

	for _, tt := range tests {
		if got := IsConcrete(MustParse(tt.src)); got != tt.want {
			t.Errorf("IsConcrete(%s) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestGenerics(t *testing.T) {
	got := Generics(MustParse("{a: <T>, b: [<U>], c: {d: <T>}}"))
	if len(got) != 2 || got[0] != "T" || got[1] != "U" {
		t.Errorf("Generics() = %v, want [T U]", got)
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		src, dst string
		want     bool
	}{
		{"string", "string", true},
		{"string", "number", false},
		{"string", "primitive", true},
		{"primitive", "boolean", true},
		{"{a: string}", "trigger", true},
		{"trigger", "string", false},
		{"{a: string, b: number}", "{a: string}", true},
		{"{a: string}", "{a: string, b: number}", false},
		{"{a: string}", "{a: number}", false},
		{"[string]", "[primitive]", true},
		{"[string]", "string", false},
		{"[[number]]", "[[number]]", true},
		{"<T>", "<T>", true},
		{"<T>", "<U>", false},
		{"unspecified", "unspecified", true},
		{"string", "unspecified", false},
	}

	for _, tt := range tests {
		if got := Compatible(MustParse(tt.src), MustParse(tt.dst)); got != tt.want {
			t.Errorf("Compatible(%s, %s) = %v, want %v", tt.src, tt.dst, got, tt.want)
		}
	}
}

func TestEquivalent_IgnoresMapOrder(t *testing.T) {
	a := MustParse("{a: string, b: [{x: number, y: boolean}]}")
	b := MustParse("{b: [{y: boolean, x: number}], a: string}")

	if Equal(a, b) {
		t.Errorf("Equal should respect entry order")
	}
	if !Equivalent(a, b) {
		t.Errorf("Equivalent(%s, %s) = false", a, b)
	}
}
