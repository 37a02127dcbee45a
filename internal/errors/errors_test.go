package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         string
		wantMsg      string
		wantCat      Category
		wantSeverity Severity
	}{
		{
			name:         "duplicate binding",
			code:         CodeDuplicateBinding,
			wantMsg:      "Multiple concurrent bindings for the same key",
			wantCat:      CategoryBinding,
			wantSeverity: SeverityError,
		},
		{
			name:         "read failure",
			code:         CodeReadFailure,
			wantMsg:      "Failed to read stored value, using initial value",
			wantCat:      CategoryStorage,
			wantSeverity: SeverityWarning,
		},
		{
			name:         "sync decode failure",
			code:         CodeSyncDecodeFailure,
			wantMsg:      "Failed to decode value from change notification",
			wantCat:      CategoryCodec,
			wantSeverity: SeverityWarning,
		},
		{
			name:         "unknown code",
			code:         "E999",
			wantMsg:      "Unknown error",
			wantCat:      "",
			wantSeverity: SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Severity != tt.wantSeverity {
				t.Errorf("Severity = %q, want %q", err.Severity, tt.wantSeverity)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := New(CodeWriteFailure).WithDetail(`key "todos"`).Wrap(cause)

	want := `W002: Failed to write value to store (key "todos"): disk full`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	plain := Newf(CategoryCLI, "bad flag %q", "x")
	if got := plain.Error(); got != `bad flag "x"` {
		t.Errorf("Error() = %q, want %q", got, `bad flag "x"`)
	}
}

func TestError_IsAndUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := fmt.Errorf("bind: %w", New(CodeDuplicateBinding).Wrap(cause))

	if !HasCode(err, CodeDuplicateBinding) {
		t.Error("HasCode(E001) = false, want true")
	}
	if HasCode(err, CodeReadFailure) {
		t.Error("HasCode(W001) = true, want false")
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is(cause) = false, want true")
	}

	var e *Error
	if !stderrors.As(err, &e) {
		t.Fatal("errors.As failed")
	}
	if e.Code != CodeDuplicateBinding {
		t.Errorf("Code = %q, want %q", e.Code, CodeDuplicateBinding)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, CodeReadFailure) != nil {
		t.Error("FromError(nil) should return nil")
	}

	orig := New(CodeDuplicateBinding)
	if got := FromError(fmt.Errorf("wrapped: %w", orig), CodeReadFailure); got != orig {
		t.Errorf("FromError should return the existing *Error, got %v", got)
	}

	std := stderrors.New("plain")
	got := FromError(std, CodeReadFailure)
	if got.Code != CodeReadFailure {
		t.Errorf("Code = %q, want %q", got.Code, CodeReadFailure)
	}
	if got.Unwrap() != std {
		t.Error("FromError should wrap the original error")
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New(CodeDuplicateBinding).
		WithDetail(`key "theme" is already bound`).
		Wrap(stderrors.New("registry collision"))
	out := err.Format()

	for _, want := range []string{
		"ERROR E001: Multiple concurrent bindings for the same key",
		`key "theme" is already bound`,
		"Cause: registry collision",
		"Hint: Share one binding",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}

	warn := New(CodeWriteFailure).Format()
	if !strings.Contains(warn, "WARNING W002") {
		t.Errorf("warning Format() = %q, want WARNING label", warn)
	}
}

func TestFormatCompact(t *testing.T) {
	err := New(CodeUnsupportedEnv).WithDetail("todos")
	want := "W003: No persistent store available, update ignored (todos)"
	if got := err.FormatCompact(); got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New(CodeReadFailure).WithDetail("todos").Wrap(stderrors.New("corrupt"))

	var out map[string]string
	if e := json.Unmarshal([]byte(err.FormatJSON()), &out); e != nil {
		t.Fatalf("FormatJSON produced invalid JSON: %v", e)
	}
	if out["code"] != CodeReadFailure {
		t.Errorf("code = %q, want %q", out["code"], CodeReadFailure)
	}
	if out["severity"] != string(SeverityWarning) {
		t.Errorf("severity = %q, want %q", out["severity"], SeverityWarning)
	}
	if out["cause"] != "corrupt" {
		t.Errorf("cause = %q, want corrupt", out["cause"])
	}
}

func TestCodesAndLookup(t *testing.T) {
	codes := Codes()
	if len(codes) != len(registry) {
		t.Fatalf("Codes() len = %d, want %d", len(codes), len(registry))
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] > codes[i] {
			t.Errorf("Codes() not sorted at %d: %q > %q", i, codes[i-1], codes[i])
		}
	}

	tmpl, ok := Lookup(CodeWriteFailure)
	if !ok {
		t.Fatal("Lookup(W002) not found")
	}
	if tmpl.Severity != SeverityWarning {
		t.Errorf("Severity = %q, want warning", tmpl.Severity)
	}
	if _, ok := Lookup("Z999"); ok {
		t.Error("Lookup(Z999) should not be found")
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six", 9)
	for _, line := range lines {
		if len(line) > 9 {
			t.Errorf("line %q longer than width", line)
		}
	}
	if got := strings.Join(lines, " "); got != "one two three four five six" {
		t.Errorf("joined = %q", got)
	}
	if wrapText("", 10) != nil {
		t.Error("wrapText(\"\") should be nil")
	}
}

func TestPrint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	Print(&buf, New(CodeDuplicateBinding))
	if !strings.Contains(buf.String(), "E001") {
		t.Errorf("Print(*Error) = %q", buf.String())
	}

	buf.Reset()
	Print(&buf, stderrors.New("plain failure"))
	if !strings.Contains(buf.String(), "ERROR: plain failure") {
		t.Errorf("Print(error) = %q", buf.String())
	}
}

func TestPrintCompact(t *testing.T) {
	var buf bytes.Buffer
	PrintCompact(&buf, New(CodeUnknownStore).WithDetail(`store.kind "tape"`))
	if got, want := buf.String(), "E011: Unknown store kind (store.kind \"tape\")\n"; got != want {
		t.Errorf("PrintCompact() = %q, want %q", got, want)
	}

	buf.Reset()
	PrintCompact(&buf, stderrors.New("plain failure"))
	if got, want := buf.String(), "ERROR: plain failure\n"; got != want {
		t.Errorf("PrintCompact(plain) = %q, want %q", got, want)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	PrintJSON(&buf, fmt.Errorf("open: %w", New(CodeUnknownStore)))

	var out map[string]string
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("PrintJSON produced invalid JSON: %v", err)
	}
	if out["code"] != CodeUnknownStore {
		t.Errorf("code = %q, want %q", out["code"], CodeUnknownStore)
	}

	buf.Reset()
	PrintJSON(&buf, stderrors.New("plain failure"))
	out = nil
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("PrintJSON(plain) produced invalid JSON: %v", err)
	}
	if out["message"] != "plain failure" {
		t.Errorf("message = %q, want %q", out["message"], "plain failure")
	}
}
