package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigTypeError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ConfigTypeError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with key",
			err:      &ConfigTypeError{Key: "VENT", Type: "integer"},
			wantMsg:  "invalid option type for VENT: integer",
			wantBase: ErrInvalidConfig,
		},
		{
			name:     "without key",
			err:      &ConfigTypeError{Type: "float"},
			wantMsg:  "invalid option type: float",
			wantBase: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, tt.wantBase) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.wantBase)
			}
		})
	}

	// Wrapping a cause must not hide the sentinel.
	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("json type mismatch")
		err := &ConfigTypeError{Key: "BET", Type: "bool", Err: underlyingErr}
		if !errors.Is(err, underlyingErr) {
			t.Error("errors.Is should match the underlying cause")
		}
		if !errors.Is(err, ErrInvalidConfig) {
			t.Error("errors.Is should still match ErrInvalidConfig")
		}
		if !IsFatal(err) {
			t.Error("ConfigTypeError with a cause must stay fatal")
		}
	})
}

func TestValueValidationError(t *testing.T) {
	err := &ValueValidationError{Key: "TOP", Value: "squirrel"}
	want := `TOP value "squirrel" is not a number`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("ValueValidationError should unwrap to ErrInvalidConfig")
	}
}

func TestInputError(t *testing.T) {
	tests := []struct {
		name    string
		err     *InputError
		wantMsg string
	}{
		{
			name:    "full context",
			err:     &InputError{Name: "NIFTI_1", Path: "/in/scan.nii", Reason: "not a NIfTI image"},
			wantMsg: "invalid input NIFTI_1 (/in/scan.nii): not a NIfTI image",
		},
		{
			name:    "name only",
			err:     &InputError{Name: "ventricle_mask", Reason: "provided without VENT"},
			wantMsg: "invalid input ventricle_mask: provided without VENT",
		},
		{
			name:    "reason only",
			err:     &InputError{Reason: "no image inputs"},
			wantMsg: "invalid input: no image inputs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Error("InputError should unwrap to ErrInvalidInput")
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		cause := fmt.Errorf("read: permission denied")
		err := &InputError{Name: "NIFTI", Path: "/in/scan.nii", Reason: "unreadable image", Err: cause}
		if !errors.Is(err, cause) {
			t.Error("errors.Is should match the underlying cause")
		}
		if !IsFatal(err) {
			t.Error("InputError with a cause must stay fatal")
		}
	})
}

func TestBackendError(t *testing.T) {
	underlying := fmt.Errorf("connection refused")
	err := NewBackend("write metadata", underlying)

	want := "metadata backend: write metadata: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, underlying) {
		t.Error("BackendError should unwrap to the underlying error")
	}
	if IsFatal(err) {
		t.Error("backend failures must never be fatal")
	}
}

func TestIOError(t *testing.T) {
	underlying := fmt.Errorf("permission denied")
	err := NewIO("open", "/out/report.html", underlying)

	want := "failed to open /out/report.html: permission denied"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
}

func TestParseError(t *testing.T) {
	err := NewParse("manifest", "/flywheel/v0/manifest.json", "unexpected end of input")
	want := "failed to parse manifest at /flywheel/v0/manifest.json: unexpected end of input"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("ParseError should unwrap to ErrInvalidConfig")
	}
}

func TestUnsupportedError(t *testing.T) {
	err := NewUnsupported("compression", "unknown magic bytes")
	want := "unsupported compression: unknown magic bytes"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Error("UnsupportedError should unwrap to ErrUnsupported")
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"config type", NewConfigType("X", "integer"), true},
		{"value validation", NewValueValidation("TOP", "abc"), true},
		{"input", NewInput("NIFTI", "", "unreadable"), true},
		{"tool not found", fmt.Errorf("resolve: %w", ErrToolNotFound), true},
		{"parse", NewParse("JSON", "", "bad"), true},
		{"backend", NewBackend("write", fmt.Errorf("boom")), false},
		{"unrecognized report", ErrUnrecognizedReport, false},
		{"subject unknown", ErrSubjectUnknown, false},
		{"plain error", fmt.Errorf("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	base := errors.New("base error")
	wrapped := Wrap(base, "context")

	if wrapped.Error() != "context: base error" {
		t.Errorf("Wrap() = %q, want %q", wrapped.Error(), "context: base error")
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should match base with errors.Is")
	}
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrapf(t *testing.T) {
	base := errors.New("base error")
	wrapped := Wrapf(base, "context %d", 42)

	if wrapped.Error() != "context 42: base error" {
		t.Errorf("Wrapf() = %q, want %q", wrapped.Error(), "context 42: base error")
	}
	if Wrapf(nil, "context %d", 42) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestIsAndAs(t *testing.T) {
	err := NewInput("NIFTI", "/x", "bad header")

	if !Is(err, ErrInvalidInput) {
		t.Error("Is() should see through InputError")
	}

	var inputErr *InputError
	if !As(err, &inputErr) {
		t.Fatal("As() should extract *InputError")
	}
	if inputErr.Name != "NIFTI" {
		t.Errorf("extracted Name = %q, want NIFTI", inputErr.Name)
	}
}
