package errors

import (
	"os"
	"strings"
	"unicode"
)

// ValidateDirectory checks that path names an existing directory.
// what describes the directory in error messages (e.g. "build directory").
func ValidateDirectory(path, what string) error {
	if strings.TrimSpace(path) == "" {
		return New(ErrCodeInvalidPath, "%s cannot be empty", what)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "%s contains invalid control characters", what)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(ErrCodeInvalidPath, "%s %q does not exist", what, path)
		}
		return Wrap(ErrCodeIO, err, "stat %s %q", what, path)
	}
	if !info.IsDir() {
		return New(ErrCodeInvalidPath, "%s %q is not a directory", what, path)
	}
	return nil
}

// ValidateToolName checks that name can be used as an external tool name:
// non-empty, no whitespace and no control characters. Path separators are
// allowed so tools can be given by absolute path.
func ValidateToolName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidConfig, "tool name cannot be empty")
	}
	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidConfig, "tool name %q contains whitespace or control characters", name)
		}
	}
	return nil
}
