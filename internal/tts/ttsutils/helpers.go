// Package ttsutils provides path and formatting helpers shared by the otto
// commands: locating voicebank files, preparing output directories and naming
// the WAV files written for a piece of text.
package ttsutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// Environment variable names used for path resolution.
const (
	envHomeDir = "OTTO_HOME"
)

// Common application directory and path constants.
const (
	appName                = "otto"
	voicebanksDirName      = "voicebanks"
	tmpDir                 = "/tmp"
	dotLocalShare          = ".local/share"
	defaultDirPermissions  = 0o750
	invalidCharReplacement = "_"
	maxFilenameRunes       = 48
	fallbackFilename       = "otto"
)

// Data size constants.
const (
	byteUnit = 1
	kilobyte = byteUnit * 1024
	megabyte = kilobyte * 1024
)

// Formatting constants.
const (
	formatSeconds = "%.2fs"
	formatMinutes = "%dm %.1fs"
	formatMB      = "%.1f MB"
	formatKB      = "%.1f KB"
	formatBytes   = "%d B"
	extWAV        = ".wav"
)

// Error message and format string constants.
const (
	errVoicebankNotFoundMsg = "voicebank not found"
	errFmtFailedToCreateDir = "failed to create directory %s: %w"
	errFmtAbsolutePath      = "could not resolve absolute path for %q: %w"
	errFmtCheckingPath      = "error checking voicebank path %q: %w"
	errFmtVoicebankNotFound = "%w: %s"
)

// ErrVoicebankNotFound is returned when a voicebank file cannot be located.
var ErrVoicebankNotFound = errors.New(errVoicebankNotFoundMsg)

// DataDir returns the directory holding installed voicebanks, honoring OTTO_HOME.
func DataDir() string {
	if home := os.Getenv(envHomeDir); home != "" {
		return home
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(tmpDir, appName)
	}

	return filepath.Join(userHome, dotLocalShare, appName)
}

// EnsureDir creates path and its parents if they do not exist.
func EnsureDir(path string) error {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		mkdirErr := os.MkdirAll(path, defaultDirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf(errFmtFailedToCreateDir, path, mkdirErr)
		}
	}

	return nil
}

// resolveSinglePath reports whether path exists and returns its absolute form.
// A missing path is not an error; any other stat failure is.
func resolveSinglePath(path string) (resolvedPath string, found bool, err error) {
	_, statErr := os.Stat(path)
	if statErr == nil {
		absPath, absErr := filepath.Abs(path)
		if absErr != nil {
			return "", false, fmt.Errorf(errFmtAbsolutePath, path, absErr)
		}

		return absPath, true, nil
	} else if !os.IsNotExist(statErr) {
		return "", false, fmt.Errorf(errFmtCheckingPath, path, statErr)
	}

	return "", false, nil
}

// ResolveVoicebankPath finds a voicebank file. The name is tried as given, then
// under a local voicebanks directory, then under DataDir.
func ResolveVoicebankPath(name string) (string, error) {
	candidatePaths := []string{
		name,
		filepath.Join(voicebanksDirName, name),
		filepath.Join(DataDir(), voicebanksDirName, name),
	}

	for _, path := range candidatePaths {
		resolvedPath, found, err := resolveSinglePath(path)
		if err != nil {
			return "", err
		} else if found {
			return resolvedPath, nil
		}
	}

	return "", fmt.Errorf(errFmtVoicebankNotFound, ErrVoicebankNotFound, name)
}

// FormatDuration renders an audio length, e.g. "2.35s" or "1m 4.2s".
func FormatDuration(duration time.Duration) string {
	seconds := duration.Seconds()
	if duration < time.Minute {
		return fmt.Sprintf(formatSeconds, seconds)
	}

	minutes := int(duration / time.Minute)

	return fmt.Sprintf(formatMinutes, minutes, seconds-float64(minutes*60))
}

// FormatFileSize renders a byte count, e.g. "1.2 MB".
func FormatFileSize(bytes int64) string {
	switch {
	case bytes >= megabyte:
		return fmt.Sprintf(formatMB, float64(bytes)/megabyte)
	case bytes >= kilobyte:
		return fmt.Sprintf(formatKB, float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf(formatBytes, bytes)
	}
}

// IsWAVFile reports whether filename has a .wav extension.
func IsWAVFile(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), extWAV)
}

// SanitizeFilename replaces characters that are invalid in most filesystems.
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"<", invalidCharReplacement,
		">", invalidCharReplacement,
		":", invalidCharReplacement,
		"\"", invalidCharReplacement,
		"/", invalidCharReplacement,
		"\\", invalidCharReplacement,
		"|", invalidCharReplacement,
		"?", invalidCharReplacement,
		"*", invalidCharReplacement,
		" ", invalidCharReplacement,
	)

	return replacer.Replace(filename)
}

// OutputFilename derives a WAV file name from the text being synthesized.
func OutputFilename(input string) string {
	name := SanitizeFilename(strings.TrimSpace(input))
	if utf8.RuneCountInString(name) > maxFilenameRunes {
		name = string([]rune(name)[:maxFilenameRunes])
	}

	if name == "" {
		name = fallbackFilename
	}

	return name + extWAV
}
