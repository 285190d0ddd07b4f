package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
)

// sanitized characters are stripped from all user-supplied input before any
// validation runs; the set matches what the registration frontend rejects.
var inputSanitizer = strings.NewReplacer(
	"<", "", ">", "", ";", "", "[", "", "]", "", "/", "", "\\", "",
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// SanitizeString strips the characters `< > ; [ ] / \` and trims whitespace.
func SanitizeString(s string) string {
	return strings.TrimSpace(inputSanitizer.Replace(s))
}

// StripSeparators removes hyphens and spaces; phone numbers and CNICs are
// validated on the stripped form so "0300-1234567" and "03001234567" are
// treated identically.
func StripSeparators(s string) string {
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, " ", "")
}

// Getwd finds the project root (the directory holding go.mod).
// go-test changes the working directory to the test package being run during tests... this breaks our code...
// see: https://stackoverflow.com/questions/23847003/golang-tests-and-working-directory
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			log.Fatal("project root not found")
		}
		currDir = newDir
	}
}
