package content

import (
	"regexp"
	"strings"
)

var (
	labelNumberPrefix = regexp.MustCompile(`^(\d+)\.`)
	labelSeparators   = regexp.MustCompile(`[_-]+`)
	labelCamelCase    = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	labelSpaces       = regexp.MustCompile(`\s+`)
)

// PrettyLabel turns a file or folder name into a display label:
// "4.SamplingFromStandardNormal" becomes "4. Sampling From Standard Normal".
func PrettyLabel(name string) string {
	s := labelNumberPrefix.ReplaceAllString(name, "$1. ")
	s = labelSeparators.ReplaceAllString(s, " ")
	s = labelCamelCase.ReplaceAllString(s, "$1 $2")
	s = labelSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
