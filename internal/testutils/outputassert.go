package testutils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// TestingT is the part of testing.T the asserters use.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// OutputAssertOptions controls how command output is normalized before it is
// compared.
type OutputAssertOptions struct {
	TrimSpace                bool     `default:"true"`
	IgnoreTrailingWhitespace bool     `default:"true"`
	IgnoreEmptyLines         bool     `default:"false"`
	EnableColors             bool     `default:"false"`
	IgnoredFields            []string `default:""`
}

// OutputOption is a functional option for OutputAsserter.
type OutputOption func(*OutputAssertOptions)

// OutputAsserter compares CLI output against expectations and reports a diff.
type OutputAsserter struct {
	t       TestingT
	options OutputAssertOptions
}

// NewOutputAsserter creates an asserter with default options.
func NewOutputAsserter(t TestingT, opts ...OutputOption) *OutputAsserter {
	o := OutputAssertOptions{}
	defaults.SetDefaults(&o)
	for _, opt := range opts {
		opt(&o)
	}
	return &OutputAsserter{t: t, options: o}
}

// Options returns a copy of the current options.
func (a *OutputAsserter) Options() OutputAssertOptions {
	return a.options
}

// Text fails the test with a unified diff when actual differs from expected.
func (a *OutputAsserter) Text(actual, expected string) bool {
	a.t.Helper()
	if diff := a.textDiff(actual, expected); diff != "" {
		a.t.Errorf("Text assertion failed - unified diff:\n%s", diff)
		return false
	}
	return true
}

// JSON compares one JSON document. Fields listed in IgnoredFields are removed
// from objects at any depth on both sides first.
func (a *OutputAsserter) JSON(actual, expected string) bool {
	a.t.Helper()
	if diff := a.jsonDiff(actual, expected); diff != "" {
		a.t.Errorf("JSON assertion failed:\n%s", diff)
		return false
	}
	return true
}

// JSONLines compares newline separated JSON documents pairwise.
func (a *OutputAsserter) JSONLines(actual string, expected ...string) bool {
	a.t.Helper()
	lines := nonEmptyLines(actual)
	if len(lines) != len(expected) {
		a.t.Errorf("JSON lines assertion failed: got %d documents, want %d\n%s", len(lines), len(expected), actual)
		return false
	}
	ok := true
	for i := range lines {
		if diff := a.jsonDiff(lines[i], expected[i]); diff != "" {
			a.t.Errorf("JSON line %d assertion failed:\n%s", i, diff)
			ok = false
		}
	}
	return ok
}

func (a *OutputAsserter) textDiff(actual, expected string) string {
	normalizedActual := a.normalize(actual)
	normalizedExpected := a.normalize(expected)
	if normalizedActual == normalizedExpected {
		return ""
	}

	edits := myers.ComputeEdits("", normalizedExpected, normalizedActual)
	unified := gotextdiff.ToUnified("expected", "actual", normalizedExpected, edits)
	return a.colorize(fmt.Sprint(unified))
}

func (a *OutputAsserter) jsonDiff(actualJSON, expectedJSON string) string {
	var expected, actual interface{}
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		return fmt.Sprintf("invalid expected JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(actualJSON), &actual); err != nil {
		return fmt.Sprintf("invalid actual JSON: %v", err)
	}

	// gojsondiff only compares objects at the root
	if _, isArray := expected.([]interface{}); isArray {
		expected = map[string]interface{}{"array": expected}
		actual = map[string]interface{}{"array": actual}
	}
	for _, field := range a.options.IgnoredFields {
		dropField(expected, field)
		dropField(actual, field)
	}

	expectedBytes, _ := json.Marshal(expected)
	actualBytes, _ := json.Marshal(actual)

	diff, err := gojsondiff.New().Compare(expectedBytes, actualBytes)
	if err != nil {
		return fmt.Sprintf("JSON comparison failed: %v", err)
	}
	if !diff.Modified() {
		return ""
	}

	f := formatter.NewAsciiFormatter(expected, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       a.options.EnableColors,
	})
	out, _ := f.Format(diff)
	return out
}

func dropField(v interface{}, field string) {
	switch val := v.(type) {
	case map[string]interface{}:
		delete(val, field)
		for _, child := range val {
			dropField(child, field)
		}
	case []interface{}:
		for _, child := range val {
			dropField(child, field)
		}
	}
}

func (a *OutputAsserter) colorize(diff string) string {
	if !a.options.EnableColors {
		return diff
	}

	red := color.New(color.FgRed)
	red.EnableColor()
	green := color.New(color.FgGreen)
	green.EnableColor()
	cyan := color.New(color.FgCyan)
	cyan.EnableColor()

	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "@@"):
			lines[i] = cyan.Sprint(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = red.Sprint(visibleWhitespace(line))
		case strings.HasPrefix(line, "+"):
			lines[i] = green.Sprint(visibleWhitespace(line))
		}
	}
	return strings.Join(lines, "\n")
}

// visibleWhitespace shows spaces as '·' and tabs as '→'.
func visibleWhitespace(line string) string {
	line = strings.ReplaceAll(line, " ", "·")
	return strings.ReplaceAll(line, "\t", "→")
}

func (a *OutputAsserter) normalize(text string) string {
	if a.options.TrimSpace {
		text = strings.TrimSpace(text)
	}

	var result []string
	for _, line := range strings.Split(text, "\n") {
		if a.options.IgnoreEmptyLines && strings.TrimSpace(line) == "" {
			continue
		}
		if a.options.IgnoreTrailingWhitespace {
			line = strings.TrimRight(line, " \t")
		}
		result = append(result, line)
	}
	return strings.Join(result, "\n")
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// WithIgnoreEmptyLines drops blank lines before comparing text.
func WithIgnoreEmptyLines(ignore bool) OutputOption {
	return func(o *OutputAssertOptions) { o.IgnoreEmptyLines = ignore }
}

// WithTrimSpace trims the whole text before comparing.
func WithTrimSpace(trim bool) OutputOption {
	return func(o *OutputAssertOptions) { o.TrimSpace = trim }
}

// WithEnableColors colors the reported diff.
func WithEnableColors(enable bool) OutputOption {
	return func(o *OutputAssertOptions) { o.EnableColors = enable }
}

// WithIgnoredFields removes the named JSON fields before comparing.
func WithIgnoredFields(fields ...string) OutputOption {
	return func(o *OutputAssertOptions) { o.IgnoredFields = fields }
}
