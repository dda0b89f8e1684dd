package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseLevel validates level string parsing.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		ok       bool
	}{
		{input: "debug", expected: DEBUG, ok: true},
		{input: "INFO", expected: INFO, ok: true},
		{input: "Warn", expected: WARN, ok: true},
		{input: "error", expected: ERROR, ok: true},
		{input: "fatal", expected: FATAL, ok: true},
		{input: "verbose", ok: false},
		{input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel("info"))
	assert.True(t, ValidLevel(" debug "))
	assert.False(t, ValidLevel("loud"))
}

// TestWithFieldImmutable verifies WithField copies rather than mutates.
func TestWithFieldImmutable(t *testing.T) {
	base := GetLogger("test")
	derived := base.WithField("case_id", "abc")

	assert.Empty(t, base.fields)
	assert.Equal(t, "abc", derived.fields["case_id"])

	further := derived.WithFields(Field("turn", 3), Field("case_id", "xyz"))
	assert.Equal(t, "abc", derived.fields["case_id"])
	assert.Equal(t, "xyz", further.fields["case_id"])
	assert.Equal(t, 3, further.fields["turn"])
}

// TestCloneFields verifies nil and populated maps clone safely.
func TestCloneFields(t *testing.T) {
	cloned := cloneFields(nil)
	require.NotNil(t, cloned)
	assert.Empty(t, cloned)

	src := map[string]interface{}{"a": 1}
	dst := cloneFields(src)
	dst["a"] = 2
	assert.Equal(t, 1, src["a"])
}

// TestFatalUsesExitFunc verifies Fatal goes through the overridable
// exit hook.
func TestFatalUsesExitFunc(t *testing.T) {
	original := exitFunc
	defer func() { exitFunc = original }()

	code := 0
	exitFunc = func(c int) { code = c }

	GetLogger("test").Fatal("unrecoverable")
	assert.Equal(t, 1, code)
}

// TestShouldLog verifies level gating.
func TestShouldLog(t *testing.T) {
	l := &Logger{level: WARN}
	assert.False(t, l.shouldLog(DEBUG))
	assert.False(t, l.shouldLog(INFO))
	assert.True(t, l.shouldLog(WARN))
	assert.True(t, l.shouldLog(ERROR))
}
