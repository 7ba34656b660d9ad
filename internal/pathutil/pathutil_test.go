package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_ForwardSlashes(t *testing.T) {
	assert.Equal(t, "src/main.go", Normalize("src/main.go"))
}

func TestNormalize_Backslashes(t *testing.T) {
	assert.Equal(t, "c:/users/dev/src/main.go", Normalize(`C:\Users\Dev\src\main.go`))
}

func TestNormalize_EscapedBackslashes(t *testing.T) {
	// JSON round-trip artifact: each separator arrives doubled
	assert.Equal(t, "c:/users/dev/main.go", Normalize(`C:\\Users\\Dev\\main.go`))
}

func TestNormalize_QuadBackslash(t *testing.T) {
	// `\\\\` is two escaped backslashes; both orders of the replacement
	// rules must be pinned or this case disagrees
	assert.Equal(t, "a/b", Normalize(`a\\\\b`))
}

func TestNormalize_Lowercases(t *testing.T) {
	assert.Equal(t, "src/main.go", Normalize("SRC/Main.GO"))
}

func TestNormalize_CollapsesSlashes(t *testing.T) {
	assert.Equal(t, "a/b/c", Normalize("a//b///c"))
}

func TestNormalize_Empty(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
}

func TestNormalize_Idempotent(t *testing.T) {
	paths := []string{`C:\Users\Dev\main.go`, "a//B", `x\\y`, "plain/path.txt"}
	for _, p := range paths {
		once := Normalize(p)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix(`C:\repo\src\a.go`, "c:/repo"))
	assert.True(t, HasPrefix("src/a.go", ""))
	assert.False(t, HasPrefix("src/a.go", "lib"))
}

func TestBase(t *testing.T) {
	assert.Equal(t, "main.go", Base(`C:\repo\Main.go`))
	assert.Equal(t, "main.go", Base("main.go"))
}

func TestSegments(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c.go"}, Segments("/a//b/c.go"))
}
