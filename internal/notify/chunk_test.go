package notify

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunksShortText(t *testing.T) {
	assert.Equal(t, []string{"halo"}, SplitChunks("halo", 10))
	assert.Equal(t, []string{""}, SplitChunks("", 10))
}

func TestSplitChunksBreaksOnLines(t *testing.T) {
	text := "aaaa\nbbbb\ncccc"
	chunks := SplitChunks(text, 9)
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, chunks)
	assert.Equal(t, text, strings.Join(chunks, "\n"))
}

func TestSplitChunksPreservesEmptyLines(t *testing.T) {
	text := "aaaa\n\n\nbbbb\n"
	chunks := SplitChunks(text, 5)
	assert.Equal(t, text, strings.Join(chunks, "\n"))
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 5)
	}
}

func TestSplitChunksProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abcé🙂 <b>")
	for i := 0; i < 200; i++ {
		limit := 20 + rng.Intn(80)
		lines := make([]string, rng.Intn(40))
		for j := range lines {
			n := rng.Intn(limit + 1)
			runes := make([]rune, n)
			for k := range runes {
				runes[k] = alphabet[rng.Intn(len(alphabet))]
			}
			lines[j] = string(runes)
		}
		text := strings.Join(lines, "\n")
		chunks := SplitChunks(text, limit)
		require.Equal(t, text, strings.Join(chunks, "\n"))
		for _, chunk := range chunks {
			require.LessOrEqual(t, utf8.RuneCountInString(chunk), limit)
		}
		if utf8.RuneCountInString(text) > limit {
			require.Greater(t, len(chunks), 1)
		}
	}
}

func TestSplitChunksHardSplitsLongLine(t *testing.T) {
	chunks := SplitChunks("ab\n"+strings.Repeat("x", 25)+"\ncd", 10)
	assert.Equal(t, []string{"ab", "xxxxxxxxxx", "xxxxxxxxxx", "xxxxx", "cd"}, chunks)
}

func TestSplitChunksKeepsEntitiesWhole(t *testing.T) {
	line := strings.Repeat("&#34;", 10)
	chunks := SplitChunks(line, 12)

	assert.Equal(t, line, strings.Join(chunks, ""))
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 12)
		assert.True(t, strings.HasSuffix(chunk, ";"), chunk)
	}
}

func TestSplitChunksKeepsTagsWhole(t *testing.T) {
	chunks := SplitChunks("abcdef<b>x</b>", 8)

	assert.Equal(t, []string{"abcdef", "<b>x</b>"}, chunks)
}
