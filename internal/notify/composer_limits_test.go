package notify

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osis_bot/internal/admission"
)

var danglingEntity = regexp.MustCompile(`&[#a-zA-Z0-9]*$`)

func randomMarkup(rng *rand.Rand, n int) string {
	alphabet := []rune(`"&<>'"&ab é🙂`)
	runes := make([]rune, n)
	for i := range runes {
		runes[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(runes)
}

func requireWithinCeilings(t *testing.T, text string) {
	t.Helper()
	for _, l := range strings.Split(text, "\n") {
		require.LessOrEqual(t, utf8.RuneCountInString(l), CaptionLimit, l)
	}
	for _, limit := range []int{CaptionLimit, MessageLimit} {
		chunks := SplitChunks(text, limit)
		require.Equal(t, text, strings.Join(chunks, "\n"), "limit %d", limit)
		for i, chunk := range chunks {
			require.LessOrEqual(t, utf8.RuneCountInString(chunk), limit, "limit %d chunk %d", limit, i)
			require.False(t, danglingEntity.MatchString(chunk), "limit %d chunk %d ends inside an entity", limit, i)
		}
	}
}

func TestComposeQuoteHeavyTextFitsCeilings(t *testing.T) {
	cases := map[string]string{
		"mixed":  strings.Repeat(`a "b" & c `, 99),
		"quotes": strings.Repeat(`"`, 1000),
	}
	for name, motivation := range cases {
		t.Run(name, func(t *testing.T) {
			app := sampleApplication()
			app.Motivation = motivation
			app.Divisions[0].Reason = motivation

			msg := NewComposer(t.TempDir(), nil).Compose(app, HeaderIntake)

			assert.Len(t, msg.Overflow, 2)
			requireWithinCeilings(t, msg.Text)
		})
	}
}

func TestComposeOutputProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 60; i++ {
		app := sampleApplication()
		app.FullName = randomMarkup(rng, rng.Intn(600))
		app.Address = randomMarkup(rng, rng.Intn(900))
		app.Motivation = randomMarkup(rng, 900+rng.Intn(101))
		app.DecisionReason = randomMarkup(rng, rng.Intn(700))
		app.Organizations = []admission.Organization{{Name: randomMarkup(rng, rng.Intn(400)), Position: randomMarkup(rng, rng.Intn(400))}}
		for j := range app.Divisions {
			app.Divisions[j].Reason = randomMarkup(rng, 900+rng.Intn(101))
		}

		msg := NewComposer(t.TempDir(), nil).Compose(app, HeaderIntake)

		requireWithinCeilings(t, msg.Text)
	}
}

func TestComposeEscapedLengthAtThresholdStaysInline(t *testing.T) {
	app := sampleApplication()
	app.Motivation = strings.Repeat("&", FreeTextThreshold/5)

	msg := NewComposer(t.TempDir(), nil).Compose(app, HeaderIntake)

	assert.Empty(t, msg.Overflow)
	assert.Contains(t, msg.Text, strings.Repeat("&amp;", FreeTextThreshold/5))
}

func TestComposeClipsLongInlineFields(t *testing.T) {
	app := sampleApplication()
	app.Address = strings.Repeat(`"`, 400)

	msg := NewComposer(t.TempDir(), nil).Compose(app, HeaderIntake)

	assert.Contains(t, msg.Text, "Alamat: "+strings.Repeat("&#34;", inlineLimit/5)+"…\n")
}
