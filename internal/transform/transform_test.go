package transform

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRand() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }

func TestClap(t *testing.T) {
	assert.Equal(t, "make 👏 it 👏 stop 👏", Clap("  make it\nstop "))
	assert.Equal(t, "", Clap("   "))
}

func TestMock(t *testing.T) {
	assert.Equal(t, "hElLo, WoRlD", Mock("Hello, world"))
}

func TestForbesify(t *testing.T) {
	got := Forbesify("cats eat LASAGNA")
	assert.True(t, strings.HasPrefix(got, "Why Cats Eat Lasagna Is"))
	assert.Equal(t, "", Forbesify(""))
}

func TestOwo(t *testing.T) {
	got := Owo("really lovely", testRand())
	assert.True(t, strings.HasPrefix(got, "weawwy wuvwy "), got)
}

func TestStretch_KeepsConsonants(t *testing.T) {
	got := Stretch("hey", testRand())
	assert.True(t, strings.HasPrefix(got, "hee"))
	assert.Equal(t, byte('y'), got[len(got)-1])
	assert.Equal(t, 1, strings.Count(got, "h"))
}

func TestZalgo_KeepsBaseText(t *testing.T) {
	got := Zalgo("hi there", testRand())
	var base []rune
	for _, r := range got {
		if r < 0x0300 || r > 0x036f {
			if r != '҉' {
				base = append(base, r)
			}
		}
	}
	assert.Equal(t, "hi there", string(base))
	assert.Greater(t, utf8.RuneCountInString(got), len("hi there"))
}

func TestCopypasta(t *testing.T) {
	got := Copypasta("big mood", testRand())
	assert.True(t, strings.HasPrefix(got, "big"))
	assert.True(t, strings.HasSuffix(got, " 💯"))
}

func TestDeepFry(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: 100, B: uint8(y * 16), A: 255})
		}
	}
	var in bytes.Buffer
	require.NoError(t, png.Encode(&in, img))

	out, err := DeepFry(in.Bytes())
	require.NoError(t, err)

	fried, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), fried.Bounds())
}

func TestDeepFry_RejectsNonImage(t *testing.T) {
	_, err := DeepFry([]byte("definitely not a png"))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestDeepFry_RejectsHugeDimensions(t *testing.T) {
	// a blank image compresses to almost nothing but would decode to gigabytes
	var in bytes.Buffer
	require.NoError(t, png.Encode(&in, image.NewGray(image.Rect(0, 0, 4097, 4096))))
	require.Less(t, in.Len(), MaxImageBytes)

	_, err := DeepFry(in.Bytes())
	assert.ErrorIs(t, err, ErrImageTooLarge)
}
