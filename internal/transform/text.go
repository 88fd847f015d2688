// Package transform holds the meme text and image filters behind the transform commands.
package transform

import (
	"math/rand/v2"
	"strings"
	"unicode"
)

// Clap puts a clap emoji between words.
func Clap(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	return strings.Join(words, " 👏 ") + " 👏"
}

var zalgoMarks = []rune{
	'̀', '́', '̂', '̃', '̄', '̅', '̆', '̇',
	'̈', '̊', '̋', '̌', '̍', '̎', '̏', '̐',
	'̑', '̒', '̓', '̔', '̕', '̚', '̛', '̽',
	'̖', '̗', '̘', '̙', '̜', '̝', '̞', '̟',
	'̠', '̤', '̥', '̦', '̩', '̪', '̫', '̬',
	'̴', '̵', '̶', '̷', '̸', '͡', '͢', '҉',
}

// Zalgo stacks random combining marks on every visible character.
func Zalgo(text string, rng *rand.Rand) string {
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if unicode.IsSpace(r) {
			continue
		}
		for n := 1 + rng.IntN(6); n > 0; n-- {
			b.WriteRune(zalgoMarks[rng.IntN(len(zalgoMarks))])
		}
	}
	return b.String()
}

// Forbesify rewrites text as a business magazine headline.
func Forbesify(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return "Why " + strings.Join(words, " ") + " Is The Future Of Work (And What It Means For Your Business)"
}

func titleWord(w string) string {
	runes := []rune(strings.ToLower(w))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

var pastaEmoji = []string{"😂", "💯", "🔥", "👌", "😤", "🙏", "😳", "👀", "💦", "🤔", "😎", "✨"}

// Copypasta sprinkles emoji after words.
func Copypasta(text string, rng *rand.Rand) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
		for n := rng.IntN(3); n > 0; n-- {
			b.WriteString(pastaEmoji[rng.IntN(len(pastaEmoji))])
		}
	}
	b.WriteString(" 💯")
	return b.String()
}

var owoFaces = []string{"owo", "UwU", ">w<", "^w^", "(・`ω´・)", "OwO"}

var owoReplacer = strings.NewReplacer(
	"r", "w", "l", "w", "R", "W", "L", "W",
	"na", "nya", "ne", "nye", "ni", "nyi", "no", "nyo", "nu", "nyu",
	"Na", "Nya", "Ne", "Nye", "Ni", "Nyi", "No", "Nyo", "Nu", "Nyu",
	"ove", "uv",
)

// Owo swaps r and l for w, nyas the n-vowels and adds a face.
func Owo(text string, rng *rand.Rand) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return owoReplacer.Replace(text) + " " + owoFaces[rng.IntN(len(owoFaces))]
}

// Stretch repeats every vowel a few times.
func Stretch(text string, rng *rand.Rand) string {
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if strings.ContainsRune("aeiouyAEIOUY", r) {
			for n := 1 + rng.IntN(4); n > 0; n-- {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// Mock alternates letter case, starting lower. Non-letters do not advance the pattern.
func Mock(text string) string {
	var b strings.Builder
	upper := false
	for _, r := range text {
		if !unicode.IsLetter(r) {
			b.WriteRune(r)
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
		upper = !upper
	}
	return b.String()
}
