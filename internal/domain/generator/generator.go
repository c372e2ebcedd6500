// Package generator produces reproducible practice-question sets from a
// seed. The same seed always yields byte-identical output, so a lesson can
// be replayed or resumed after a reload without storing the questions
// themselves. The stream is built on BLAKE2b so two different seeds diverge
// immediately.
package generator

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Stream is a deterministic byte stream derived from a seed string.
// Not safe for concurrent use; create one per lesson.
type Stream struct {
	seed    [blake2b.Size256]byte
	counter uint64
	buf     []byte
}

// NewStream creates a stream for the given seed.
func NewStream(seed string) *Stream {
	return &Stream{seed: blake2b.Sum256([]byte(seed))}
}

// next64 returns the next 8 pseudo-random bytes as a uint64.
func (st *Stream) next64() uint64 {
	if len(st.buf) < 8 {
		var block [8 + blake2b.Size256]byte
		binary.BigEndian.PutUint64(block[:8], st.counter)
		copy(block[8:], st.seed[:])
		sum := blake2b.Sum512(block[:])
		st.buf = append(st.buf, sum[:]...)
		st.counter++
	}
	v := binary.BigEndian.Uint64(st.buf[:8])
	st.buf = st.buf[8:]
	return v
}

// Intn returns a deterministic value in [0, n). Panics if n <= 0.
func (st *Stream) Intn(n int) int {
	if n <= 0 {
		panic("generator: Intn called with non-positive n")
	}
	return int(st.next64() % uint64(n))
}

// Shuffle deterministically permutes n elements via the swap function.
func (st *Stream) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := st.Intn(i + 1)
		swap(i, j)
	}
}

// Question is one generated practice question.
type Question struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
}

// TimesTable generates count multiplication questions for the given table,
// in a seed-determined order. Multiplicands cycle 1..12 before repeating, so
// short sets never repeat a question.
func TimesTable(seed string, table, count int) []Question {
	if table < 1 || count < 1 {
		return nil
	}

	st := NewStream(fmt.Sprintf("%s|table:%d", seed, table))

	multiplicands := make([]int, 12)
	for i := range multiplicands {
		multiplicands[i] = i + 1
	}
	st.Shuffle(len(multiplicands), func(i, j int) {
		multiplicands[i], multiplicands[j] = multiplicands[j], multiplicands[i]
	})

	questions := make([]Question, 0, count)
	for i := 0; i < count; i++ {
		m := multiplicands[i%len(multiplicands)]
		questions = append(questions, Question{
			Prompt: fmt.Sprintf("%d × %d", m, table),
			Answer: fmt.Sprintf("%d", m*table),
		})
	}
	return questions
}

// Scramble returns a deterministic letter scramble of word. For words with
// at least two distinct letters the result always differs from the input.
func Scramble(seed, word string) string {
	runes := []rune(word)
	if len(runes) < 2 {
		return word
	}

	st := NewStream(seed + "|scramble:" + word)

	// Re-shuffle until the order changes; bounded because a different
	// arrangement exists whenever two letters differ.
	for attempt := 0; attempt < 16; attempt++ {
		st.Shuffle(len(runes), func(i, j int) {
			runes[i], runes[j] = runes[j], runes[i]
		})
		if string(runes) != word {
			return string(runes)
		}
	}
	return string(runes)
}

// SpellingSet generates scramble questions for the given words, in a
// seed-determined order.
func SpellingSet(seed string, words []string) []Question {
	if len(words) == 0 {
		return nil
	}

	order := make([]string, len(words))
	copy(order, words)

	st := NewStream(seed + "|spelling")
	st.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	questions := make([]Question, 0, len(order))
	for _, w := range order {
		questions = append(questions, Question{
			Prompt: Scramble(seed, w),
			Answer: w,
		})
	}
	return questions
}
