package segmentation

import (
	"strings"
	"unicode"
)

const (
	// MaxWords is the maximum number of words in a sub-sentence segment.
	MaxWords = 10
	// MinWords is the minimum number of words a trailing fragment needs to
	// stand on its own.
	MinWords = 4
	// Window is how many tokens the splitter looks back for a clause boundary.
	Window = 3
)

// Segment is a bounded speakable fragment of a script.
type Segment struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Split splits script into speakable segments using the default options and
// groups them into sentence buckets.
//
// Split is deterministic and total: an empty script yields empty outputs.
func Split(script string) ([]Segment, [][]int) {
	return DefaultOptions().Split(script)
}

// Split splits script using the receiver options.
func (o Options) Split(script string) ([]Segment, [][]int) {
	o = o.withDefaults()

	var texts []string
	for _, sentence := range Sentences(script) {
		if o.SentenceMode || WordCount(sentence) <= o.MaxWords {
			texts = append(texts, normalizeTerminal(sentence))
			continue
		}
		texts = append(texts, o.chunk(sentence)...)
	}

	segments := make([]Segment, 0, len(texts))
	for i, text := range texts {
		segments = append(segments, Segment{Index: i, Text: text})
	}

	return segments, Buckets(segments)
}

// Buckets groups segment indices by the source sentence they belong to.
//
// A bucket is closed whenever a segment ends in a sentence-terminal mark. Any
// trailing partial bucket is flushed at the end.
func Buckets(segments []Segment) [][]int {
	buckets := [][]int{}
	current := []int{}
	for _, segment := range segments {
		current = append(current, segment.Index)
		if endsWithTerminal(segment.Text) {
			buckets = append(buckets, current)
			current = []int{}
		}
	}
	if len(current) > 0 {
		buckets = append(buckets, current)
	}
	return buckets
}

// Sentences splits text on whitespace that follows a sentence-terminal mark.
// A mark directly preceded by a digit ("3." or "2.5") does not end a sentence.
func Sentences(text string) []string {
	runes := []rune(text)
	sentences := []string{}
	start := 0

	flush := func(end int) {
		if sentence := strings.TrimSpace(string(runes[start:end])); sentence != "" {
			sentences = append(sentences, sentence)
		}
	}

	for i := 0; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) || i == 0 || !isTerminal(runes[i-1]) {
			continue
		}

		markStart := i - 1
		for markStart > 0 && isTerminal(runes[markStart-1]) {
			markStart--
		}
		if markStart > 0 && unicode.IsDigit(runes[markStart-1]) {
			continue
		}

		flush(i)
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		start = i
		i--
	}
	flush(len(runes))

	return sentences
}

// WordCount returns the number of whitespace separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func (o Options) chunk(sentence string) []string {
	words := strings.Fields(sentence)
	chunks := [][]string{}

	for i := 0; i < len(words); {
		j := min(i+o.MaxWords, len(words))
		if j < len(words) {
			for k := j; k > i && j-k <= o.Window; k-- {
				if k-i >= o.MinWords && o.isClauseBoundary(words, k) {
					j = k
					break
				}
			}
		}

		chunks = append(chunks, words[i:j])
		i = j
	}

	if n := len(chunks); n > 1 && len(chunks[n-1]) < o.MinWords {
		chunks = o.mergeTail(chunks)
	}

	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, normalizeTerminal(strings.Join(chunk, " ")))
	}
	return texts
}

// mergeTail folds a short trailing fragment into the previous chunk, dropping
// the previous chunk's terminal punctuation. When the combined chunk would
// exceed MaxWords the words are rebalanced so the tail keeps MinWords instead.
func (o Options) mergeTail(chunks [][]string) [][]string {
	n := len(chunks)
	previous := append([]string(nil), chunks[n-2]...)
	if last := trimTerminal(previous[len(previous)-1]); last != "" {
		previous[len(previous)-1] = last
	}

	combined := append(previous, chunks[n-1]...)
	if len(combined) <= o.MaxWords {
		return append(chunks[:n-2], combined)
	}

	cut := len(combined) - o.MinWords
	return append(chunks[:n-2], combined[:cut], combined[cut:])
}

// isClauseBoundary reports whether cutting before words[k] avoids breaking a
// clause: the previous token closes one with a comma or semicolon, or words[k]
// is a coordinating conjunction.
func (o Options) isClauseBoundary(words []string, k int) bool {
	if k <= 0 || k >= len(words) {
		return false
	}

	if previous := words[k-1]; strings.HasSuffix(previous, ",") || strings.HasSuffix(previous, ";") {
		return true
	}

	_, ok := o.conjunctions[strings.ToLower(words[k])]
	return ok
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func endsWithTerminal(text string) bool {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	if text == "" {
		return false
	}
	return isTerminal(rune(text[len(text)-1]))
}

func trimTerminal(text string) string {
	return strings.TrimRightFunc(text, isTerminal)
}

// normalizeTerminal collapses any trailing run of terminal marks into a single
// period. Text without a terminal mark is returned unchanged.
func normalizeTerminal(text string) string {
	text = strings.TrimSpace(text)
	if !endsWithTerminal(text) {
		return text
	}
	return trimTerminal(text) + "."
}
