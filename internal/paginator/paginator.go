package paginator

import (
	"strings"
)

const (
	// DefaultTargetWords is the page size used when the caller passes a
	// non-positive target
	DefaultTargetWords = 80
)

// Paginate splits story body text into an ordered sequence of page texts,
// each holding at most targetWordsPerPage words. Splits prefer sentence
// boundaries: whole sentences are packed greedily, and a sentence is carried
// over mid-sentence only when it alone exceeds the target. Degenerate input
// (empty or whitespace-only) yields a single page equal to the original text,
// never an empty sequence. No words are dropped or duplicated.
func Paginate(bodyText string, targetWordsPerPage int) []string {
	if targetWordsPerPage <= 0 {
		targetWordsPerPage = DefaultTargetWords
	}

	if strings.TrimSpace(bodyText) == "" {
		return []string{bodyText}
	}

	sentences := SplitSentences(bodyText)

	pages := make([]string, 0)
	var buf []string
	bufWords := 0

	flush := func() {
		if len(buf) > 0 {
			pages = append(pages, strings.Join(buf, " "))
			buf = nil
			bufWords = 0
		}
	}

	for _, sentence := range sentences {
		words := strings.Fields(sentence)
		if len(words) == 0 {
			continue
		}

		// A single sentence longer than the target gets chunked by word
		// count; the tail stays open so following sentences can join it.
		if len(words) > targetWordsPerPage {
			flush()
			for len(words) > targetWordsPerPage {
				pages = append(pages, strings.Join(words[:targetWordsPerPage], " "))
				words = words[targetWordsPerPage:]
			}
			buf = append(buf, words...)
			bufWords = len(words)
			continue
		}

		if bufWords > 0 && bufWords+len(words) > targetWordsPerPage {
			flush()
		}
		buf = append(buf, words...)
		bufWords += len(words)
	}

	flush()

	if len(pages) == 0 {
		return []string{bodyText}
	}
	return pages
}

// SplitSentences splits text on sentence terminators, keeping the terminator
// (and any trailing closing quotes or brackets) with its sentence. Text after
// the last terminator becomes a final sentence. Abbreviations are not handled.
func SplitSentences(text string) []string {
	sentences := make([]string, 0)
	var b strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		b.WriteRune(runes[i])
		if !isSentenceTerminator(runes[i]) {
			continue
		}
		// Absorb terminator runs ("?!", "...") and closing punctuation
		for i+1 < len(runes) && (isSentenceTerminator(runes[i+1]) || isClosingPunct(runes[i+1])) {
			i++
			b.WriteRune(runes[i])
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
	}

	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// WordCount returns the number of whitespace-separated words in text
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// isSentenceTerminator covers Latin terminators plus the Arabic question
// mark and full stop that show up in scripture passages
func isSentenceTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '؟', '۔':
		return true
	}
	return false
}

func isClosingPunct(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', '»', ')', ']':
		return true
	}
	return false
}
