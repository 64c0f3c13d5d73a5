// Package message turns chat messages into utterances for speech synthesis.
//
// Markdown is reduced to plain text. Code blocks and links are replaced with
// the cache target tokens so their audio is shared across messages.
package message

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"

	"github.com/dgnsrekt/seitai/internal/cache"
)

// DefaultMaxLength is the maximum utterance length in runes.
const DefaultMaxLength = 200

// mentionPattern matches user, role and channel mentions such as <@123>,
// <@!123>, <@&123> and <#123>.
var mentionPattern = regexp.MustCompile(`<(@[!&]?|#)(\d+)>`)

// Segmenter splits messages into utterances.
type Segmenter struct {
	md        goldmark.Markdown
	maxLength int
	names     map[string]string
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithMaxLength truncates utterances longer than n runes. Zero disables
// truncation.
func WithMaxLength(n int) Option {
	return func(s *Segmenter) {
		if n >= 0 {
			s.maxLength = n
		}
	}
}

// WithNames resolves mention ids to display names. Mentions of unknown ids
// are dropped.
func WithNames(names map[string]string) Option {
	return func(s *Segmenter) {
		s.names = names
	}
}

// NewSegmenter creates a segmenter.
func NewSegmenter(opts ...Option) *Segmenter {
	s := &Segmenter{
		md:        goldmark.New(goldmark.WithExtensions(extension.Linkify)),
		maxLength: DefaultMaxLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Segment returns the utterances of a message in order. Each code block
// becomes cache.TargetCode and each bare or autolinked URL becomes
// cache.TargetURL; the text between them is merged into single utterances.
func (s *Segmenter) Segment(message string) []string {
	message = norm.NFKC.String(message)
	message = s.redactMentions(message)

	source := []byte(message)
	doc := s.md.Parser().Parse(text.NewReader(source))

	w := &segmentWriter{maxLength: s.maxLength}
	w.walk(doc, source)
	w.flush()

	return w.segments
}

func (s *Segmenter) redactMentions(message string) string {
	return mentionPattern.ReplaceAllStringFunc(message, func(m string) string {
		id := mentionPattern.FindStringSubmatch(m)[2]
		if name, ok := s.names[id]; ok {
			return "@" + name
		}
		return ""
	})
}

// segmentWriter accumulates text until a token forces a break.
type segmentWriter struct {
	buf       strings.Builder
	segments  []string
	maxLength int
}

func (w *segmentWriter) token(t cache.Target) {
	w.flush()
	w.segments = append(w.segments, t.String())
}

func (w *segmentWriter) space() {
	w.buf.WriteByte(' ')
}

func (w *segmentWriter) flush() {
	utterance := strings.Join(strings.Fields(w.buf.String()), " ")
	w.buf.Reset()
	if utterance == "" {
		return
	}

	if w.maxLength > 0 {
		if r := []rune(utterance); len(r) > w.maxLength {
			utterance = strings.TrimSpace(string(r[:w.maxLength]))
		}
	}
	w.segments = append(w.segments, utterance)
}

func (w *segmentWriter) walk(node ast.Node, source []byte) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock:
		w.token(cache.TargetCode)
		return

	case *ast.AutoLink:
		if n.AutoLinkType == ast.AutoLinkURL {
			w.token(cache.TargetURL)
		} else {
			w.buf.Write(n.Label(source))
		}
		return

	case *ast.HTMLBlock, *ast.RawHTML:
		return

	case *ast.Text:
		w.buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			w.space()
		}
		return

	case *ast.String:
		w.buf.Write(n.Value)
		return

	case *ast.Image:
		// Alt text only.
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.walk(c, source)
		}
		return
	}

	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		w.walk(c, source)
	}

	if node.Type() == ast.TypeBlock {
		w.space()
	}
}
