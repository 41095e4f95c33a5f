package message

import (
	"context"
	"regexp"
	"strings"

	"github.com/onnwee/chatdeck/emotes"
)

// triggerPattern matches colon-delimited trigger tokens like ":smile:".
var triggerPattern = regexp.MustCompile(`:(\w+):`)

// placeholderPattern matches the internal emote placeholder form.
var placeholderPattern = regexp.MustCompile(`\[emote:([^\[\]\s]+)\]`)

// Placeholder returns the stable internal marker embedding an emote id.
func Placeholder(id string) string {
	return "[emote:" + id + "]"
}

// Segment is one run of render-ready message content: either plain text or a
// resolved emote reference. Exactly one of the two fields is set.
type Segment struct {
	Text  string
	Emote *emotes.Emote
}

// Pipeline applies the two symmetric emote transforms: outbound trigger
// parsing and inbound placeholder resolution.
type Pipeline struct {
	catalog *emotes.Catalog
	recent  *emotes.RecencyTracker
}

// NewPipeline returns a pipeline over the given catalog. recent may be nil
// when no recency tracking is wanted.
func NewPipeline(catalog *emotes.Catalog, recent *emotes.RecencyTracker) *Pipeline {
	return &Pipeline{catalog: catalog, recent: recent}
}

// ParseOutgoing scans text left-to-right for trigger tokens, resolves each
// against the in-scope list first and the catalog code index second, and
// replaces resolved occurrences with placeholders. It returns the transformed
// text and the deduplicated list of emotes used. Each resolved emote is also
// pushed into the recency tracker. Unresolved trigger-looking tokens stay
// verbatim: text that happens to contain colons is not an error. Text consumed
// by a substitution is never re-matched.
func (p *Pipeline) ParseOutgoing(ctx context.Context, text string, inScope []emotes.Emote) (string, []emotes.Emote) {
	matches := triggerPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var (
		out  strings.Builder
		used []emotes.Emote
		seen = make(map[string]struct{})
		last int
	)
	for _, m := range matches {
		start, end := m[0], m[1]
		if start < last {
			// Overlaps text already consumed by the previous substitution.
			continue
		}
		token := text[start:end]
		emote, ok := p.resolve(token, inScope)
		if !ok {
			continue
		}
		out.WriteString(text[last:start])
		out.WriteString(Placeholder(emote.ID))
		last = end
		if _, dup := seen[emote.ID]; !dup {
			seen[emote.ID] = struct{}{}
			used = append(used, emote)
		}
		if p.recent != nil {
			p.recent.Add(ctx, emote)
		}
	}
	if len(used) == 0 {
		return text, nil
	}
	out.WriteString(text[last:])
	return out.String(), used
}

func (p *Pipeline) resolve(token string, inScope []emotes.Emote) (emotes.Emote, bool) {
	for _, e := range inScope {
		if strings.EqualFold(e.Code, token) {
			return e, true
		}
	}
	if p.catalog != nil {
		if e, ok := p.catalog.LookupByCode(token); ok {
			return e, true
		}
	}
	return emotes.Emote{}, false
}

// RenderSegments splits a message whose placeholders reference emote ids into
// render-ready segments, resolving ids against the message's own used list
// first and the catalog second. It never fails: unresolvable ids keep their
// placeholder form as plain text, a display concern rather than an error.
func (p *Pipeline) RenderSegments(text string, used []emotes.Emote) []Segment {
	matches := placeholderPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []Segment{{Text: text}}
	}

	byID := make(map[string]emotes.Emote, len(used))
	for _, e := range used {
		byID[e.ID] = e
	}

	var segs []Segment
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		id := text[m[2]:m[3]]
		if start > last {
			segs = append(segs, Segment{Text: text[last:start]})
		}
		if e, ok := p.resolveByID(id, byID); ok {
			segs = append(segs, Segment{Emote: &e})
		} else {
			segs = append(segs, Segment{Text: text[start:end]})
		}
		last = end
	}
	if last < len(text) {
		segs = append(segs, Segment{Text: text[last:]})
	}
	return segs
}

// RenderText flattens a message to plain text, substituting resolved emote
// placeholders with their trigger codes. Intended for text-only surfaces
// (logs, notifications); graphical consumers use RenderSegments.
func (p *Pipeline) RenderText(text string, used []emotes.Emote) string {
	var b strings.Builder
	for _, seg := range p.RenderSegments(text, used) {
		if seg.Emote != nil {
			b.WriteString(seg.Emote.Code)
			continue
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}

func (p *Pipeline) resolveByID(id string, byID map[string]emotes.Emote) (emotes.Emote, bool) {
	if e, ok := byID[id]; ok {
		return e, true
	}
	if p.catalog == nil {
		return emotes.Emote{}, false
	}
	return p.catalog.LookupByID(id)
}
