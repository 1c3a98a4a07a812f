// Package explanation parses the raw structured text of a lesson explanation
// into typed content blocks and estimates how long each block takes to read
// and to narrate.
package explanation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ivlev/lessonplay/internal/narration"
)

// BlockType is the kind of content block.
type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
	BlockBullets   BlockType = "bullets"
	BlockStep      BlockType = "step"
	BlockEquation  BlockType = "equation"
	BlockCode      BlockType = "code"
	BlockNote      BlockType = "note"
)

// Block is one unit of explanation content. Durations are milliseconds.
type Block struct {
	Type        BlockType `yaml:"type" json:"type"`
	Content     string    `yaml:"content" json:"content"`
	Items       []string  `yaml:"items,omitempty" json:"items,omitempty"`
	Level       int       `yaml:"level,omitempty" json:"level,omitempty"`
	Number      int       `yaml:"number,omitempty" json:"number,omitempty"`
	ReadingMs   float64   `yaml:"readingMs" json:"readingMs"`
	NarrationMs float64   `yaml:"narrationMs" json:"narrationMs"`
}

// Text returns the spoken form of the block: the content plus any list items.
func (b Block) Text() string {
	if len(b.Items) == 0 {
		return b.Content
	}
	parts := make([]string, 0, len(b.Items)+1)
	if b.Content != "" {
		parts = append(parts, b.Content)
	}
	parts = append(parts, b.Items...)
	return strings.Join(parts, " ")
}

// Duration is the time the block occupies on a timeline: the longer of
// reading and narration.
func (b Block) Duration() float64 {
	if b.NarrationMs > b.ReadingMs {
		return b.NarrationMs
	}
	return b.ReadingMs
}

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	stepRe    = regexp.MustCompile(`^(?i:step\s+)?(\d+)[.):]\s+(.*)$`)
	bulletRe  = regexp.MustCompile(`^[-*•]\s+(.*)$`)
	noteRe    = regexp.MustCompile(`^(?:>\s*|(?i:note|tip|remember):\s*)(.*)$`)
)

// Parse splits raw explanation text into blocks with duration estimates.
// Blank lines end paragraphs and lists; fenced code and $$ equations may span
// several lines.
func Parse(text string) []Block {
	p := &parser{}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		switch {
		case line == "":
			p.flush()

		case strings.HasPrefix(line, "```"):
			p.flush()
			var body []string
			for i++; i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "```"); i++ {
				body = append(body, lines[i])
			}
			p.emit(Block{Type: BlockCode, Content: strings.Join(body, "\n")})

		case strings.HasPrefix(line, "$$"):
			p.flush()
			body := strings.TrimPrefix(line, "$$")
			if strings.HasSuffix(body, "$$") {
				body = strings.TrimSuffix(body, "$$")
			} else {
				var parts []string
				if body != "" {
					parts = append(parts, body)
				}
				for i++; i < len(lines); i++ {
					l := strings.TrimSpace(lines[i])
					if strings.HasSuffix(l, "$$") {
						if l = strings.TrimSuffix(l, "$$"); l != "" {
							parts = append(parts, l)
						}
						break
					}
					parts = append(parts, l)
				}
				body = strings.Join(parts, " ")
			}
			p.emit(Block{Type: BlockEquation, Content: strings.TrimSpace(body)})

		case strings.HasPrefix(line, "$") && strings.HasSuffix(line, "$") && len(line) > 1:
			p.flush()
			p.emit(Block{Type: BlockEquation, Content: strings.TrimSpace(strings.Trim(line, "$"))})

		case headingRe.MatchString(line):
			p.flush()
			m := headingRe.FindStringSubmatch(line)
			p.emit(Block{Type: BlockHeading, Content: strings.TrimSpace(m[2]), Level: len(m[1])})

		case stepRe.MatchString(line):
			p.flush()
			m := stepRe.FindStringSubmatch(line)
			number, _ := strconv.Atoi(m[1])
			p.emit(Block{Type: BlockStep, Content: strings.TrimSpace(m[2]), Number: number})

		case bulletRe.MatchString(line):
			if p.current == nil || p.current.Type != BlockBullets {
				p.flush()
				p.current = &Block{Type: BlockBullets}
			}
			p.current.Items = append(p.current.Items, strings.TrimSpace(bulletRe.FindStringSubmatch(line)[1]))

		case noteRe.MatchString(line):
			content := strings.TrimSpace(noteRe.FindStringSubmatch(line)[1])
			if p.current != nil && p.current.Type == BlockNote {
				p.current.Content = strings.TrimSpace(p.current.Content + " " + content)
				continue
			}
			p.flush()
			p.current = &Block{Type: BlockNote, Content: content}

		default:
			if p.current != nil && p.current.Type == BlockParagraph {
				p.current.Content += " " + line
				continue
			}
			p.flush()
			p.current = &Block{Type: BlockParagraph, Content: line}
		}
	}
	p.flush()
	return p.blocks
}

type parser struct {
	blocks  []Block
	current *Block
}

func (p *parser) flush() {
	if p.current != nil {
		p.emit(*p.current)
		p.current = nil
	}
}

func (p *parser) emit(b Block) {
	if strings.TrimSpace(b.Content) == "" && len(b.Items) == 0 {
		return
	}
	p.blocks = append(p.blocks, Annotate(b))
}

// Annotate fills ReadingMs and NarrationMs for a block.
func Annotate(b Block) Block {
	b.ReadingMs = EstimateReadingDuration(b)
	b.NarrationMs = EstimateNarrationDuration(b)
	return b
}

// Timing rules per block type.
const (
	ReadingWordsPerMinute = 200.0

	minHeadingMs  = 1500.0
	minBlockMs    = 1000.0
	equationTokMs = 450.0
	codeLineMs    = 1800.0
	listItemMs    = 350.0
)

// pauseAfter is the narration breathing room after each block type.
var pauseAfter = map[BlockType]float64{
	BlockHeading:   600,
	BlockParagraph: 400,
	BlockBullets:   500,
	BlockStep:      700,
	BlockEquation:  900,
	BlockCode:      900,
	BlockNote:      400,
}

// EstimateReadingDuration returns how long a reader needs for the block, in ms.
func EstimateReadingDuration(b Block) float64 {
	words := float64(len(strings.Fields(b.Text())))
	ms := words / ReadingWordsPerMinute * 60000

	switch b.Type {
	case BlockHeading:
		return max(ms, minHeadingMs)
	case BlockEquation:
		ms = float64(len(equationTokens(b.Content))) * equationTokMs
	case BlockCode:
		ms = float64(nonBlankLines(b.Content)) * codeLineMs
	case BlockBullets:
		ms += float64(len(b.Items)) * listItemMs
	}
	return max(ms, minBlockMs)
}

// EstimateNarrationDuration returns how long narrating the block takes, in ms.
// Equations and code are narrated at the pace of their reading estimate.
func EstimateNarrationDuration(b Block) float64 {
	var ms float64
	switch b.Type {
	case BlockEquation, BlockCode:
		ms = EstimateReadingDuration(b)
	default:
		ms = narration.EstimateSpeechDuration(b.Text()) * 1000
	}
	return ms + pauseAfter[b.Type]
}

// TotalDuration sums Block.Duration over blocks.
func TotalDuration(blocks []Block) float64 {
	total := 0.0
	for _, b := range blocks {
		total += b.Duration()
	}
	return total
}

var equationTokenRe = regexp.MustCompile(`\\[a-zA-Z]+|[a-zA-Z]+|\d+(?:\.\d+)?|[^\s\w]`)

func equationTokens(expr string) []string {
	return equationTokenRe.FindAllString(expr, -1)
}

func nonBlankLines(s string) int {
	n := 0
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			n++
		}
	}
	return n
}
