package ocr

import (
	"strings"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
)

// ExtractionResult is the canonical OCR output shape. Both the synchronous
// image path and the asynchronous PDF path produce this exact structure, so
// downstream consumers never need to care where a document came from.
type ExtractionResult struct {
	// FullText is the recognized text of all pages in order, joined by
	// newlines across pages.
	FullText string `json:"full_text"`

	// StructuredData holds the page hierarchy in recognition order.
	StructuredData []Page `json:"structured_data"`

	// Error is set when extraction failed or partially failed; empty otherwise.
	Error string `json:"error,omitempty"`
}

// Page is one source page with its pixel dimensions.
type Page struct {
	Width  int32   `json:"width"`
	Height int32   `json:"height"`
	Blocks []Block `json:"blocks"`
}

// Block is one layout block of a page.
type Block struct {
	Text       string      `json:"text"`
	Confidence float32     `json:"confidence"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Paragraph is one paragraph of a block.
type Paragraph struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
	Words      []Word  `json:"words"`
}

// Word is one recognized word with its confidence and corner coordinates.
type Word struct {
	Text        string   `json:"text"`
	Confidence  float32  `json:"confidence"`
	BoundingBox []Vertex `json:"bounding_box"`
}

// Vertex is one corner of a word's bounding polygon.
type Vertex struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// pagesFromAnnotation flattens a Vision full-text annotation into the
// canonical page hierarchy. This is the single builder shared by the
// synchronous and asynchronous paths.
func pagesFromAnnotation(annotation *visionpb.TextAnnotation) []Page {
	if annotation == nil {
		return nil
	}

	pages := make([]Page, 0, len(annotation.Pages))
	for _, page := range annotation.Pages {
		blocks := make([]Block, 0, len(page.Blocks))
		for _, block := range page.Blocks {
			paragraphs := make([]Paragraph, 0, len(block.Paragraphs))
			var blockText strings.Builder
			for _, paragraph := range block.Paragraphs {
				words := make([]Word, 0, len(paragraph.Words))
				var paragraphText strings.Builder
				for _, word := range paragraph.Words {
					var wordText strings.Builder
					for _, symbol := range word.Symbols {
						wordText.WriteString(symbol.Text)
					}
					words = append(words, Word{
						Text:        wordText.String(),
						Confidence:  word.Confidence,
						BoundingBox: verticesFromPoly(word.BoundingBox),
					})
					paragraphText.WriteString(wordText.String())
				}
				paragraphs = append(paragraphs, Paragraph{
					Text:       paragraphText.String(),
					Confidence: paragraph.Confidence,
					Words:      words,
				})
				blockText.WriteString(paragraphText.String())
			}
			blocks = append(blocks, Block{
				Text:       blockText.String(),
				Confidence: block.Confidence,
				Paragraphs: paragraphs,
			})
		}
		pages = append(pages, Page{
			Width:  page.Width,
			Height: page.Height,
			Blocks: blocks,
		})
	}
	return pages
}

func verticesFromPoly(poly *visionpb.BoundingPoly) []Vertex {
	if poly == nil {
		return nil
	}
	vertices := make([]Vertex, 0, len(poly.Vertices))
	for _, v := range poly.Vertices {
		vertices = append(vertices, Vertex{X: v.X, Y: v.Y})
	}
	return vertices
}

// TextFromStructuredData re-derives the full text from the page hierarchy.
// FullText must always agree with this up to whitespace normalization.
func TextFromStructuredData(pages []Page) string {
	var sb strings.Builder
	for _, page := range pages {
		for _, block := range page.Blocks {
			for _, paragraph := range block.Paragraphs {
				for _, word := range paragraph.Words {
					sb.WriteString(word.Text)
				}
			}
		}
	}
	return sb.String()
}
