package ocr

import (
	"context"
	"sort"
	"strings"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/protobuf/encoding/protojson"
)

// ReadAsyncResults lists every result object the provider wrote under the
// destination prefix and reassembles them into the canonical extraction
// shape.
//
// Result objects are independently written JSON documents, each covering one
// or more source pages, with no ordering guarantee beyond the lexical order
// of their storage keys. Objects are therefore sorted by key before
// concatenation so the same job always reproduces the same FullText. A
// malformed object is logged and skipped; only an entirely empty parse set
// is treated as extraction failure.
func (g *GoogleVisionService) ReadAsyncResults(ctx context.Context, destinationPrefix string) (*ExtractionResult, error) {
	const op = "ReadAsyncResults"

	objects, err := g.blobs.List(ctx, destinationPrefix)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to list result objects")
	}

	names := make([]string, 0, len(objects))
	for _, obj := range objects {
		// Prefix placeholder objects carry no annotation payload.
		if strings.HasSuffix(obj.Name, "/") {
			continue
		}
		names = append(names, obj.Name)
	}
	sort.Strings(names)

	result := &ExtractionResult{}
	var fileTexts []string
	parsed := 0

	unmarshal := protojson.UnmarshalOptions{DiscardUnknown: true}

	for _, name := range names {
		data, err := g.blobs.Download(ctx, name)
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to download result object "+name)
		}

		var fileResp visionpb.AnnotateFileResponse
		if err := unmarshal.Unmarshal(data, &fileResp); err != nil {
			g.log.Warn().
				Err(err).
				Str("object", name).
				Msg("Skipping malformed OCR result object")
			continue
		}

		var pageTexts []string
		for _, pageResp := range fileResp.Responses {
			if pageResp.GetError() != nil {
				g.log.Warn().
					Str("object", name).
					Str("error", pageResp.GetError().GetMessage()).
					Msg("OCR result object reports a page error")
				continue
			}
			annotation := pageResp.GetFullTextAnnotation()
			if annotation == nil {
				continue
			}
			pageTexts = append(pageTexts, strings.TrimRight(annotation.Text, "\n"))
			result.StructuredData = append(result.StructuredData, pagesFromAnnotation(annotation)...)
		}

		fileTexts = append(fileTexts, strings.Join(pageTexts, "\n"))
		parsed++
	}

	if parsed == 0 {
		result.Error = NoResultFilesMessage
		return result, nil
	}

	result.FullText = strings.Join(fileTexts, "\n")

	g.log.Info().
		Int("result_objects", parsed).
		Int("skipped", len(names)-parsed).
		Int("pages", len(result.StructuredData)).
		Int("text_length", len(result.FullText)).
		Msg("Reassembled async OCR results")

	return result, nil
}
