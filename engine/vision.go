package engine

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/moneylens/moneylens/core"
)

// visionTurn builds the user-role turn that hands a matched document back
// to the model. Images go in as an image block the model can look at
// directly; anything else (PDFs, spreadsheets) goes in as a text
// instruction carrying the URL. Pure function of the target.
func visionTurn(target core.VisionTarget) anthropic.MessageParam {
	if strings.HasPrefix(target.FileType, "image/") {
		return anthropic.NewUserMessage(
			anthropic.NewTextBlock("Here is the document the user asked about. Read it and use its contents to answer the question."),
			anthropic.ContentBlockParamUnion{
				OfImage: &anthropic.ImageBlockParam{
					Source: anthropic.ImageBlockParamSourceUnion{
						OfURL: &anthropic.URLImageSourceParam{URL: target.URL},
					},
				},
			},
		)
	}
	return anthropic.NewUserMessage(
		anthropic.NewTextBlock(fmt.Sprintf("The document the user asked about is available at %s. Fetch and read it, then use its contents to answer the question.", target.URL)),
	)
}

// firstVisionTarget picks the target for the single allowed vision turn:
// the first result in call order that carries one. Results past the first
// match are ignored.
func firstVisionTarget(results []core.ToolResult) *core.VisionTarget {
	for _, res := range results {
		if res.Vision != nil {
			return res.Vision
		}
	}
	return nil
}
