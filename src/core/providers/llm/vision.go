package llm

import (
	"regexp"
	"strings"
)

// maxImagesPerTurn bounds the image parts sent to the vision model.
const maxImagesPerTurn = 3

var (
	markdownImage = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)\)`)
	dataURIImage  = regexp.MustCompile(`data:image/[a-zA-Z+]+;base64,[A-Za-z0-9+/=]+`)
)

// HasImages reports whether the content embeds image references.
func HasImages(content string) bool {
	return markdownImage.MatchString(content) || dataURIImage.MatchString(content)
}

// SplitImages separates image references from the surrounding text,
// keeping at most maxImagesPerTurn images.
func SplitImages(content string) (text string, images []string) {
	text = content
	for _, m := range markdownImage.FindAllStringSubmatch(content, -1) {
		if len(images) < maxImagesPerTurn {
			images = append(images, m[1])
		}
		text = strings.Replace(text, m[0], "", 1)
	}
	for _, uri := range dataURIImage.FindAllString(text, -1) {
		if len(images) < maxImagesPerTurn {
			images = append(images, uri)
		}
		text = strings.Replace(text, uri, "", 1)
	}
	return strings.TrimSpace(text), images
}

// ToVisionMessage restructures a user turn with images into the
// providers' multi-part shape: one text segment plus image segments.
func ToVisionMessage(m Message) Message {
	text, images := SplitImages(m.Content)
	if len(images) == 0 {
		return m
	}
	parts := make([]ContentPart, 0, len(images)+1)
	if text != "" {
		parts = append(parts, TextPart(text))
	}
	for _, img := range images {
		parts = append(parts, ImagePart(img))
	}
	return Message{Role: m.Role, Parts: parts}
}
