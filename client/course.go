package client

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// courseInfo holds the few fields read from a course page after it has passed
// verification.
type courseInfo struct {
	label       string
	description string
	sections    int
}

// inspectCourse scans a course XML document for its label, description and number of
// sections. The tokenizer is lenient, so a malformed document yields whatever was read
// before the error.
func inspectCourse(body []byte) courseInfo {
	var info courseInfo
	var capture *string

	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return info
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "label":
				if info.label == "" {
					capture = &info.label
				}
			case "description":
				if info.description == "" {
					capture = &info.description
				}
			case "section":
				info.sections++
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "section" {
				info.sections++
			}
		case html.TextToken:
			if capture != nil {
				*capture += string(z.Text())
			}
		case html.EndTagToken:
			if capture != nil {
				*capture = strings.TrimSpace(*capture)
				capture = nil
			}
		}
	}
}
