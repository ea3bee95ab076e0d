package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// Text concatenates the text blocks of a response.
func Text(resp *Response) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ParseJSON extracts the first JSON object from raw output into out.
func ParseJSON(raw string, out any) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return errors.New("empty output")
	}

	if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
		if strings.HasPrefix(s, "json") {
			s = strings.TrimSpace(strings.TrimPrefix(s, "json"))
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = strings.TrimSpace(s[:idx])
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < 0 || start >= end {
		return errors.New("missing JSON object")
	}

	return json.Unmarshal([]byte(s[start:end+1]), out)
}

// ExtractFenced returns the contents of the first code fence tagged with
// lang, or the first untagged fence when lang is absent.
func ExtractFenced(raw string, lang string) (string, bool) {
	s := raw
	for {
		start := strings.Index(s, "```")
		if start < 0 {
			return "", false
		}
		rest := s[start+3:]
		nl := strings.Index(rest, "\n")
		if nl < 0 {
			return "", false
		}
		tag := strings.ToLower(strings.TrimSpace(rest[:nl]))
		body := rest[nl+1:]
		end := strings.Index(body, "```")
		if end < 0 {
			return "", false
		}
		if lang == "" || tag == strings.ToLower(lang) || tag == "" {
			content := strings.TrimSpace(body[:end])
			if content != "" {
				return content, true
			}
		}
		s = body[end+3:]
	}
}
