package rag

import (
	"strings"

	"github.com/ailayzer/boltchat/domain"
)

// Wire protocol markers. Only DataPrefix-prefixed lines carry payload; the
// three sentinels have reserved lifecycle meaning, everything else is literal
// content.
const (
	DataPrefix    = "data:"
	MarkerStarted = "[STREAM_STARTED]"
	MarkerDone    = "[DONE]"
	MarkerError   = "[ERROR]"
)

// classifyLine maps one complete line to a stream event. Lines without the
// protocol prefix are not events and report ok=false.
func classifyLine(line string) (domain.StreamEvent, bool) {
	if !strings.HasPrefix(line, DataPrefix) {
		return domain.StreamEvent{}, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, DataPrefix))

	switch {
	case payload == MarkerStarted:
		return domain.StreamEvent{Kind: domain.EventStreamStarted}, true
	case payload == MarkerDone:
		return domain.StreamEvent{Kind: domain.EventStreamEnded}, true
	case strings.HasPrefix(payload, MarkerError):
		info := strings.TrimSpace(strings.TrimPrefix(payload, MarkerError))
		return domain.StreamEvent{Kind: domain.EventStreamError, Text: info}, true
	default:
		return domain.StreamEvent{Kind: domain.EventToken, Text: payload}, true
	}
}
