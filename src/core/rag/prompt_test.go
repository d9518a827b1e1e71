package rag

import (
	"strings"
	"testing"
)

func TestBuildSystemPrompt_Composition(t *testing.T) {
	out := BuildSystemPrompt("Tutor", "You are a math tutor", "algebra notes", 0)
	if !strings.Contains(out, "You are Tutor") {
		t.Errorf("missing identity line: %q", out)
	}
	if !strings.Contains(out, "You are a math tutor") {
		t.Error("missing directive")
	}
	if !strings.Contains(out, "Knowledge base:\nalgebra notes") {
		t.Error("missing knowledge section")
	}
	if !strings.HasSuffix(out, safetyDirective) {
		t.Error("safety directive must come last")
	}
}

func TestBuildSystemPrompt_FallbackDirective(t *testing.T) {
	out := BuildSystemPrompt("Bot", "", "", 0)
	if !strings.Contains(out, genericDirective) {
		t.Error("empty directive should fall back to the generic one")
	}
	if strings.Contains(out, "Knowledge base:") {
		t.Error("no knowledge section expected for empty knowledge")
	}
}

func TestBuildSystemPrompt_KnowledgeTruncated(t *testing.T) {
	long := strings.Repeat("~", 9000)
	out := BuildSystemPrompt("Bot", "d", long, 8000)
	if strings.Count(out, "~") != 8000 {
		t.Errorf("knowledge not truncated to budget: %d", strings.Count(out, "~"))
	}
}

func TestBuildSystemPrompt_Deterministic(t *testing.T) {
	a := BuildSystemPrompt("Bot", "d", "kb", 0)
	b := BuildSystemPrompt("Bot", "d", "kb", 0)
	if a != b {
		t.Error("prompt not deterministic")
	}
}
