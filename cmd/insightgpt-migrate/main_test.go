package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRunRejectsInvalidDirection(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-direction", "sideways"}, &stdout, &stderr); code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "invalid direction: sideways") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunRequiresDSN(t *testing.T) {
	t.Setenv("INSIGHTGPT_JOURNAL_DSN", "")
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-direction", "status"}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "-dsn is required") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}
