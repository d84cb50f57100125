package toptokens

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		result   *Result
		want     string
		wantNote bool
	}{
		{
			name:   "ranking",
			result: &Result{Entries: List{{"cat", 3}, {"dog", 2}}},
			want:   "Top 2 tokens:\n1. cat: 3 times\n2. dog: 2 times\n",
		},
		{
			name:   "grouped counts",
			result: &Result{Entries: List{{"the", 1234567}}},
			want:   "Top 1 tokens:\n1. the: 1,234,567 times\n",
		},
		{
			name:   "empty",
			result: &Result{},
			want:   "No tokens found\n",
		},
		{
			name:     "approximate",
			result:   &Result{Entries: List{{"cat", 3}}, Approximate: true},
			want:     "Top 1 tokens:\n1. cat: 3 times\n",
			wantNote: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			if err := Render(&buf, tt.result); err != nil {
				t.Fatalf("Render() error: %v", err)
			}

			out := buf.String()
			if !strings.HasPrefix(out, tt.want) {
				t.Errorf("Render() = %q, want prefix %q", out, tt.want)
			}
			if hasNote := strings.Contains(out, "approximate"); hasNote != tt.wantNote {
				t.Errorf("Render() note present = %v, want %v\n%s", hasNote, tt.wantNote, out)
			}
			if !tt.wantNote && out != tt.want {
				t.Errorf("Render() = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestStageError(t *testing.T) {
	t.Parallel()

	if err := NewStageError(StageReduce, "group_01.txt", nil); err != nil {
		t.Errorf("NewStageError(nil) = %v, want nil", err)
	}

	err := NewStageError(StageMerge, "top_group_01.txt", ErrInputUnavailable)
	if !errors.Is(err, ErrInputUnavailable) {
		t.Errorf("errors.Is(%v, ErrInputUnavailable) = false", err)
	}

	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageMerge || se.Artifact != "top_group_01.txt" {
		t.Errorf("errors.As() = %+v", se)
	}
	if got, want := err.Error(), "merge top_group_01.txt: input unavailable"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if got, want := NewStageError(StagePartition, "", ErrInvalidConfig).Error(), "partition: invalid configuration"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
