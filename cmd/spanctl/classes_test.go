package main

import (
	"strings"
	"testing"
)

func TestClassesCommand(t *testing.T) {
	tests := []struct {
		name        string
		sizeClasses string
		wantClasses int
		wantContain []string
		wantErr     bool
	}{
		{
			name:        "default table",
			wantClasses: 92,
			wantContain: []string{"CLASS", "92 classes", "above 2048 bytes"},
		},
		{
			name:        "coarse table",
			sizeClasses: "coarse",
			wantClasses: 32,
			wantContain: []string{"32 classes"},
		},
		{
			name:        "unknown table",
			sizeClasses: "huge",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SPANALLOC_PAGE_SIZE", "")
			resetFlags()
			sizeClasses = tt.sizeClasses

			output, err := captureOutput(t, runClasses)
			if (err != nil) != tt.wantErr {
				t.Fatalf("runClasses() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			assertContains(t, output, tt.wantContain)

			// Header, one row per class, blank line, summary.
			lines := strings.Split(strings.TrimSpace(output), "\n")
			if got := len(lines) - 3; got != tt.wantClasses {
				t.Errorf("got %d class rows, want %d", got, tt.wantClasses)
			}
		})
	}
}

func TestClassesCommandJSON(t *testing.T) {
	resetFlags()
	jsonOut = true

	output, err := captureOutput(t, runClasses)
	if err != nil {
		t.Fatalf("runClasses() error = %v", err)
	}

	var table ClassTable
	assertJSON(t, output, &table)
	if table.Config != "Default" || table.Threshold != 2048 || len(table.Classes) != 92 {
		t.Errorf("unexpected table: config=%s threshold=%d classes=%d",
			table.Config, table.Threshold, len(table.Classes))
	}
	for _, c := range table.Classes {
		if c.Objects == 0 {
			t.Errorf("class %d holds no objects", c.Index)
		}
	}
}
