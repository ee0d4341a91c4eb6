package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	linuxproc "github.com/c9s/goprocinfo/linux"
	"github.com/pkg/errors"
)

const sampleMemInfo = `MemTotal:       16000000 kB
MemFree:         1234567 kB
MemAvailable:    9876543 kB
`

func Test_ParseMemTotal(t *testing.T) {
	actual, err := ParseMemTotal(strings.NewReader(sampleMemInfo))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 16000000 / 1024 = 15625, * 0.9 = 14062.5
	if expected := 14062; actual != expected {
		t.Errorf("unexpected result: got %d, want %d", actual, expected)
	}
}

func Test_ParseMemTotal_IgnoresOtherLines(t *testing.T) {
	src := "MemFree: 999999 kB\nMemTotal: 2048 kB\n"

	actual, err := ParseMemTotal(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expected := 1; actual != expected {
		t.Errorf("unexpected result: got %d, want %d", actual, expected)
	}
}

func Test_ParseMemTotal_rejectsBadInput(t *testing.T) {
	badCases := []string{
		"",
		"MemTotal: lots kB\n",
		"MemFree: 1234 kB\n",
	}

	for _, badCase := range badCases {
		actual, err := ParseMemTotal(strings.NewReader(badCase))
		if !errors.Is(err, ErrMissingConfiguration) {
			t.Errorf("%q: unexpected result: got %d, %v", badCase, actual, err)
		}
	}
}

func Test_GetNodeMemory_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meminfo")
	if err := os.WriteFile(path, []byte(sampleMemInfo), 0644); err != nil {
		t.Fatal(err)
	}

	actual, err := GetNodeMemory(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actual != 14062 {
		t.Errorf("unexpected result: got %d, want %d", actual, 14062)
	}
}

func Test_GetNodeMemory_MissingFile(t *testing.T) {
	_, err := GetNodeMemory(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrMissingConfiguration) {
		t.Errorf("unexpected error: %v", err)
	}
}

func Test_hyperthreadingUnlikely(t *testing.T) {
	info := &linuxproc.CPUInfo{Processors: make([]linuxproc.Processor, 16)}

	if hyperthreadingUnlikely(info, 16) {
		t.Error("16 cpus on a 16 cpu host flagged")
	}
	if !hyperthreadingUnlikely(info, 32) {
		t.Error("32 cpus on a 16 cpu host not flagged")
	}
	if hyperthreadingUnlikely(&linuxproc.CPUInfo{}, 32) {
		t.Error("empty cpuinfo flagged")
	}
}
