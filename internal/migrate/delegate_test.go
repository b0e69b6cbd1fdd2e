package migrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
)

func script(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	p := filepath.Join(t.TempDir(), "wp")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDelegateRunLogsStdout(t *testing.T) {
	bin := script(t, "echo \"args: $*\"\necho\necho 'Success: imported'\n")
	root := t.TempDir()
	rec := &recorder{}
	d := &Delegate{Bin: bin, Threshold: 1}

	if err := d.Run(context.Background(), root+"/", "/in/site.zip", rec); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"info: args: jmigrate import --path=" + root + " --file=/in/site.zip",
		"info: Success: imported",
	}
	if !reflect.DeepEqual(rec.lines, want) {
		t.Errorf("lines = %q, want %q", rec.lines, want)
	}
}

func TestDelegateRunFailure(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"stderr", "echo partial\necho 'Error: table missing' >&2\nexit 3\n", "Error: table missing"},
		{"stdout only", "echo 'Error: bad archive'\nexit 3\n", "Error: bad archive"},
		{"silent", "exit 3\n", "external tool exited with code 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Delegate{Bin: script(t, tt.body), Threshold: 1}
			err := d.Run(context.Background(), t.TempDir(), "/in/site.zip", nil)
			var te *ExternalToolError
			if !errors.As(err, &te) {
				t.Fatalf("error = %v, want ExternalToolError", err)
			}
			if te.ExitCode != 3 {
				t.Errorf("ExitCode = %d, want 3", te.ExitCode)
			}
			if te.Msg != tt.want {
				t.Errorf("Msg = %q, want %q", te.Msg, tt.want)
			}
		})
	}
}

func TestDelegateCustomArgs(t *testing.T) {
	bin := script(t, "echo \"$*\"\n")
	rec := &recorder{}
	d := &Delegate{Bin: bin, Threshold: 1, Args: func(root, archive string) []string {
		return []string{"restore", archive}
	}}
	if err := d.Run(context.Background(), t.TempDir(), "a.zip", rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.lines) != 1 || rec.lines[0] != "info: restore a.zip" {
		t.Errorf("lines = %q", rec.lines)
	}
}

func TestDelegateShouldRun(t *testing.T) {
	var nilDelegate *Delegate
	tests := []struct {
		name string
		d    *Delegate
		size int64
		want bool
	}{
		{"nil", nilDelegate, 1 << 40, false},
		{"no binary", &Delegate{Threshold: 10}, 100, false},
		{"no threshold", &Delegate{Bin: "wp"}, 100, false},
		{"below", &Delegate{Bin: "wp", Threshold: 100}, 99, false},
		{"equal", &Delegate{Bin: "wp", Threshold: 100}, 100, false},
		{"above", &Delegate{Bin: "wp", Threshold: 100}, 101, true},
	}
	for _, tt := range tests {
		if got := tt.d.ShouldRun(tt.size); got != tt.want {
			t.Errorf("%s: ShouldRun(%d) = %v, want %v", tt.name, tt.size, got, tt.want)
		}
	}
}

func TestLocateDelegate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bits are not supported on windows")
	}
	dir := t.TempDir()
	plain := filepath.Join(dir, "wp-cli.phar")
	if err := os.WriteFile(plain, []byte("<?php"), 0o644); err != nil {
		t.Fatal(err)
	}
	exe := filepath.Join(dir, "wp")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	got := LocateDelegate([]string{"", filepath.Join(dir, "missing"), plain, dir, exe})
	if got != exe {
		t.Errorf("LocateDelegate = %q, want %q", got, exe)
	}
	if got := LocateDelegate([]string{plain, "jmigrate-no-such-binary"}); got != "" {
		t.Errorf("LocateDelegate = %q, want empty", got)
	}
}
