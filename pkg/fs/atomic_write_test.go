package fs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/llcsim/approxcache/pkg/fs"
)

func Test_AtomicWriter_WriteWithDefaults_Leaves_The_Final_Content_In_Place(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "final.txt")
	writer := fs.NewAtomicWriter(fs.NewReal())

	if err := writer.WriteWithDefaults(path, strings.NewReader("hello")); err != nil {
		t.Fatalf("WriteWithDefaults: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("content=%q, want %q", string(got), "hello")
	}
}

func Test_AtomicWriter_Write_Overwrites_An_Existing_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "final.txt")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	writer := fs.NewAtomicWriter(fs.NewReal())
	if err := writer.WriteWithDefaults(path, strings.NewReader("fresh")); err != nil {
		t.Fatalf("WriteWithDefaults: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "fresh" {
		t.Fatalf("content=%q, want %q", string(got), "fresh")
	}
}

func Test_AtomicWriter_Write_Rejects_An_Empty_Path(t *testing.T) {
	t.Parallel()

	writer := fs.NewAtomicWriter(fs.NewReal())
	err := writer.Write("", strings.NewReader("x"), writer.DefaultOptions())
	if err == nil {
		t.Fatal("want an error for an empty path, got nil")
	}
}

func Test_AtomicWriter_Write_Rejects_A_Zero_Perm(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := fs.NewAtomicWriter(fs.NewReal())
	err := writer.Write(filepath.Join(dir, "x.txt"), strings.NewReader("x"), fs.AtomicWriteOptions{})
	if err == nil {
		t.Fatal("want an error for a zero perm, got nil")
	}
}
