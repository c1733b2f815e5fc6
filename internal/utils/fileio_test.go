package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.toml")

	if err := AtomicWriteFile(path, []byte("v1"), 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("content = %q; want %q", got, "v1")
	}

	// Overwrite path: the old content must be fully replaced.
	if err := AtomicWriteFile(path, []byte("second"), 0644); err != nil {
		t.Fatalf("AtomicWriteFile overwrite failed: %v", err)
	}
	got, _ = os.ReadFile(path)
	if string(got) != "second" {
		t.Errorf("content after overwrite = %q; want %q", got, "second")
	}

	// No temp droppings left behind.
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp.*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("nested dir not created: %v", err)
	}
	if err := EnsureDir(dir); err != nil {
		t.Errorf("EnsureDir on existing dir failed: %v", err)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.md")
	dst := filepath.Join(dir, "dst.md")
	if err := os.WriteFile(src, []byte("body"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "body" {
		t.Errorf("content = %q; want %q", got, "body")
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v; want 0600", info.Mode().Perm())
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Error("CopyFile with missing source succeeded; want error")
	}
}

func TestReplaceDir(t *testing.T) {
	dir := t.TempDir()
	staged := filepath.Join(dir, "staged")
	target := filepath.Join(dir, "target")

	writeTree := func(root, marker string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Join(root, "sub"), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, "sub", "file.md"), []byte(marker), 0644); err != nil {
			t.Fatal(err)
		}
	}

	writeTree(target, "old")
	writeTree(staged, "new")

	if err := ReplaceDir(staged, target); err != nil {
		t.Fatalf("ReplaceDir failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(target, "sub", "file.md"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("content = %q; want %q", got, "new")
	}
	if _, err := os.Stat(target + ".old"); !os.IsNotExist(err) {
		t.Error("backup directory left behind")
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Error("staged directory still present after swap")
	}
}

func TestReplaceDirNoExistingTarget(t *testing.T) {
	dir := t.TempDir()
	staged := filepath.Join(dir, "staged")
	target := filepath.Join(dir, "fresh")
	if err := os.MkdirAll(staged, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(staged, "f"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := ReplaceDir(staged, target); err != nil {
		t.Fatalf("ReplaceDir failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "f")); err != nil {
		t.Errorf("target not populated: %v", err)
	}
}
