package packaging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// baggedDir lays out a minimal BagIt enclosure with a valid manifest page.
func baggedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "bagit.txt", "BagIt-Version: 0.97\nTag-File-Character-Encoding: UTF-8\n")
	writeFile(t, dir, "data/payload.txt", "payload")
	writeFile(t, dir, "manifest.html",
		"<html><body><p>The LOCKSS system has permission to collect, preserve,\nand serve this Archival Unit.</p></body></html>")
	return dir
}

func TestPackage_HasBagItEnclosure(t *testing.T) {
	t.Run("valid enclosure", func(t *testing.T) {
		pkg := New(baggedDir(t), "AU", "", nil)
		if !pkg.HasBagItEnclosure() {
			t.Error("HasBagItEnclosure() = false, want true")
		}
	})

	t.Run("missing data directory", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "bagit.txt", "BagIt-Version: 0.97\n")

		pkg := New(dir, "AU", "", nil)
		if pkg.HasBagItEnclosure() {
			t.Error("HasBagItEnclosure() = true, want false")
		}
	})

	t.Run("missing bagit.txt", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "data/payload.txt", "payload")

		pkg := New(dir, "AU", "", nil)
		if pkg.HasBagItEnclosure() {
			t.Error("HasBagItEnclosure() = true, want false")
		}
	})

	t.Run("data must be a directory", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "bagit.txt", "BagIt-Version: 0.97\n")
		writeFile(t, dir, "data", "not a directory")

		pkg := New(dir, "AU", "", nil)
		if pkg.HasBagItEnclosure() {
			t.Error("HasBagItEnclosure() = true, want false")
		}
	})
}

func TestPackage_HasValidManifest(t *testing.T) {
	t.Run("boilerplate present across line breaks", func(t *testing.T) {
		pkg := New(baggedDir(t), "AU", "", nil)
		ok, err := pkg.HasValidManifest()
		if err != nil {
			t.Fatalf("HasValidManifest() error = %v", err)
		}
		if !ok {
			t.Error("HasValidManifest() = false, want true")
		}
	})

	t.Run("missing manifest file", func(t *testing.T) {
		pkg := New(t.TempDir(), "AU", "", nil)
		ok, err := pkg.HasValidManifest()
		if err != nil {
			t.Fatalf("HasValidManifest() error = %v", err)
		}
		if ok {
			t.Error("HasValidManifest() = true, want false")
		}
	})

	t.Run("manifest without boilerplate", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "manifest.html", "<html><body>Nothing to see here.</body></html>")

		pkg := New(dir, "AU", "", nil)
		ok, err := pkg.HasValidManifest()
		if err != nil {
			t.Fatalf("HasValidManifest() error = %v", err)
		}
		if ok {
			t.Error("HasValidManifest() = true, want false")
		}
	})

	t.Run("custom manifest name", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "permission.html",
			"LOCKSS system has permission to collect, preserve, and serve this Archival Unit")

		pkg := New(dir, "AU", "permission.html", nil)
		ok, err := pkg.HasValidManifest()
		if err != nil {
			t.Fatalf("HasValidManifest() error = %v", err)
		}
		if !ok {
			t.Error("HasValidManifest() = false, want true")
		}
	})
}

func TestPackage_ResetFileSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", strings.Repeat("x", 1024))
	writeFile(t, dir, "data/b.txt", strings.Repeat("y", 512))

	pkg := New(dir, "AU", "", nil)
	got, err := pkg.ResetFileSize()
	if err != nil {
		t.Fatalf("ResetFileSize() error = %v", err)
	}

	want := "1.5 KiB (1,536 bytes, 2 files)"
	if got != want {
		t.Errorf("ResetFileSize() = %q, want %q", got, want)
	}
}

func TestPackage_PipelineMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "aa")

	pkg := New(dir, "WPA Folder 01", "", []Parameter{
		{Name: "subdirectory", Value: "WPA-Folder-01"},
	})
	if _, err := pkg.ResetFileSize(); err != nil {
		t.Fatal(err)
	}

	meta := pkg.PipelineMetadata()
	if meta["Ingest Title"] != "WPA Folder 01" {
		t.Errorf("Ingest Title = %v", meta["Ingest Title"])
	}
	if meta["Ingest Step"] != "staged" {
		t.Errorf("Ingest Step = %v", meta["Ingest Step"])
	}
	if meta["Packaged In"] != dir {
		t.Errorf("Packaged In = %v", meta["Packaged In"])
	}
	if meta["File Size"] != "2.0 B (2 bytes, 1 file)" {
		t.Errorf("File Size = %v", meta["File Size"])
	}
	params, ok := meta["parameters"].([][2]string)
	if !ok || len(params) != 1 || params[0] != [2]string{"subdirectory", "WPA-Folder-01"} {
		t.Errorf("parameters = %v", meta["parameters"])
	}
}

func TestFormatExtent(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		files int
		want  string
	}{
		{name: "single byte", bytes: 1, files: 1, want: "1.0 B (1 byte, 1 file)"},
		{name: "kib", bytes: 2048, files: 3, want: "2.0 KiB (2,048 bytes, 3 files)"},
		{name: "mib", bytes: 1536 * 1024, files: 10, want: "1.5 MiB (1,572,864 bytes, 10 files)"},
		{name: "zero", bytes: 0, files: 0, want: "0.0 B (0 bytes, 0 files)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatExtent(tt.bytes, tt.files); got != tt.want {
				t.Errorf("formatExtent(%d, %d) = %q, want %q", tt.bytes, tt.files, got, tt.want)
			}
		})
	}
}

func TestGroupDigits(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{1000000000, "1,000,000,000"},
	}

	for _, tt := range tests {
		if got := groupDigits(tt.n); got != tt.want {
			t.Errorf("groupDigits(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestParameterKeys(t *testing.T) {
	pkg := New(t.TempDir(), "AU", "", []Parameter{
		{Name: "base_url", Value: "https://example.edu/"},
		{Name: "subdirectory", Value: "AU-1"},
	})

	keys := pkg.ParameterKeys()
	if len(keys) != 2 || keys[0] != "base_url" || keys[1] != "subdirectory" {
		t.Errorf("ParameterKeys() = %v", keys)
	}
}
