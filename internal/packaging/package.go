package packaging

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// permissionBoilerplate is the phrase the LOCKSS crawler requires in a
// manifest page before it will collect an archival unit.
const permissionBoilerplate = "LOCKSS system has permission to collect, preserve, and serve this Archival Unit"

// DefaultManifestName is used when no manifest filename is configured.
const DefaultManifestName = "manifest.html"

// Parameter is one LOCKSS plugin parameter for the packaged AU.
type Parameter struct {
	Name  string
	Value string
}

// Package is a local directory of files prepared for preservation: a BagIt
// enclosure holding the payload plus a manifest page asserting permission to
// harvest. Validation here is structural; full checksum validation belongs to
// the external BagIt tooling.
type Package struct {
	path         string
	title        string
	manifestName string
	parameters   []Parameter

	fileSize string // cached human-readable extent
}

// New creates a Package rooted at path. manifestName may be empty to use the
// default.
func New(path, title, manifestName string, parameters []Parameter) *Package {
	if manifestName == "" {
		manifestName = DefaultManifestName
	}
	return &Package{
		path:         path,
		title:        title,
		manifestName: manifestName,
		parameters:   parameters,
	}
}

// Path returns the package's root directory.
func (p *Package) Path() string { return p.path }

// HasBagItEnclosure reports whether the package has BagIt structure:
// a data/ payload directory and a bagit.txt declaration.
func (p *Package) HasBagItEnclosure() bool {
	dataInfo, err := os.Stat(filepath.Join(p.path, "data"))
	if err != nil || !dataInfo.IsDir() {
		return false
	}
	tagInfo, err := os.Stat(filepath.Join(p.path, "bagit.txt"))
	if err != nil || !tagInfo.Mode().IsRegular() {
		return false
	}
	return true
}

// ManifestPath returns where the manifest page should live.
func (p *Package) ManifestPath() string {
	return filepath.Join(p.path, p.manifestName)
}

// HasValidManifest reports whether the manifest page exists and carries the
// permission boilerplate. The phrase match is whitespace-insensitive since
// generated HTML rewraps freely.
func (p *Package) HasValidManifest() (bool, error) {
	html, err := os.ReadFile(p.ManifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading manifest: %w", err)
	}

	words := strings.Fields(permissionBoilerplate)
	pattern, err := regexp.Compile(strings.Join(words, `\s+`))
	if err != nil {
		return false, fmt.Errorf("compiling boilerplate pattern: %w", err)
	}
	return pattern.Match(html), nil
}

// ResetFileSize walks the package and refreshes the cached human-readable
// extent, returning it.
func (p *Package) ResetFileSize() (string, error) {
	var files int
	var bytes int64
	err := filepath.WalkDir(p.path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files++
		bytes += info.Size()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking package: %w", err)
	}

	p.fileSize = formatExtent(bytes, files)
	return p.fileSize, nil
}

// PipelineMetadata returns the fields the downstream ingest pipeline expects
// in the terminal result packet.
func (p *Package) PipelineMetadata() map[string]any {
	params := make([][2]string, 0, len(p.parameters))
	for _, param := range p.parameters {
		params = append(params, [2]string{param.Name, param.Value})
	}
	meta := map[string]any{
		"Ingest Title": p.title,
		"Ingest Step":  "staged",
		"Packaged In":  p.path,
		"parameters":   params,
	}
	if p.fileSize != "" {
		meta["File Size"] = p.fileSize
	}
	return meta
}

// ParameterKeys returns the names of the configured plugin parameters.
func (p *Package) ParameterKeys() []string {
	keys := make([]string, 0, len(p.parameters))
	for _, param := range p.parameters {
		keys = append(keys, param.Name)
	}
	return keys
}

// formatExtent renders a byte/file count the way the ingest pipeline
// displays it: "1.2 MiB (1,234,567 bytes, 89 files)".
func formatExtent(bytes int64, files int) string {
	magnitude, unit := humanSize(bytes)
	bplural, fplural := "s", "s"
	if bytes == 1 {
		bplural = ""
	}
	if files == 1 {
		fplural = ""
	}
	return fmt.Sprintf("%.1f %s (%s byte%s, %d file%s)",
		magnitude, unit, groupDigits(bytes), bplural, files, fplural)
}

// humanSize scales a byte count to the largest binary unit at or above 1.0.
func humanSize(bytes int64) (float64, string) {
	units := []string{"B", "KiB", "MiB", "GiB", "TiB"}
	magnitude := float64(bytes)
	unit := units[0]
	for i := 1; i < len(units); i++ {
		scaled := float64(bytes) / float64(int64(1)<<(10*i))
		if scaled < 1.0 {
			break
		}
		magnitude = scaled
		unit = units[i]
	}
	return magnitude, unit
}

// groupDigits formats n with comma separators.
func groupDigits(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
