// Package probe implements FileProbe (spec §4.2): MIME detection from a
// path's extension, an OS-level probe, and a content-sniff cascade. It is a
// pure function of bytes and path — no network calls.
package probe

import (
	"bytes"
	"encoding/json"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
)

// Kind is the detected content kind, a superset of store.ContentKind's
// string space but kept independent so this package has no dependency on
// the store layer.
type Kind string

const (
	KindText        Kind = "text/plain"
	KindMarkdown    Kind = "text/markdown"
	KindHTML        Kind = "text/html"
	KindJSON        Kind = "application/json"
	KindXML         Kind = "application/xml"
	KindCSV         Kind = "text/csv"
	KindCodePython  Kind = "text/x-python"
	KindCodeJS      Kind = "text/javascript"
	KindShell       Kind = "text/x-sh"
	KindCodeGeneric Kind = "text/x-code"
	KindPDF         Kind = "application/pdf"
	KindImage       Kind = "image/*"
	KindAudio       Kind = "audio/*"
	KindVideo       Kind = "video/*"
	KindArchive     Kind = "application/x-archive"
	KindOctetStream Kind = "application/octet-stream"
)

// extensionTable is the closed table covering text/code/document/image/
// audio/video/archive families, checked before any content sniffing.
// Grounded on the teacher's internal/mcp/mime.go MimeTypeForPath table,
// generalized with document/image/audio/video/archive families spec §4.2
// names but the teacher's code-search domain had no reason to cover.
var extensionTable = map[string]Kind{
	// text & docs
	".txt": KindText, ".log": KindText, ".ini": KindText, ".conf": KindText, ".env": KindText,
	".md": KindMarkdown, ".mdx": KindMarkdown, ".markdown": KindMarkdown,
	".html": KindHTML, ".htm": KindHTML,
	".json": KindJSON,
	".xml":  KindXML, ".xsd": KindXML, ".xsl": KindXML,
	".csv": KindCSV, ".tsv": KindCSV,
	".yaml": KindText, ".yml": KindText, ".toml": KindText,

	// code
	".py": KindCodePython,
	".js": KindCodeJS, ".jsx": KindCodeJS, ".ts": KindCodeJS, ".tsx": KindCodeJS, ".mjs": KindCodeJS,
	".sh": KindShell, ".bash": KindShell, ".zsh": KindShell,
	".go": KindCodeGeneric, ".rs": KindCodeGeneric, ".java": KindCodeGeneric,
	".c": KindCodeGeneric, ".cpp": KindCodeGeneric, ".h": KindCodeGeneric, ".hpp": KindCodeGeneric,
	".rb": KindCodeGeneric, ".php": KindCodeGeneric, ".sql": KindCodeGeneric,

	// document
	".pdf": KindPDF,

	// image
	".png": KindImage, ".jpg": KindImage, ".jpeg": KindImage, ".gif": KindImage,
	".bmp": KindImage, ".svg": KindImage, ".webp": KindImage, ".tiff": KindImage,

	// audio
	".mp3": KindAudio, ".wav": KindAudio, ".flac": KindAudio, ".ogg": KindAudio,

	// video
	".mp4": KindVideo, ".mov": KindVideo, ".avi": KindVideo, ".mkv": KindVideo, ".webm": KindVideo,

	// archive
	".zip": KindArchive, ".tar": KindArchive, ".gz": KindArchive, ".7z": KindArchive, ".rar": KindArchive,
}

// specialFilenames mirrors the teacher's exact-filename overrides.
var specialFilenames = map[string]Kind{
	"Dockerfile":  KindShell,
	"Makefile":    KindCodeGeneric,
	"Jenkinsfile": KindCodeGeneric,
	"Vagrantfile": KindCodeGeneric,
	"Gemfile":     KindCodeGeneric,
	"Rakefile":    KindCodeGeneric,
}

const sniffWindow = 4096

var (
	reMarkdownHeading = regexp.MustCompile(`(?m)^#{1,6}\s`)
	reMarkdownFence   = regexp.MustCompile("```")
	reMarkdownBold    = regexp.MustCompile(`\*\*[^*]+\*\*`)
	rePyDef           = regexp.MustCompile(`(?m)^\s*(def|import|class)\s`)
	reJSKeyword       = regexp.MustCompile(`(?m)\b(function|const|let|var)\b`)
)

// Detect implements FileProbe.detect (spec §4.2). path may be empty when
// the caller has only bytes (e.g. an inline ingestion request body).
func Detect(path string, body []byte) Kind {
	if path != "" {
		if k, ok := fromExtensionTable(path); ok {
			return k
		}
		if k, ok := fromOSProbe(path); ok {
			return k
		}
	}
	return fromContentSniff(body)
}

// fromExtensionTable is step (1): extension lookup in the closed table.
func fromExtensionTable(path string) (Kind, bool) {
	base := filepath.Base(path)
	if k, ok := specialFilenames[base]; ok {
		return k, true
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", false
	}
	k, ok := extensionTable[ext]
	return k, ok
}

// fromOSProbe is step (2): the OS MIME database (stdlib mime.TypeByExtension
// wraps /etc/mime.types on unix and the registry on Windows), consulted
// only when the closed table above has no opinion.
func fromOSProbe(path string) (Kind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", false
	}
	typ := mime.TypeByExtension(ext)
	if typ == "" {
		return "", false
	}
	typ, _, _ = strings.Cut(typ, ";")
	typ = strings.TrimSpace(typ)

	switch {
	case strings.HasPrefix(typ, "text/html"):
		return KindHTML, true
	case strings.HasPrefix(typ, "application/json"):
		return KindJSON, true
	case strings.HasPrefix(typ, "application/xml"), strings.HasPrefix(typ, "text/xml"):
		return KindXML, true
	case strings.HasPrefix(typ, "image/"):
		return KindImage, true
	case strings.HasPrefix(typ, "audio/"):
		return KindAudio, true
	case strings.HasPrefix(typ, "video/"):
		return KindVideo, true
	case strings.HasPrefix(typ, "application/pdf"):
		return KindPDF, true
	case strings.HasPrefix(typ, "text/"):
		return KindText, true
	}
	return "", false
}

// fromContentSniff is step (3): read the first 4 KiB and sniff for a
// closed set of textual signatures, falling back to a binary/text
// heuristic on total failure.
func fromContentSniff(body []byte) Kind {
	window := body
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	text := strings.TrimSpace(string(window))
	lower := strings.ToLower(text)

	switch {
	case strings.HasPrefix(lower, "<!doctype html"), strings.HasPrefix(lower, "<html"):
		return KindHTML
	case strings.HasPrefix(text, "<?xml"):
		return KindXML
	case looksLikeJSON(text):
		return KindJSON
	case strings.HasPrefix(text, "#!/"):
		return KindShell
	case reMarkdownFence.MatchString(text), reMarkdownHeading.MatchString(text), reMarkdownBold.MatchString(text):
		return KindMarkdown
	case rePyDef.MatchString(text):
		return KindCodePython
	case reJSKeyword.MatchString(text):
		return KindCodeJS
	case looksLikeCSV(text):
		return KindCSV
	}

	if looksBinary(body) {
		return KindOctetStream
	}
	return KindText
}

// looksLikeJSON attempts a real parse rather than a prefix check, since
// JSON can start with whitespace or either bracket.
func looksLikeJSON(text string) bool {
	if text == "" {
		return false
	}
	if !(strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[")) {
		return false
	}
	var v any
	return json.Unmarshal([]byte(text), &v) == nil
}

// looksLikeCSV requires at least two lines with a consistent comma count
// greater than zero — spec's "multi-column on every line".
func looksLikeCSV(text string) bool {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) < 2 {
		return false
	}
	cols := strings.Count(lines[0], ",")
	if cols == 0 {
		return false
	}
	for _, line := range lines {
		if line == "" {
			continue
		}
		if strings.Count(line, ",") != cols {
			return false
		}
	}
	return true
}

// looksBinary treats a NUL byte within the sniff window as the binary
// tell, the same heuristic Go's own http.DetectContentType leans on for
// text-vs-binary absent a specific signature match.
func looksBinary(body []byte) bool {
	window := body
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	return bytes.IndexByte(window, 0) >= 0
}
