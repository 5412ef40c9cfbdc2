package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect_ExtensionTableTakesPrecedence(t *testing.T) {
	assert.Equal(t, KindMarkdown, Detect("notes.md", []byte("not markdown at all")))
	assert.Equal(t, KindJSON, Detect("data.json", []byte("not even json")))
	assert.Equal(t, KindCodePython, Detect("script.py", []byte("# shell-looking content\n#!/usr/bin/env python")))
}

func TestDetect_SpecialFilenames(t *testing.T) {
	assert.Equal(t, KindShell, Detect("/a/b/Dockerfile", nil))
	assert.Equal(t, KindCodeGeneric, Detect("Makefile", nil))
}

func TestDetect_ContentSniff_HTML(t *testing.T) {
	assert.Equal(t, KindHTML, Detect("", []byte("<!DOCTYPE html><html><body>hi</body></html>")))
	assert.Equal(t, KindHTML, Detect("", []byte("<html><body>hi</body></html>")))
}

func TestDetect_ContentSniff_XML(t *testing.T) {
	assert.Equal(t, KindXML, Detect("", []byte(`<?xml version="1.0"?><root/>`)))
}

func TestDetect_ContentSniff_JSON(t *testing.T) {
	assert.Equal(t, KindJSON, Detect("", []byte(`{"a": 1, "b": [1,2,3]}`)))
	assert.Equal(t, KindJSON, Detect("", []byte(`[1,2,3]`)))
}

func TestDetect_ContentSniff_JSONRejectsInvalid(t *testing.T) {
	assert.NotEqual(t, KindJSON, Detect("", []byte(`{not json`)))
}

func TestDetect_ContentSniff_Markdown(t *testing.T) {
	assert.Equal(t, KindMarkdown, Detect("", []byte("# Heading\n\nSome body text.")))
	assert.Equal(t, KindMarkdown, Detect("", []byte("body\n```go\ncode\n```")))
	assert.Equal(t, KindMarkdown, Detect("", []byte("this is **bold** text")))
}

func TestDetect_ContentSniff_Python(t *testing.T) {
	assert.Equal(t, KindCodePython, Detect("", []byte("import os\n\ndef main():\n    pass\n")))
}

func TestDetect_ContentSniff_JavaScript(t *testing.T) {
	assert.Equal(t, KindCodeJS, Detect("", []byte("function main() {\n  const x = 1;\n}\n")))
}

func TestDetect_ContentSniff_Shell(t *testing.T) {
	assert.Equal(t, KindShell, Detect("", []byte("#!/bin/bash\necho hi\n")))
}

func TestDetect_ContentSniff_CSV(t *testing.T) {
	assert.Equal(t, KindCSV, Detect("", []byte("a,b,c\n1,2,3\n4,5,6\n")))
}

func TestDetect_ContentSniff_CSVRejectsRaggedRows(t *testing.T) {
	assert.NotEqual(t, KindCSV, Detect("", []byte("a,b,c\n1,2\n")))
}

func TestDetect_DefaultsToOctetStreamForBinary(t *testing.T) {
	binary := []byte{0x00, 0x01, 0x02, 0xFF, 0xFE}
	assert.Equal(t, KindOctetStream, Detect("", binary))
}

func TestDetect_DefaultsToTextPlainForUnknownText(t *testing.T) {
	assert.Equal(t, KindText, Detect("", []byte("just some plain prose, nothing special here")))
}

func TestDetect_NoPathNoExtension_FallsStraightToSniff(t *testing.T) {
	assert.Equal(t, KindJSON, Detect("README", []byte(`{"x": true}`)))
}

func TestDetect_IsPureFunctionOfBytesAndPath(t *testing.T) {
	body := []byte("# Title\nbody")
	first := Detect("x.unknownext", body)
	second := Detect("x.unknownext", body)
	assert.Equal(t, first, second)
}
