// Package htmlreport makes the analysis tools' HTML reports self-contained
// and free of local filesystem paths.
//
// The tools write reports that reference images by local path and link into
// an installation wiki; neither survives the report leaving the machine the
// analysis ran on. Both transforms parse the report, walk the tree mutating
// the nodes a predicate selects, and render the result back out. Input and
// output paths may coincide, and both transforms are no-ops on their own
// output.
package htmlreport

import (
	"bytes"
	"encoding/base64"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/html"

	gearerrors "github.com/cerebralab/siena-gear/core/errors"
	"github.com/cerebralab/siena-gear/internal/logging"
)

// InlineImages rewrites every resolvable image reference in the report at
// inputPath to a data: URI and writes the result to outputPath. A missing
// input file is an expected condition: it logs a warning and writes
// nothing. Unresolvable references are left untouched with a warning.
// Rendered output normalizes non-breaking spaces to regular spaces.
func InlineImages(inputPath, outputPath string) error {
	doc, err := parseFile(inputPath)
	if os.IsNotExist(err) {
		logging.Warn("html report not found, nothing to inline", "path", inputPath)
		return nil
	}
	if err != nil {
		return err
	}

	baseDir := filepath.Dir(inputPath)
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "img" {
			return
		}
		for i := range n.Attr {
			if n.Attr[i].Key != "src" {
				continue
			}
			src := n.Attr[i].Val
			if strings.HasPrefix(src, "data:") {
				continue
			}
			resolved, ok := resolveImage(baseDir, src)
			if !ok {
				logging.Warn("could not locate image, leaving src as is", "src", src)
				continue
			}
			uri, err := dataURI(resolved)
			if err != nil {
				logging.Warn("could not inline image", "path", resolved, "error", err.Error())
				continue
			}
			n.Attr[i].Val = uri
		}
	})

	return renderFile(doc, outputPath, true)
}

// ScrubPaths strips the staged-input directory prefix from text nodes of
// the report at inputPath and unwraps its link and anchor elements, writing
// the result to outputPath. Text nodes beginning with commandPrefix are
// preserved whole: the invocation line documents the command actually run.
func ScrubPaths(inputPath, outputPath, inputDir, commandPrefix string) error {
	doc, err := parseFile(inputPath)
	if err != nil {
		return err
	}

	pattern := regexp.MustCompile(regexp.QuoteMeta(strings.TrimSuffix(inputDir, "/")) + `/.*/`)
	walk(doc, func(n *html.Node) {
		if n.Type != html.TextNode {
			return
		}
		if !pattern.MatchString(n.Data) || strings.HasPrefix(n.Data, commandPrefix) {
			return
		}
		n.Data = pattern.ReplaceAllString(n.Data, "")
	})

	// The report links into the tool's wiki, which the archived copy
	// cannot reach. Keep the text, drop the wrapping.
	unwrapAll(doc, "link", "a")

	return renderFile(doc, outputPath, false)
}

// resolveImage decides which file an image reference points at. A bare file
// name resolves against the report's own directory; a reference carrying a
// directory component must already exist as given.
func resolveImage(baseDir, src string) (string, bool) {
	path := src
	if filepath.Dir(src) == "." {
		path = filepath.Join(baseDir, src)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

// dataURI encodes the file at path as a data: URI. The MIME type comes from
// the extension, with a content sniff as fallback for extensions the mime
// table does not know.
func dataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mtype := mime.TypeByExtension(filepath.Ext(path))
	if mtype == "" {
		if detected, derr := mimetype.DetectFile(path); derr == nil {
			mtype = detected.String()
		} else {
			mtype = "application/octet-stream"
		}
	}
	return "data:" + mtype + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// parseFile parses path as HTML. Open errors come back unwrapped so
// callers can distinguish a missing file; parse errors are I/O errors in
// practice, the HTML5 parser accepts any byte soup.
func parseFile(path string) (*html.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, gearerrors.NewIO("parse", path, err)
	}
	return doc, nil
}

// renderFile serializes doc to outputPath. When normalizeNBSP is set, every
// non-breaking space in the rendered bytes becomes a regular space.
func renderFile(doc *html.Node, outputPath string, normalizeNBSP bool) error {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return gearerrors.NewIO("render", outputPath, err)
	}
	out := buf.Bytes()
	if normalizeNBSP {
		out = bytes.ReplaceAll(out, []byte("\u00a0"), []byte(" "))
	}
	if err := os.WriteFile(outputPath, out, 0644); err != nil {
		return gearerrors.NewIO("write", outputPath, err)
	}
	return nil
}

// walk visits every node of the tree in document order.
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walk(child, visit)
	}
}

// unwrapAll removes every element with one of the given tag names, splicing
// its children into its place. Elements are collected before any mutation
// so the walk never races its own edits.
func unwrapAll(doc *html.Node, tags ...string) {
	match := make(map[string]bool, len(tags))
	for _, t := range tags {
		match[t] = true
	}
	var targets []*html.Node
	walk(doc, func(n *html.Node) {
		if n.Type == html.ElementNode && match[n.Data] {
			targets = append(targets, n)
		}
	})
	for _, n := range targets {
		unwrap(n)
	}
}

func unwrap(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	for n.FirstChild != nil {
		child := n.FirstChild
		n.RemoveChild(child)
		parent.InsertBefore(child, n)
	}
	parent.RemoveChild(n)
}
