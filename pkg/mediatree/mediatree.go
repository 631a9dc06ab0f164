// Package mediatree locates post media inside decoded embed payloads.
package mediatree

import (
	"postmedia/pkg/payload"
)

// MaxSearchDepth bounds the fallback search when no known path matches.
const MaxSearchDepth = 48

const mediaKey = "shortcode_media"

// KnownPaths are the dot paths under which platforms have shipped the media
// object, most specific first.
var KnownPaths = []string{
	"graphql.shortcode_media",
	"data.graphql.shortcode_media",
	"gql_data.shortcode_media",
	"data.xdt_shortcode_media",
	"shortcode_media",
}

// Candidate is one still image discovered in a payload.
type Candidate struct {
	URL         string
	IsVideo     bool
	SourceOrder int
}

// Walker searches payload trees. The zero value uses MaxSearchDepth.
type Walker struct {
	MaxDepth int
}

// FindMediaNodes uses a default Walker.
func FindMediaNodes(root *payload.Node) []*payload.Node {
	return Walker{}.FindMediaNodes(root)
}

// FindMediaNodes returns the media objects in root. Known paths come first;
// otherwise the first object carrying shortcode_media found depth-first, and
// as a last resort root itself when it already looks like a media object.
func (w Walker) FindMediaNodes(root *payload.Node) []*payload.Node {
	if !root.IsObject() {
		return nil
	}

	var nodes []*payload.Node
	seen := make(map[*payload.Node]struct{})
	for _, path := range KnownPaths {
		node := root.Path(path)
		if !node.IsObject() {
			continue
		}
		if _, dup := seen[node]; dup {
			continue
		}
		seen[node] = struct{}{}
		nodes = append(nodes, node)
	}
	if len(nodes) > 0 {
		return nodes
	}

	if node := w.search(root, 0); node != nil {
		return []*payload.Node{node}
	}

	if looksLikeMedia(root) {
		return []*payload.Node{root}
	}
	return nil
}

func (w Walker) search(node *payload.Node, depth int) *payload.Node {
	limit := w.MaxDepth
	if limit <= 0 {
		limit = MaxSearchDepth
	}
	if node == nil || depth > limit {
		return nil
	}
	if media := node.Get(mediaKey); media.IsObject() {
		return media
	}
	for _, child := range node.Children() {
		if found := w.search(child, depth+1); found != nil {
			return found
		}
	}
	return nil
}

func looksLikeMedia(node *payload.Node) bool {
	return node.Has("display_url") || node.Has("edge_sidecar_to_children")
}

// Collect flattens media nodes into candidates in discovery order, videos
// included. A carousel contributes its children; any other node itself.
func Collect(nodes []*payload.Node) []Candidate {
	var out []Candidate
	emit := func(node *payload.Node) {
		url, _ := node.Get("display_url").Str()
		if url == "" {
			return
		}
		out = append(out, Candidate{
			URL:         url,
			IsVideo:     node.Get("is_video").Truthy(),
			SourceOrder: len(out),
		})
	}

	for _, node := range nodes {
		edges := node.Path("edge_sidecar_to_children.edges")
		if edges.Len() > 0 {
			for _, edge := range edges.Items() {
				if child := edge.Get("node"); child.IsObject() {
					emit(child)
				}
			}
			continue
		}
		emit(node)
	}
	return out
}

// Candidates is Collect without videos.
func Candidates(nodes []*payload.Node) []Candidate {
	all := Collect(nodes)
	stills := all[:0]
	for _, c := range all {
		if !c.IsVideo {
			stills = append(stills, c)
		}
	}
	return stills
}
