package rig

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

// GLTFRig exposes a glTF document as a Riggable. Influences and rotations are
// written straight into the document's nodes.
type GLTFRig struct {
	doc   *gltf.Document
	nodes []*gltfNode
	order []int
}

type gltfNode struct {
	node *gltf.Node
	mesh *gltfMesh
	bone *gltfBone
}

func (n *gltfNode) Name() string { return n.node.Name }

func (n *gltfNode) Mesh() Mesh {
	if n.mesh == nil {
		return nil
	}
	return n.mesh
}

func (n *gltfNode) Bone() Bone {
	if n.bone == nil {
		return nil
	}
	return n.bone
}

type gltfMesh struct {
	node  *gltf.Node
	names []string
	base  []float64
}

func (m *gltfMesh) MorphNames() []string {
	return m.names
}

func (m *gltfMesh) SetInfluence(channel int, weight float32) {
	if channel < 0 || channel >= len(m.names) {
		return
	}
	if len(m.node.Weights) != len(m.names) {
		w := make([]float64, len(m.names))
		copy(w, m.base)
		m.node.Weights = w
	}
	m.node.Weights[channel] = float64(weight)
}

type gltfBone struct {
	node *gltf.Node
	rest mgl32.Quat
}

func (b *gltfBone) Rest() mgl32.Quat { return b.rest }

func (b *gltfBone) SetRotation(q mgl32.Quat) {
	b.node.Rotation = [4]float64{float64(q.V[0]), float64(q.V[1]), float64(q.V[2]), float64(q.W)}
}

// LoadGLTF opens a .gltf or .glb file and wraps it.
func LoadGLTF(path string) (*GLTFRig, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	return FromDocument(doc), nil
}

// FromDocument wraps an already decoded document.
func FromDocument(doc *gltf.Document) *GLTFRig {
	g := &GLTFRig{doc: doc}
	if doc == nil {
		return g
	}

	joints := make(map[int]bool)
	for _, skin := range doc.Skins {
		if skin == nil {
			continue
		}
		for _, j := range skin.Joints {
			joints[j] = true
		}
	}

	g.nodes = make([]*gltfNode, len(doc.Nodes))
	for i, node := range doc.Nodes {
		if node == nil {
			continue
		}
		gn := &gltfNode{node: node}
		if node.Mesh != nil && *node.Mesh >= 0 && *node.Mesh < len(doc.Meshes) {
			if mesh := doc.Meshes[*node.Mesh]; mesh != nil {
				if names := morphNames(mesh); len(names) > 0 {
					gn.mesh = &gltfMesh{node: node, names: names, base: mesh.Weights}
				}
			}
		}
		if joints[i] {
			gn.bone = &gltfBone{node: node, rest: restRotation(node)}
		}
		g.nodes[i] = gn
	}
	g.order = traversalOrder(doc)
	return g
}

func (g *GLTFRig) Document() *gltf.Document {
	return g.doc
}

// Walk visits each node reachable from the default scene once. Documents
// without scenes are walked in node order.
func (g *GLTFRig) Walk(visit func(Node)) {
	for _, idx := range g.order {
		if idx < 0 || idx >= len(g.nodes) || g.nodes[idx] == nil {
			continue
		}
		visit(g.nodes[idx])
	}
}

func traversalOrder(doc *gltf.Document) []int {
	var roots []int
	if len(doc.Scenes) > 0 {
		scene := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			scene = *doc.Scene
		}
		if s := doc.Scenes[scene]; s != nil {
			roots = s.Nodes
		}
	} else {
		for i := range doc.Nodes {
			roots = append(roots, i)
		}
	}

	seen := make(map[int]bool, len(doc.Nodes))
	order := make([]int, 0, len(doc.Nodes))
	var visit func(int)
	visit = func(i int) {
		if i < 0 || i >= len(doc.Nodes) || seen[i] {
			return
		}
		seen[i] = true
		order = append(order, i)
		if n := doc.Nodes[i]; n != nil {
			for _, c := range n.Children {
				visit(c)
			}
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return order
}

// morphNames reads target names from the mesh extras, falling back to
// positional names when the exporter did not write any.
func morphNames(mesh *gltf.Mesh) []string {
	count := len(mesh.Weights)
	for _, prim := range mesh.Primitives {
		if prim != nil && len(prim.Targets) > count {
			count = len(prim.Targets)
		}
	}

	names := extrasTargetNames(mesh.Extras)
	if len(names) > count {
		count = len(names)
	}
	if count == 0 {
		return nil
	}

	out := make([]string, count)
	for i := range out {
		if i < len(names) && names[i] != "" {
			out[i] = names[i]
		} else {
			out[i] = fmt.Sprintf("target_%d", i)
		}
	}
	return out
}

func extrasTargetNames(extras any) []string {
	var fields map[string]any
	switch e := extras.(type) {
	case map[string]any:
		fields = e
	case json.RawMessage:
		if err := json.Unmarshal(e, &fields); err != nil {
			return nil
		}
	case []byte:
		if err := json.Unmarshal(e, &fields); err != nil {
			return nil
		}
	default:
		return nil
	}

	switch raw := fields["targetNames"].(type) {
	case []string:
		return raw
	case []any:
		names := make([]string, len(raw))
		for i, v := range raw {
			if s, ok := v.(string); ok {
				names[i] = s
			}
		}
		return names
	}
	return nil
}

func restRotation(node *gltf.Node) mgl32.Quat {
	r := node.Rotation
	if r == [4]float64{} {
		return mgl32.QuatIdent()
	}
	return mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
}
