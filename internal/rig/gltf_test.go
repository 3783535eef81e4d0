package rig

import (
	"encoding/json"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func avatarDocument() *gltf.Document {
	return &gltf.Document{
		Scene:  intPtr(0),
		Scenes: []*gltf.Scene{{Name: "Scene", Nodes: []int{0}}},
		Nodes: []*gltf.Node{
			{Name: "Armature", Children: []int{1, 3}},
			{Name: "Head", Children: []int{2}, Rotation: [4]float64{0, 0, 0, 1}},
			{Name: "Jaw", Rotation: [4]float64{0, 0, 0, 1}},
			{Name: "Wolf3D_Head", Mesh: intPtr(0)},
			{Name: "Orphan", Mesh: intPtr(0)},
		},
		Skins: []*gltf.Skin{{Joints: []int{1, 2}}},
		Meshes: []*gltf.Mesh{{
			Name:    "HeadMesh",
			Weights: []float64{0, 0, 0},
			Extras: map[string]any{
				"targetNames": []any{"viseme_sil", "viseme_aa", "mouthSmile"},
			},
		}},
	}
}

func TestGLTFRigResolve(t *testing.T) {
	g := FromDocument(avatarDocument())
	c := Resolve(g, nil)

	assert.Equal(t, TierFullViseme, c.Tier())
	require.Len(t, c.Slots(), 3, "orphan node outside the scene is not walked")
	assert.Equal(t, 2, c.CanonicalCount())
	require.NotNil(t, c.Jaw())
	assert.Equal(t, "Jaw", c.Jaw().Name)
	require.NotNil(t, c.Head())
	assert.Equal(t, "Head", c.Head().Name)
}

func TestGLTFRigWritesNodeWeights(t *testing.T) {
	doc := avatarDocument()
	g := FromDocument(doc)
	c := Resolve(g, nil)

	for _, s := range c.Slots() {
		if s.ChannelName == "viseme_aa" {
			s.Mesh.SetInfluence(s.Channel, 0.75)
		}
	}
	require.Len(t, doc.Nodes[3].Weights, 3)
	assert.InDelta(t, 0.75, doc.Nodes[3].Weights[1], 1e-6)
	assert.Nil(t, doc.Nodes[4].Weights)

	q := mgl32.QuatRotate(0.2, mgl32.Vec3{1, 0, 0})
	c.Jaw().Bone.SetRotation(q)
	assert.InDelta(t, float64(q.W), doc.Nodes[2].Rotation[3], 1e-6)
	assert.InDelta(t, float64(q.V[0]), doc.Nodes[2].Rotation[0], 1e-6)
}

func TestMorphNamesFallbacks(t *testing.T) {
	mesh := &gltf.Mesh{
		Primitives: []*gltf.Primitive{{Targets: []gltf.PrimitiveAttributes{{}, {}}}},
		Extras:     json.RawMessage(`{"targetNames":["jawOpen"]}`),
	}
	assert.Equal(t, []string{"jawOpen", "target_1"}, morphNames(mesh))

	assert.Nil(t, morphNames(&gltf.Mesh{}))
}

func TestRestRotationDefaultsToIdentity(t *testing.T) {
	q := restRotation(&gltf.Node{})
	assert.Equal(t, mgl32.QuatIdent(), q)
}

func TestDocumentWithoutScenes(t *testing.T) {
	doc := &gltf.Document{
		Nodes: []*gltf.Node{{Name: "jaw_bone"}},
		Skins: []*gltf.Skin{{Joints: []int{0}}},
	}
	c := Resolve(FromDocument(doc), nil)
	assert.Equal(t, TierJawBone, c.Tier())
}
