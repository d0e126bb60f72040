package loader

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"strings"
)

// GLB container constants per the binary glTF 2.0 spec.
const (
	glbMagic     uint32 = 0x46546C67 // "glTF"
	glbVersion   uint32 = 2
	glbChunkJSON uint32 = 0x4E4F534A // "JSON"
	glbChunkBIN  uint32 = 0x004E4942 // "BIN\0"
)

const dracoExtension = "KHR_draco_mesh_compression"

type glbHeader struct {
	Magic   uint32
	Version uint32
	Length  uint32
}

type glbChunkHeader struct {
	ChunkLength uint32
	ChunkType   uint32
}

// gltfDocument is the subset of the glTF JSON header the engine reads:
// enough to size, bound, and budget a model without touching vertex data.
type gltfDocument struct {
	Asset struct {
		Version string `json:"version"`
	} `json:"asset"`
	ExtensionsRequired []string `json:"extensionsRequired"`
	Meshes             []struct {
		Name       string `json:"name"`
		Primitives []struct {
			Attributes map[string]int `json:"attributes"`
			Indices    *int           `json:"indices"`
			Mode       *int           `json:"mode"`
		} `json:"primitives"`
	} `json:"meshes"`
	Accessors []struct {
		Count int       `json:"count"`
		Type  string    `json:"type"`
		Min   []float64 `json:"min"`
		Max   []float64 `json:"max"`
	} `json:"accessors"`
}

// MeshDecoder transcodes a compression-extension payload into a plain GLB.
// The concrete decoder location is configuration (a filesystem or network
// path); when nil, compressed primitives are a DecodeError.
type MeshDecoder interface {
	DecodeMesh(data []byte) ([]byte, error)
}

// decodeGLB parses a GLB container and builds the renderer-ready Geometry.
// Draco-compressed documents are transcoded through the mesh decoder first.
func decodeGLB(url string, data []byte, mesh MeshDecoder) (*Geometry, error) {
	doc, bin, err := parseGLB(url, data)
	if err != nil {
		return nil, err
	}

	if requiresExtension(doc, dracoExtension) {
		if mesh == nil {
			return nil, &DecodeError{URL: url, Reason: "draco-compressed model but no mesh decoder configured"}
		}
		decoded, err := mesh.DecodeMesh(data)
		if err != nil {
			return nil, &DecodeError{URL: url, Reason: "draco transcode failed", Err: err}
		}
		doc, bin, err = parseGLB(url, decoded)
		if err != nil {
			return nil, err
		}
		if requiresExtension(doc, dracoExtension) {
			return nil, &DecodeError{URL: url, Reason: "mesh decoder returned a still-compressed document"}
		}
		data = decoded
	}

	g := buildGeometry(doc, bin)
	return g, nil
}

func parseGLB(url string, data []byte) (*gltfDocument, []byte, error) {
	if len(data) < 12 {
		return nil, nil, &DecodeError{URL: url, Reason: "GLB file too small"}
	}
	r := bytes.NewReader(data)

	var header glbHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, nil, &DecodeError{URL: url, Reason: "unreadable GLB header", Err: err}
	}
	if header.Magic != glbMagic {
		return nil, nil, &DecodeError{URL: url, Reason: "invalid GLB magic number"}
	}
	if header.Version != glbVersion {
		return nil, nil, &DecodeError{URL: url, Reason: "invalid GLB version: must be 2"}
	}

	var jsonData, binData []byte
	for {
		var ch glbChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &ch); err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, &DecodeError{URL: url, Reason: "unreadable chunk header", Err: err}
		}
		chunk := make([]byte, ch.ChunkLength)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, nil, &DecodeError{URL: url, Reason: "truncated chunk", Err: err}
		}
		switch ch.ChunkType {
		case glbChunkJSON:
			jsonData = chunk
		case glbChunkBIN:
			binData = chunk
		}
	}
	if jsonData == nil {
		return nil, nil, &DecodeError{URL: url, Reason: "GLB file missing JSON chunk"}
	}

	var doc gltfDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, nil, &DecodeError{URL: url, Reason: "malformed glTF JSON", Err: err}
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return nil, nil, &DecodeError{URL: url, Reason: "invalid glTF version: must be 2.x"}
	}
	return &doc, binData, nil
}

func requiresExtension(doc *gltfDocument, ext string) bool {
	for _, e := range doc.ExtensionsRequired {
		if e == ext {
			return true
		}
	}
	return false
}

// buildGeometry post-processes the parsed document: triangle counting from
// index accessors, bounding volumes from POSITION accessor min/max, and
// culling flags once bounds are known.
func buildGeometry(doc *gltfDocument, bin []byte) *Geometry {
	g := &Geometry{Payload: bin, MeshCount: len(doc.Meshes)}

	bounds := BoundingBox{
		Min: Vec3{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
	haveBounds := false

	for _, mesh := range doc.Meshes {
		if g.Name == "" {
			g.Name = mesh.Name
		}
		for _, prim := range mesh.Primitives {
			// Mode 4 (TRIANGLES) is the default when unset.
			if prim.Mode != nil && *prim.Mode != 4 {
				continue
			}
			if prim.Indices != nil && *prim.Indices < len(doc.Accessors) {
				g.TriangleCount += doc.Accessors[*prim.Indices].Count / 3
			} else if pos, ok := prim.Attributes["POSITION"]; ok && pos < len(doc.Accessors) {
				g.TriangleCount += doc.Accessors[pos].Count / 3
			}
			if pos, ok := prim.Attributes["POSITION"]; ok && pos < len(doc.Accessors) {
				acc := doc.Accessors[pos]
				if len(acc.Min) == 3 && len(acc.Max) == 3 {
					haveBounds = true
					for i := 0; i < 3; i++ {
						bounds.Min[i] = math.Min(bounds.Min[i], acc.Min[i])
						bounds.Max[i] = math.Max(bounds.Max[i], acc.Max[i])
					}
				}
			}
		}
	}

	if haveBounds {
		g.Bounds = bounds
		center := bounds.Center()
		dx := bounds.Max[0] - center[0]
		dy := bounds.Max[1] - center[1]
		dz := bounds.Max[2] - center[2]
		g.Sphere = BoundingSphere{
			Center: center,
			Radius: math.Sqrt(dx*dx + dy*dy + dz*dz),
		}
		g.Cullable = true
	}
	return g
}
