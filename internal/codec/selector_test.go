package codec

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"assetd/pkg/types"
)

func modelDesc(baseSize, dracoSize int64) types.AssetDescriptor {
	d := types.AssetDescriptor{
		ID:       "m",
		Kind:     types.KindModel,
		Baseline: types.Variant{Codec: types.CodecGLB, URL: "https://cdn.test/m.glb", SizeBytes: baseSize},
	}
	if dracoSize > 0 {
		d.Alternates = []types.Variant{{Codec: types.CodecDraco, URL: "https://cdn.test/m.draco.glb", SizeBytes: dracoSize}}
	}
	return d
}

func TestSelectModel_SizeRatioRule(t *testing.T) {
	cases := []struct {
		name      string
		base      int64
		draco     int64
		wantCodec types.Codec
	}{
		{"well below threshold", 2_000_000, 1_200_000, types.CodecDraco},
		{"just below threshold", 1000, 699, types.CodecDraco},
		{"exactly at threshold", 1000, 700, types.CodecGLB},
		{"above threshold", 1000, 900, types.CodecGLB},
		{"no draco variant", 1000, 0, types.CodecGLB},
	}
	s := NewSelector(types.Capabilities{}, zerolog.Nop())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.SelectModel(modelDesc(tc.base, tc.draco))
			if got.Codec != tc.wantCodec {
				t.Fatalf("selected %s, want %s", got.Codec, tc.wantCodec)
			}
		})
	}
}

func TestSelectModel_ZeroBaselineSizeFallsBack(t *testing.T) {
	s := NewSelector(types.Capabilities{}, zerolog.Nop())
	d := modelDesc(0, 100)
	if got := s.SelectModel(d); got.Codec != types.CodecGLB {
		t.Fatalf("undeclared baseline size must select baseline, got %s", got.Codec)
	}
}

func textureDesc(codecs ...types.Codec) types.AssetDescriptor {
	d := types.AssetDescriptor{
		ID:       "t",
		Kind:     types.KindTexture,
		Baseline: types.Variant{Codec: types.CodecPNG, URL: "https://cdn.test/t.png", SizeBytes: 1_000_000},
	}
	for _, c := range codecs {
		d.Alternates = append(d.Alternates, types.Variant{Codec: c, URL: "https://cdn.test/t." + string(c), SizeBytes: 300_000})
	}
	return d
}

func TestSelectTexture_PreferenceOrder(t *testing.T) {
	cases := []struct {
		name      string
		caps      types.Capabilities
		alts      []types.Codec
		wantCodec types.Codec
	}{
		{"ktx2 supported", types.Capabilities{KTX2: true, WebP: true}, []types.Codec{types.CodecKTX2, types.CodecWebP}, types.CodecKTX2},
		{"ktx2 unsupported, webp supported", types.Capabilities{WebP: true}, []types.Codec{types.CodecKTX2, types.CodecWebP}, types.CodecWebP},
		{"nothing supported", types.Capabilities{}, []types.Codec{types.CodecKTX2, types.CodecWebP}, types.CodecPNG},
		{"ktx2 supported but not offered", types.Capabilities{KTX2: true}, []types.Codec{types.CodecWebP}, types.CodecPNG},
		{"baseline only", types.Capabilities{KTX2: true, WebP: true}, nil, types.CodecPNG},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSelector(tc.caps, zerolog.Nop())
			got := s.SelectTexture(textureDesc(tc.alts...))
			if got.Codec != tc.wantCodec {
				t.Fatalf("selected %s, want %s", got.Codec, tc.wantCodec)
			}
		})
	}
}

type countingProbe struct{ calls int }

func (p *countingProbe) Probe(ctx context.Context) (types.Capabilities, error) {
	p.calls++
	return types.Capabilities{WebP: true}, nil
}

func TestCachedProbe_RunsOnce(t *testing.T) {
	p := &countingProbe{}
	c := NewCachedProbe(p)
	for i := 0; i < 3; i++ {
		caps, err := c.Probe(context.Background())
		if err != nil {
			t.Fatalf("Probe: %v", err)
		}
		if !caps.WebP {
			t.Fatalf("expected cached capabilities")
		}
	}
	if p.calls != 1 {
		t.Fatalf("underlying probe ran %d times, want 1", p.calls)
	}
}
