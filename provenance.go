package safeswipe

import (
	"bytes"
	"strings"

	"github.com/bep/imagemeta"
)

// Provenance holds the metadata fields that image generators and editing
// tools write about how an image was produced.
type Provenance struct {
	EXIFSoftware      string
	EXIFArtist        string
	EXIFDescription   string
	EXIFMake          string
	XMPCreatorTool    string
	DigitalSourceType string // IPTC digital source type URI
	IPTCSource        string
	IPTCCredit        string
}

// AIGeneratorKeywords are substrings (lower-case) that name a generator when
// found in any provenance field.
var AIGeneratorKeywords = []string{
	"midjourney",
	"stable diffusion",
	"stablediffusion",
	"dall-e",
	"dall·e",
	"dalle",
	"adobe firefly",
	"leonardo.ai",
	"novelai",
	"comfyui",
	"automatic1111",
	"invokeai",
	"flux.1",
	"ideogram",
}

// trainedAlgorithmicMedia is the IPTC digital source type for content created
// by a generative model. "compositeWithTrainedAlgorithmicMedia" contains it.
const trainedAlgorithmicMedia = "trainedalgorithmicmedia"

// Generator returns the first generator named in the metadata, or "".
func (p *Provenance) Generator() string {
	if p == nil {
		return ""
	}
	for _, f := range []string{
		p.EXIFSoftware,
		p.XMPCreatorTool,
		p.EXIFArtist,
		p.EXIFMake,
		p.EXIFDescription,
		p.IPTCSource,
		p.IPTCCredit,
	} {
		if f == "" {
			continue
		}
		lower := fold(f)
		for _, kw := range AIGeneratorKeywords {
			if strings.Contains(lower, kw) {
				return kw
			}
		}
	}
	if strings.Contains(fold(p.DigitalSourceType), trainedAlgorithmicMedia) {
		return "trainedAlgorithmicMedia"
	}
	return ""
}

// wantedTags maps (source, tag-name) → true for every tag we care about.
var wantedTags = map[imagemeta.Source]map[string]bool{
	imagemeta.EXIF: {
		"Software":         true,
		"Artist":           true,
		"ImageDescription": true,
		"Make":             true,
	},
	imagemeta.XMP: {
		"CreatorTool":       true,
		"DigitalSourceType": true,
	},
	imagemeta.IPTC: {
		"Source": true,
		"Credit": true,
	},
}

// metaFormats maps image package format names onto imagemeta formats.
// Formats without embedded metadata support are absent.
var metaFormats = map[string]imagemeta.ImageFormat{
	"jpeg": imagemeta.JPEG,
	"png":  imagemeta.PNG,
	"webp": imagemeta.WebP,
	"tiff": imagemeta.TIFF,
}

// ExtractProvenance parses EXIF/IPTC/XMP metadata from raw image bytes.
// format is the name returned by DecodeImage. Returns nil if nothing
// relevant is found or the metadata cannot be parsed; it never fails.
func ExtractProvenance(data []byte, format string) *Provenance {
	if len(data) == 0 {
		return nil
	}
	imgFormat, ok := metaFormats[format]
	if !ok {
		return nil
	}

	prov := &Provenance{}
	found := false

	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: imgFormat,
		Sources:     imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			if tags, ok := wantedTags[ti.Source]; ok {
				return tags[ti.Tag]
			}
			return false
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if setProvenanceField(prov, ti) {
				found = true
			}
			return nil
		},
	})

	if err != nil || !found {
		return nil
	}
	return prov
}

// setProvenanceField stores a tag value and reports whether it was non-empty.
func setProvenanceField(p *Provenance, ti imagemeta.TagInfo) bool {
	s := tagValueString(ti.Value)
	if s == "" {
		return false
	}

	var dst *string
	switch ti.Source {
	case imagemeta.EXIF:
		switch ti.Tag {
		case "Software":
			dst = &p.EXIFSoftware
		case "Artist":
			dst = &p.EXIFArtist
		case "ImageDescription":
			dst = &p.EXIFDescription
		case "Make":
			dst = &p.EXIFMake
		}
	case imagemeta.XMP:
		switch ti.Tag {
		case "CreatorTool":
			dst = &p.XMPCreatorTool
		case "DigitalSourceType":
			dst = &p.DigitalSourceType
		}
	case imagemeta.IPTC:
		switch ti.Tag {
		case "Source":
			dst = &p.IPTCSource
		case "Credit":
			dst = &p.IPTCCredit
		}
	}
	if dst == nil {
		return false
	}
	*dst = s
	return true
}

// tagValueString extracts a string from a tag value.
// XMP values may be string or []string (from altList/seqList).
func tagValueString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []string:
		if len(val) > 0 {
			return strings.TrimSpace(val[0])
		}
		return ""
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
		return ""
	default:
		return ""
	}
}
