package docxcod

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const contentTypesNamespace = "http://schemas.openxmlformats.org/package/2006/content-types"

// ContentTypes is the package's [Content_Types].xml registry.
type ContentTypes struct {
	XMLName   xml.Name              `xml:"Types"`
	Namespace string                `xml:"xmlns,attr"`
	Defaults  []ContentTypeDefault  `xml:"Default"`
	Overrides []ContentTypeOverride `xml:"Override"`
}

// ContentTypeDefault maps a file extension to a content type.
type ContentTypeDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// ContentTypeOverride maps a single part to a content type.
type ContentTypeOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// ParseContentTypes decodes a content-type registry.
func ParseContentTypes(data []byte) (*ContentTypes, error) {
	var ct ContentTypes
	if err := xml.Unmarshal(data, &ct); err != nil {
		return nil, fmt.Errorf("failed to parse content types: %w", err)
	}
	return &ct, nil
}

// HasDefault reports whether ext is registered, case-insensitively.
func (ct *ContentTypes) HasDefault(ext string) bool {
	for _, def := range ct.Defaults {
		if strings.EqualFold(def.Extension, ext) {
			return true
		}
	}
	return false
}

// AddDefault registers ext unless it is already present. It reports whether
// the registry changed.
func (ct *ContentTypes) AddDefault(ext, contentType string) bool {
	if ct.HasDefault(ext) {
		return false
	}
	ct.Defaults = append(ct.Defaults, ContentTypeDefault{
		Extension:   ext,
		ContentType: contentType,
	})
	return true
}

// Marshal encodes the registry with an XML declaration.
func (ct *ContentTypes) Marshal() ([]byte, error) {
	if ct.Namespace == "" {
		ct.Namespace = contentTypesNamespace
	}
	// a decoded XMLName carries the namespace, which would be emitted twice
	ct.XMLName = xml.Name{Local: "Types"}
	out, err := xml.Marshal(ct)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content types: %w", err)
	}
	return append([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+"\n"), out...), nil
}
