// Package versionhistory flattens the VersionHistory change log of a protocol into
// the auto-generated revision comment placed before the document root.
package versionhistory

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"cmp"
	"io"
	"slices"
	"strings"
)

// Marker identifies an already generated revision comment.
const Marker = "Revision History (auto generated):"

// ChangeKind is the type of one change entry.
type ChangeKind int

const (
	KindFix ChangeKind = iota
	KindChange
	KindNewFeature
)

// Prefix returns the label written in front of a change.
func (k ChangeKind) Prefix() string {
	switch k {
	case KindFix:
		return "Fix: "
	case KindNewFeature:
		return "NF: "
	default:
		return "Change: "
	}
}

// Change is one typed change line.
type Change struct {
	Kind ChangeKind
	Text string
}

// Entry is one minor version of the change log.
type Entry struct {
	Version string
	Date    string
	Author  string
	Company string
	Changes []Change
}

// History is the flattened change log in document order.
type History struct {
	Entries []Entry
}

type xmlRoot struct {
	VersionHistory *xmlVersionHistory `xml:"VersionHistory"`
}

type xmlVersionHistory struct {
	Branches []struct {
		ID             string `xml:"id,attr"`
		SystemVersions []struct {
			ID            string `xml:"id,attr"`
			MajorVersions []struct {
				ID            string            `xml:"id,attr"`
				MinorVersions []xmlMinorVersion `xml:"MinorVersions>MinorVersion"`
			} `xml:"MajorVersions>MajorVersion"`
		} `xml:"SystemVersions>SystemVersion"`
	} `xml:"Branches>Branch"`
}

type xmlMinorVersion struct {
	ID      string `xml:"id,attr"`
	Date    string `xml:"Date"`
	Changes struct {
		Items []struct {
			XMLName xml.Name
			Text    string `xml:",chardata"`
		} `xml:",any"`
	} `xml:"Changes"`
	Provider struct {
		Author  string `xml:"Author"`
		Company string `xml:"Company"`
	} `xml:"Provider"`
}

// Parse reads the change log of a UTF-8 document. The boolean is false when the
// document has no VersionHistory element.
func Parse(doc []byte) (*History, bool, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	// The document has already been transcoded to UTF-8.
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	var root xmlRoot
	if err := dec.Decode(&root); err != nil {
		return nil, false, fmt.Errorf("parse version history: %w", err)
	}
	if root.VersionHistory == nil {
		return nil, false, nil
	}

	h := &History{}
	for _, b := range root.VersionHistory.Branches {
		for _, sv := range b.SystemVersions {
			for _, major := range sv.MajorVersions {
				for _, minor := range major.MinorVersions {
					e := Entry{
						Version: strings.Join([]string{b.ID, sv.ID, major.ID, minor.ID}, "."),
						Date:    strings.TrimSpace(minor.Date),
						Author:  strings.TrimSpace(minor.Provider.Author),
						Company: strings.TrimSpace(minor.Provider.Company),
					}
					for _, item := range minor.Changes.Items {
						kind, ok := kindOf(item.XMLName.Local)
						if !ok {
							continue
						}
						e.Changes = append(e.Changes, Change{Kind: kind, Text: strings.TrimSpace(item.Text)})
					}
					// Fixes first, then changes, then new features; document order within a kind.
					slices.SortStableFunc(e.Changes, func(a, b Change) int { return cmp.Compare(a.Kind, b.Kind) })
					h.Entries = append(h.Entries, e)
				}
			}
		}
	}
	return h, true, nil
}

func kindOf(element string) (ChangeKind, bool) {
	switch element {
	case "Fix":
		return KindFix, true
	case "Change":
		return KindChange, true
	case "NewFeature":
		return KindNewFeature, true
	default:
		return 0, false
	}
}
