package mirror

import (
	"fmt"
	"sort"
	"strings"

	"go.bytecodealliance.org/wit"
	"golang.org/x/mod/semver"
)

// Canonical normalizes a framework version to semver form ("6.2" -> "v6.2").
// It returns "" for invalid versions.
func Canonical(version string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		return ""
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if !semver.IsValid(version) {
		return ""
	}
	return semver.Canonical(version)
}

// Select returns the reference layout that applies to a framework version.
// Unversioned declarations return Reference. With an empty version the newest
// layout is used.
func (d Declaration) Select(version string) (wit.Type, error) {
	if len(d.Layouts) == 0 {
		if d.Reference == nil {
			return nil, fmt.Errorf("%s: no reference layout declared", d.Name)
		}
		return d.Reference, nil
	}

	layouts := make([]Versioned, 0, len(d.Layouts))
	for _, l := range d.Layouts {
		if Canonical(l.Since) == "" {
			return nil, fmt.Errorf("%s: invalid layout version %q", d.Name, l.Since)
		}
		layouts = append(layouts, l)
	}
	sort.SliceStable(layouts, func(i, j int) bool {
		return semver.Compare(Canonical(layouts[i].Since), Canonical(layouts[j].Since)) < 0
	})

	if version == "" {
		return layouts[len(layouts)-1].Reference, nil
	}
	want := Canonical(version)
	if want == "" {
		return nil, fmt.Errorf("%s: invalid framework version %q", d.Name, version)
	}

	var picked wit.Type
	for _, l := range layouts {
		if semver.Compare(Canonical(l.Since), want) <= 0 {
			picked = l.Reference
		}
	}
	if picked == nil {
		return nil, fmt.Errorf("%s: no layout for framework %s (oldest is %s)", d.Name, want, layouts[0].Since)
	}
	return picked, nil
}
