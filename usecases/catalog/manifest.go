//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package catalog

import (
	"encoding/xml"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"
)

// manifest is a centrally distributed list of bundles:
//
//	<bundles>
//	  <bundle name="Radar" url="radar.xidv" category="Weather>Radar" type="favorite"/>
//	</bundles>
type manifest struct {
	XMLName xml.Name         `xml:"bundles"`
	Bundles []manifestBundle `xml:"bundle"`
}

type manifestBundle struct {
	Name     string `xml:"name,attr"`
	URL      string `xml:"url,attr"`
	Category string `xml:"category,attr"`
	Type     string `xml:"type,attr"`
}

func isRemote(url string) bool {
	return strings.Contains(url, "://")
}

// readManifest returns the entries of the manifest at file. Relative urls
// resolve against the manifest's directory. Entries without a type are
// favorites.
func readManifest(fs billy.Filesystem, file string) ([]Entry, error) {
	data, err := util.ReadFile(fs, file)
	if err != nil {
		return nil, errors.Wrapf(err, "read manifest %s", file)
	}
	var m manifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "parse manifest %s", file)
	}

	entries := make([]Entry, 0, len(m.Bundles))
	for _, b := range m.Bundles {
		kind := Favorite
		if b.Type != "" {
			if kind, err = ParseKind(b.Type); err != nil {
				return nil, errors.Wrapf(err, "manifest %s", file)
			}
		}
		url := b.URL
		if !isRemote(url) && !filepath.IsAbs(url) {
			url = fs.Join(filepath.Dir(file), url)
		}
		name := b.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(url), filepath.Ext(url))
		}
		entries = append(entries, Entry{
			URL:        url,
			Name:       name,
			Categories: StringToCategories(b.Category),
			Kind:       kind,
			Manifest:   file,
		})
	}
	return entries, nil
}
