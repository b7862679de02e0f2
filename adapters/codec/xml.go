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

// Package codec turns bundle documents into XML text and back.
package codec

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/weaviate/idvbundles/entities/bundle"
)

// XML encodes and decodes the four document shapes. The zero value is
// ready to use and safe for concurrent calls.
type XML struct{}

// Encode serializes a *bundle.Document, *bundle.DisplayControl,
// *bundle.DataSource or *bundle.ColorTable. pretty selects indented output;
// the compact form is what gets embedded in launch scripts.
func (XML) Encode(v any, pretty bool) ([]byte, error) {
	var dto any
	switch t := v.(type) {
	case *bundle.Document:
		dto = toBundle(t)
	case *bundle.DisplayControl:
		d := toDisplay(t)
		dto = &d
	case *bundle.DataSource:
		d := toDataSource(t)
		dto = &d
	case *bundle.ColorTable:
		dto = &xmlColorTable{Name: t.Name, Category: t.Category, Colors: t.Colors}
	default:
		return nil, fmt.Errorf("cannot encode %T", v)
	}

	var (
		out []byte
		err error
	)
	if pretty {
		out, err = xml.MarshalIndent(dto, "", "  ")
	} else {
		out, err = xml.Marshal(dto)
	}
	if err != nil {
		return nil, errors.Wrap(err, "marshal xml")
	}
	return append([]byte(xml.Header), out...), nil
}

// Decode parses document text and reports which shape it holds. An
// unrecognized root element is not an error: the result has
// ShapeUnknown and Root set so the caller can report it.
func (XML) Decode(data []byte) (bundle.Decoded, error) {
	root, err := rootElement(data)
	if err != nil {
		return bundle.Decoded{}, err
	}

	switch root {
	case rootBundle:
		var x xmlBundle
		if err := xml.Unmarshal(data, &x); err != nil {
			return bundle.Decoded{}, errors.Wrap(err, "unmarshal bundle")
		}
		doc, err := fromBundle(&x)
		if err != nil {
			return bundle.Decoded{}, err
		}
		return bundle.Decoded{Shape: bundle.ShapeDocument, Document: doc, Root: root}, nil
	case rootDisplayControl:
		var x xmlDisplay
		if err := xml.Unmarshal(data, &x); err != nil {
			return bundle.Decoded{}, errors.Wrap(err, "unmarshal display control")
		}
		return bundle.Decoded{Shape: bundle.ShapeDisplayControl, DisplayControl: fromDisplay(x), Root: root}, nil
	case rootDataSource:
		var x xmlDataSource
		if err := xml.Unmarshal(data, &x); err != nil {
			return bundle.Decoded{}, errors.Wrap(err, "unmarshal data source")
		}
		return bundle.Decoded{Shape: bundle.ShapeDataSource, DataSource: fromDataSource(x), Root: root}, nil
	case rootColorTable:
		var x xmlColorTable
		if err := xml.Unmarshal(data, &x); err != nil {
			return bundle.Decoded{}, errors.Wrap(err, "unmarshal color table")
		}
		return bundle.Decoded{
			Shape:      bundle.ShapeColorTable,
			ColorTable: &bundle.ColorTable{Name: x.Name, Category: x.Category, Colors: x.Colors},
			Root:       root,
		}, nil
	default:
		return bundle.Decoded{Shape: bundle.ShapeUnknown, Root: root}, nil
	}
}

func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", errors.New("document has no root element")
		}
		if err != nil {
			return "", errors.Wrap(err, "read root element")
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

func toBundle(d *bundle.Document) *xmlBundle {
	x := &xmlBundle{Version: d.Version, ScriptLibrary: d.ScriptLibrary}
	if d.DataSources != nil {
		x.DataSources = &xmlDataSources{}
		for _, ds := range d.DataSources {
			x.DataSources.Items = append(x.DataSources.Items, toDataSource(ds))
		}
	}
	if d.DisplayControls != nil {
		x.DisplayControls = &xmlDisplays{}
		for _, dc := range d.DisplayControls {
			x.DisplayControls.Items = append(x.DisplayControls.Items, toDisplay(dc))
		}
	}
	if d.ViewManagers != nil {
		x.ViewManagers = &xmlViewManagers{}
		for _, vm := range d.ViewManagers {
			x.ViewManagers.Items = append(x.ViewManagers.Items, toViewManager(vm))
		}
	}
	if d.Windows != nil {
		x.Windows = &xmlWindows{}
		for _, w := range d.Windows {
			x.Windows.Items = append(x.Windows.Items, toWindow(w))
		}
	}
	if d.MiscState != nil {
		x.Misc = &xmlProps{Items: toProps(d.MiscState)}
	}
	return x
}

func fromBundle(x *xmlBundle) (*bundle.Document, error) {
	d := &bundle.Document{Version: x.Version, ScriptLibrary: x.ScriptLibrary}
	if x.DataSources != nil {
		d.DataSources = make([]*bundle.DataSource, 0, len(x.DataSources.Items))
		for _, ds := range x.DataSources.Items {
			d.DataSources = append(d.DataSources, fromDataSource(ds))
		}
	}
	if x.DisplayControls != nil {
		d.DisplayControls = make([]*bundle.DisplayControl, 0, len(x.DisplayControls.Items))
		for _, dc := range x.DisplayControls.Items {
			d.DisplayControls = append(d.DisplayControls, fromDisplay(dc))
		}
	}
	if x.ViewManagers != nil {
		d.ViewManagers = make([]*bundle.ViewManager, 0, len(x.ViewManagers.Items))
		for _, item := range x.ViewManagers.Items {
			vm, err := fromViewManager(item)
			if err != nil {
				return nil, errors.Wrap(err, "decode view manager")
			}
			d.ViewManagers = append(d.ViewManagers, vm)
		}
	}
	if x.Windows != nil {
		d.Windows = make([]*bundle.WindowLayout, 0, len(x.Windows.Items))
		for _, w := range x.Windows.Items {
			d.Windows = append(d.Windows, fromWindow(w))
		}
	}
	if x.Misc != nil {
		d.MiscState = fromProps(x.Misc.Items)
		if d.MiscState == nil {
			d.MiscState = map[string]string{}
		}
	}
	return d, nil
}
