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

package codec

import (
	"encoding/xml"
	"sort"
	"strconv"
	"strings"

	"github.com/weaviate/idvbundles/entities/bundle"
)

// Root element names of the four accepted document shapes.
const (
	rootBundle         = "bundle"
	rootDisplayControl = "displayControl"
	rootDataSource     = "dataSource"
	rootColorTable     = "colorTable"
)

type xmlBundle struct {
	XMLName         xml.Name         `xml:"bundle"`
	Version         string           `xml:"version,attr,omitempty"`
	DataSources     *xmlDataSources  `xml:"dataSources"`
	DisplayControls *xmlDisplays     `xml:"displayControls"`
	ViewManagers    *xmlViewManagers `xml:"viewManagers"`
	Windows         *xmlWindows      `xml:"windows"`
	ScriptLibrary   *string          `xml:"scriptLibrary"`
	Misc            *xmlProps        `xml:"misc"`
}

type xmlDataSources struct {
	Items []xmlDataSource `xml:"dataSource"`
}

type xmlDisplays struct {
	Items []xmlDisplay `xml:"displayControl"`
}

type xmlViewManagers struct {
	Items []xmlViewManager `xml:"viewManager"`
}

type xmlWindows struct {
	Items []xmlWindow `xml:"window"`
}

type xmlProps struct {
	Items []xmlProp `xml:"property"`
}

type xmlProp struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlDataSource struct {
	XMLName    xml.Name  `xml:"dataSource"`
	ID         string    `xml:"id,attr"`
	Name       string    `xml:"name,attr,omitempty"`
	Type       string    `xml:"type,attr,omitempty"`
	Editable   bool      `xml:"editable,attr,omitempty"`
	Exportable bool      `xml:"exportable,attr,omitempty"`
	Paths      []string  `xml:"path"`
	TempPaths  []string  `xml:"tempPath"`
	Times      []int     `xml:"timeSelection>index"`
	Ensemble   []int     `xml:"ensembleSelection>member"`
	Props      []xmlProp `xml:"property"`
}

type xmlViewDescriptor struct {
	Name    string   `xml:"name,attr"`
	Classes []string `xml:"class"`
}

type xmlDisplay struct {
	XMLName     xml.Name           `xml:"displayControl"`
	ID          string             `xml:"id,attr"`
	Type        string             `xml:"type,attr,omitempty"`
	Label       string             `xml:"label,attr,omitempty"`
	TimeDriver  bool               `xml:"timeDriver,attr,omitempty"`
	DataSources []string           `xml:"dataSourceRef"`
	View        *xmlViewDescriptor `xml:"view"`
	Props       []xmlProp          `xml:"property"`
}

type xmlViewManager struct {
	Type             string             `xml:"type,attr,omitempty"`
	Wireframe        bool               `xml:"wireframe,attr,omitempty"`
	Perspective      bool               `xml:"perspective,attr,omitempty"`
	ShowScales       bool               `xml:"showScales,attr,omitempty"`
	AnimationVisible bool               `xml:"animationVisible,attr,omitempty"`
	LegendOnLeft     bool               `xml:"legendOnLeft,attr,omitempty"`
	Background       string             `xml:"background,attr,omitempty"`
	Foreground       string             `xml:"foreground,attr,omitempty"`
	AspectRatio      string             `xml:"aspectRatio,attr,omitempty"`
	Descriptor       *xmlViewDescriptor `xml:"descriptor"`
}

type xmlWindow struct {
	ID     string     `xml:"id,attr,omitempty"`
	Title  string     `xml:"title,attr,omitempty"`
	Skin   string     `xml:"skin,attr,omitempty"`
	Views  []string   `xml:"view"`
	Bounds *xmlBounds `xml:"bounds"`
}

type xmlBounds struct {
	X      int `xml:"x,attr"`
	Y      int `xml:"y,attr"`
	Width  int `xml:"width,attr"`
	Height int `xml:"height,attr"`
}

type xmlColorTable struct {
	XMLName  xml.Name `xml:"colorTable"`
	Name     string   `xml:"name,attr"`
	Category string   `xml:"category,attr,omitempty"`
	Colors   []string `xml:"color"`
}

func toProps(m map[string]string) []xmlProp {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	props := make([]xmlProp, len(keys))
	for i, k := range keys {
		props[i] = xmlProp{Name: k, Value: m[k]}
	}
	return props
}

func fromProps(props []xmlProp) map[string]string {
	if len(props) == 0 {
		return nil
	}
	m := make(map[string]string, len(props))
	for _, p := range props {
		m[p.Name] = p.Value
	}
	return m
}

func toDescriptor(v bundle.ViewDescriptor) *xmlViewDescriptor {
	if v.Name == "" && len(v.ClassNames) == 0 {
		return nil
	}
	return &xmlViewDescriptor{Name: v.Name, Classes: v.ClassNames}
}

func fromDescriptor(v *xmlViewDescriptor) bundle.ViewDescriptor {
	if v == nil {
		return bundle.ViewDescriptor{}
	}
	return bundle.ViewDescriptor{Name: v.Name, ClassNames: v.Classes}
}

func toDataSource(ds *bundle.DataSource) xmlDataSource {
	return xmlDataSource{
		ID:         ds.ID,
		Name:       ds.Name,
		Type:       ds.TypeName,
		Editable:   ds.SavedEditable(),
		Exportable: ds.Exportable,
		Paths:      ds.Paths,
		TempPaths:  ds.TempPaths,
		Times:      ds.TimeSelection,
		Ensemble:   ds.EnsembleSelection,
		Props:      toProps(ds.Properties),
	}
}

func fromDataSource(x xmlDataSource) *bundle.DataSource {
	return &bundle.DataSource{
		ID:                x.ID,
		Name:              x.Name,
		TypeName:          x.Type,
		Editable:          x.Editable,
		Exportable:        x.Exportable,
		Paths:             x.Paths,
		TempPaths:         x.TempPaths,
		TimeSelection:     x.Times,
		EnsembleSelection: x.Ensemble,
		Properties:        fromProps(x.Props),
	}
}

func toDisplay(dc *bundle.DisplayControl) xmlDisplay {
	return xmlDisplay{
		ID:          dc.ID,
		Type:        dc.TypeName,
		Label:       dc.Label,
		TimeDriver:  dc.TimeDriver,
		DataSources: dc.DataSourceIDs,
		View:        toDescriptor(dc.View),
		Props:       toProps(dc.Properties),
	}
}

func fromDisplay(x xmlDisplay) *bundle.DisplayControl {
	return &bundle.DisplayControl{
		ID:            x.ID,
		TypeName:      x.Type,
		Label:         x.Label,
		TimeDriver:    x.TimeDriver,
		DataSourceIDs: x.DataSources,
		View:          fromDescriptor(x.View),
		Properties:    fromProps(x.Props),
	}
}

func toViewManager(vm *bundle.ViewManager) xmlViewManager {
	x := xmlViewManager{
		Type:             vm.TypeName,
		Wireframe:        vm.Wireframe,
		Perspective:      vm.Perspective,
		ShowScales:       vm.ShowScales,
		AnimationVisible: vm.AnimationVisible,
		LegendOnLeft:     vm.LegendOnLeft,
		Background:       vm.Background,
		Foreground:       vm.Foreground,
		Descriptor:       toDescriptor(vm.Descriptor),
	}
	if vm.AspectRatio != ([3]float64{}) {
		parts := make([]string, 3)
		for i, f := range vm.AspectRatio {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		x.AspectRatio = strings.Join(parts, ",")
	}
	return x
}

func fromViewManager(x xmlViewManager) (*bundle.ViewManager, error) {
	vm := &bundle.ViewManager{
		Descriptor:       fromDescriptor(x.Descriptor),
		TypeName:         x.Type,
		Wireframe:        x.Wireframe,
		Perspective:      x.Perspective,
		ShowScales:       x.ShowScales,
		AnimationVisible: x.AnimationVisible,
		LegendOnLeft:     x.LegendOnLeft,
		Background:       x.Background,
		Foreground:       x.Foreground,
	}
	if x.AspectRatio != "" {
		if err := vm.SetProperty(bundle.PropAspectRatio, x.AspectRatio); err != nil {
			return nil, err
		}
	}
	return vm, nil
}

func toWindow(w *bundle.WindowLayout) xmlWindow {
	x := xmlWindow{ID: w.ID, Title: w.Title, Skin: w.Skin, Views: w.Views}
	if w.Bounds != (bundle.Rect{}) {
		x.Bounds = &xmlBounds{X: w.Bounds.X, Y: w.Bounds.Y, Width: w.Bounds.Width, Height: w.Bounds.Height}
	}
	return x
}

func fromWindow(x xmlWindow) *bundle.WindowLayout {
	w := &bundle.WindowLayout{ID: x.ID, Title: x.Title, Skin: x.Skin, Views: x.Views}
	if x.Bounds != nil {
		w.Bounds = bundle.Rect{X: x.Bounds.X, Y: x.Bounds.Y, Width: x.Bounds.Width, Height: x.Bounds.Height}
	}
	return w
}
