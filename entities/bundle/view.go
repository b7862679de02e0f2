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

package bundle

import (
	"fmt"
	"strconv"
	"strings"
)

// LastActive is the reserved view name meaning "whichever view was last
// interacted with".
const LastActive = "LASTACTIVE"

// DefaultSkin is the skin of plain windows. Legacy merges only fold into
// view managers that live in a default-skinned window.
const DefaultSkin = "/idv/skins/skin.xml"

// ViewDescriptor resolves the view a display belongs to across
// save/restore.
type ViewDescriptor struct {
	Name       string
	ClassNames []string
}

// Equal compares descriptor names without regard to case.
func (v ViewDescriptor) Equal(other ViewDescriptor) bool {
	return strings.EqualFold(v.Name, other.Name)
}

// IsLastActive reports whether the descriptor uses the reserved name.
func (v ViewDescriptor) IsLastActive() bool {
	return strings.EqualFold(v.Name, LastActive)
}

// Accepts reports whether a view of the given concrete type may host the
// display. An empty class list accepts every type.
func (v ViewDescriptor) Accepts(typeName string) bool {
	if len(v.ClassNames) == 0 {
		return true
	}
	for _, c := range v.ClassNames {
		if c == typeName {
			return true
		}
	}
	return false
}

// ViewManager is the persisted state of one rendering viewport.
type ViewManager struct {
	Descriptor       ViewDescriptor
	TypeName         string
	Wireframe        bool
	Perspective      bool
	ShowScales       bool
	AnimationVisible bool
	LegendOnLeft     bool
	Background       string
	Foreground       string
	AspectRatio      [3]float64
}

// InitWith folds the viewing state of other into vm, keeping vm's
// identity.
func (vm *ViewManager) InitWith(other *ViewManager) {
	desc, typ := vm.Descriptor, vm.TypeName
	*vm = *other
	vm.Descriptor, vm.TypeName = desc, typ
}

// ViewProperty is a view manager setting that can be applied by name.
type ViewProperty string

const (
	PropWireframe        ViewProperty = "wireframe"
	PropPerspective      ViewProperty = "perspective"
	PropShowScales       ViewProperty = "showScales"
	PropAnimationVisible ViewProperty = "animationVisible"
	PropLegendOnLeft     ViewProperty = "legendOnLeft"
	PropBackground       ViewProperty = "background"
	PropForeground       ViewProperty = "foreground"
	PropAspectRatio      ViewProperty = "aspectRatio"
)

// SetProperty applies one named setting. Unknown names are rejected.
func (vm *ViewManager) SetProperty(name ViewProperty, value string) error {
	switch name {
	case PropWireframe, PropPerspective, PropShowScales, PropAnimationVisible, PropLegendOnLeft:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("view property %q: %w", name, err)
		}
		switch name {
		case PropWireframe:
			vm.Wireframe = b
		case PropPerspective:
			vm.Perspective = b
		case PropShowScales:
			vm.ShowScales = b
		case PropAnimationVisible:
			vm.AnimationVisible = b
		case PropLegendOnLeft:
			vm.LegendOnLeft = b
		}
	case PropBackground:
		vm.Background = value
	case PropForeground:
		vm.Foreground = value
	case PropAspectRatio:
		parts := strings.Split(value, ",")
		if len(parts) != 3 {
			return fmt.Errorf("view property %q: want x,y,z got %q", name, value)
		}
		var ratio [3]float64
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return fmt.Errorf("view property %q: %w", name, err)
			}
			ratio[i] = f
		}
		vm.AspectRatio = ratio
	default:
		return fmt.Errorf("unknown view property %q", name)
	}
	return nil
}

// ApplyProperties applies a "name=value;name=value" property string.
// Nothing is applied if any entry is malformed or unknown.
func (vm *ViewManager) ApplyProperties(props string) error {
	type kv struct {
		name  ViewProperty
		value string
	}
	var pending []kv
	for _, pair := range strings.Split(props, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("malformed view property %q", pair)
		}
		pending = append(pending, kv{ViewProperty(strings.TrimSpace(name)), strings.TrimSpace(value)})
	}

	scratch := *vm
	for _, p := range pending {
		if err := scratch.SetProperty(p.name, p.value); err != nil {
			return err
		}
	}
	*vm = scratch
	return nil
}

// Rect is a window position and size in screen pixels.
type Rect struct {
	X, Y, Width, Height int
}

// WindowLayout describes one application window and the views it holds.
type WindowLayout struct {
	ID    string
	Title string
	Skin  string
	// Views reference ViewManager descriptors by name.
	Views  []string
	Bounds Rect
}
