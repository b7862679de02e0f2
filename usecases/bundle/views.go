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
	"context"

	"github.com/pkg/errors"

	"github.com/weaviate/idvbundles/entities/bundle"
)

// defaultViewType is the view created for displays of a legacy bundle that
// name no view class.
const defaultViewType = "MapViewManager"

// restoreViews places the view managers of doc into the live state. With
// window layouts the target rebuilds them; without, each view is folded
// into a compatible existing view when merging or gets a window of its own.
func restoreViews(ctx context.Context, target Target, doc *bundle.Document, merge bool,
	props string,
) ([]*bundle.ViewManager, error) {
	vms := doc.ViewManagers
	if doc.IsLegacy() {
		vms = synthesizeViews(target, doc.DisplayControls)
	}
	if props != "" {
		for _, vm := range vms {
			if err := vm.ApplyProperties(props); err != nil {
				return nil, errors.Wrap(err, "apply view properties")
			}
		}
	}

	if len(doc.Windows) > 0 {
		if err := target.RestoreWindows(ctx, doc.Windows, vms, merge); err != nil {
			return nil, errors.Wrap(err, "restore windows")
		}
		return vms, nil
	}

	existing := target.ViewManagers()
	matched := map[*bundle.ViewManager]bool{}
	for _, vm := range vms {
		if merge {
			if old := firstCompatible(target, existing, matched, vm); old != nil {
				old.InitWith(vm)
				matched[old] = true
				continue
			}
		}
		if err := target.CreateWindow(vm); err != nil {
			return nil, errors.Wrapf(err, "create window for %s", vm.Descriptor.Name)
		}
	}
	if merge {
		for _, old := range existing {
			if !matched[old] {
				if err := target.CloseViewManager(old); err != nil {
					return nil, errors.Wrapf(err, "close view %s", old.Descriptor.Name)
				}
			}
		}
	}
	return vms, nil
}

// firstCompatible returns the first unmatched existing view of the same
// type whose window, if skinned, uses the default skin.
func firstCompatible(target Target, existing []*bundle.ViewManager,
	matched map[*bundle.ViewManager]bool, vm *bundle.ViewManager,
) *bundle.ViewManager {
	for _, old := range existing {
		if matched[old] || old.TypeName != vm.TypeName {
			continue
		}
		if skin := target.SkinOf(old); skin != "" && skin != bundle.DefaultSkin {
			continue
		}
		return old
	}
	return nil
}

// synthesizeViews creates one view per distinct display descriptor that no
// live view resolves.
func synthesizeViews(target Target, dcs []*bundle.DisplayControl) []*bundle.ViewManager {
	live := target.ViewManagers()
	var out []*bundle.ViewManager
	resolved := func(desc bundle.ViewDescriptor) bool {
		if desc.IsLastActive() && len(live)+len(out) > 0 {
			return true
		}
		for _, vm := range live {
			if vm.Descriptor.Equal(desc) && desc.Accepts(vm.TypeName) {
				return true
			}
		}
		for _, vm := range out {
			if vm.Descriptor.Equal(desc) {
				return true
			}
		}
		return false
	}
	for _, dc := range dcs {
		if resolved(dc.View) {
			continue
		}
		typ := defaultViewType
		if len(dc.View.ClassNames) > 0 {
			typ = dc.View.ClassNames[0]
		}
		out = append(out, &bundle.ViewManager{Descriptor: dc.View, TypeName: typ})
	}
	return out
}
