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

// DisplayControl is the persisted form of one display layer.
type DisplayControl struct {
	// ID is unique per display and survives save/restore. Collaborative
	// sessions use it to detect displays a peer already has.
	ID       string
	TypeName string
	Label    string
	// DataSourceIDs reference DataSource.ID entries of the same document.
	DataSourceIDs []string
	View          ViewDescriptor
	// TimeDriver displays own the shared animation time axis.
	TimeDriver bool
	Properties map[string]string

	inError bool
	initErr error
}

// UnitName names the display in logs and failure reports.
func (dc *DisplayControl) UnitName() string {
	if dc.Label != "" {
		return dc.Label
	}
	return dc.ID
}

// MarkInError flags the display as failed during initialization.
func (dc *DisplayControl) MarkInError(err error) {
	dc.inError = true
	dc.initErr = err
}

// InError reports whether initialization failed.
func (dc *DisplayControl) InError() bool { return dc.inError }

// InitError is the error recorded by MarkInError.
func (dc *DisplayControl) InitError() error { return dc.initErr }

// SplitTimeDrivers partitions displays into time drivers and the rest,
// keeping the input order inside each group.
func SplitTimeDrivers(dcs []*DisplayControl) (drivers, rest []*DisplayControl) {
	for _, dc := range dcs {
		if dc.TimeDriver {
			drivers = append(drivers, dc)
		} else {
			rest = append(rest, dc)
		}
	}
	return drivers, rest
}
