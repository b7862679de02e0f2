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

package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/idvbundles/usecases/config"
)

// Options are the flags every command accepts.
type Options struct {
	config.Flags
}

var opts Options

func main() {
	log := logrus.WithFields(logrus.Fields{"app": "idvbundle"}).Logger

	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "Inspect, open, convert and catalog bundle files"

	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{"inspect", "Describe bundle files", "Classify and decode each FILE without restoring it.", &inspectCommand{}},
		{"open", "Restore a bundle headlessly", "Restore FILE into a session without displays and optionally save it again.", &openCommand{}},
		{"convert", "Rewrap a bundle", "Write the document of SRC in the container implied by the suffix of DST.", &convertCommand{}},
		{"catalog", "Manage saved bundles", "List and edit favorites and templates.", &catalogCommand{}},
		{"history", "Show recently opened bundles", "List or clear the bundle history.", &historyCommand{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			log.WithField("action", "startup").WithError(err).Fatal("failed to register command")
		}
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
