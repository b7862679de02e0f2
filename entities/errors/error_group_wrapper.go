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

package errors

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrorGroupWrapper is an errgroup.Group whose goroutines recover from
// panics. A limit <= 0 leaves the group unbounded.
type ErrorGroupWrapper struct {
	*errgroup.Group
	logger logrus.FieldLogger

	mu          sync.Mutex
	returnError error
	variables   []interface{}
}

// NewErrorGroupWrapper creates a new ErrorGroupWrapper.
func NewErrorGroupWrapper(logger logrus.FieldLogger, limit int, vars ...interface{}) *ErrorGroupWrapper {
	g := new(errgroup.Group)
	if limit > 0 {
		g.SetLimit(limit)
	}
	return &ErrorGroupWrapper{
		Group:     g,
		logger:    logger,
		variables: vars,
	}
}

// Go overrides the Go method to add panic recovery logic.
func (egw *ErrorGroupWrapper) Go(f func() error, localVars ...interface{}) {
	egw.Group.Go(func() error {
		err := Recovering(f)
		if err != nil && isPanic(err) {
			egw.logger.WithFields(logrus.Fields{
				"action":     "recover_panic",
				"local_vars": fmt.Sprintf("%v", localVars),
				"group_vars": fmt.Sprint(egw.variables),
			}).Error(err)
			egw.mu.Lock()
			egw.returnError = err
			egw.mu.Unlock()
			return nil
		}
		return err
	})
}

// Wait waits for all goroutines to finish and returns the first non-nil
// error, falling back to the last recovered panic.
func (egw *ErrorGroupWrapper) Wait() error {
	if err := egw.Group.Wait(); err != nil {
		return err
	}
	egw.mu.Lock()
	defer egw.mu.Unlock()
	return egw.returnError
}

func isPanic(err error) bool {
	var p *PanicError
	return stderrors.As(err, &p)
}
