// Package enginetest provides a compliance test suite for [engine.Engine]
// implementations.
//
// Test authors call [RunEngineTests] with a factory that returns a fresh
// engine under test. The engine should discover at least one test for the
// execution checks to run; otherwise they are skipped.
//
// Example usage in an engine test file:
//
//	package myengine_test
//
//	import (
//	    "testing"
//	    "github.com/dkoosis/testplan/pkg/engine"
//	    "github.com/dkoosis/testplan/pkg/engine/enginetest"
//	    "github.com/dkoosis/testplan/pkg/engine/myengine"
//	)
//
//	func TestCompliance(t *testing.T) {
//	    enginetest.RunEngineTests(t, func() engine.Engine {
//	        return myengine.New(fixtures)
//	    })
//	}
package enginetest
