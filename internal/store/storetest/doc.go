// Package storetest holds the behaviour suites every store.Engine must
// pass. Engine packages call them from their own tests:
//
//	func TestEngineContract(t *testing.T) {
//		storetest.RunEngineTests(t, "memstore", func(t *testing.T) store.Engine {
//			return memstore.New()
//		})
//	}
package storetest
