package memstore_test

import (
	"testing"

	"github.com/dmitrijs2005/ballotkeeper/internal/store"
	"github.com/dmitrijs2005/ballotkeeper/internal/store/memstore"
	"github.com/dmitrijs2005/ballotkeeper/internal/store/storetest"
)

func TestEngineContract(t *testing.T) {
	storetest.RunEngineTests(t, "memstore", func(t *testing.T) store.Engine {
		return memstore.New()
	})
}

func TestDocumentStore(t *testing.T) {
	storetest.RunDocumentStoreTests(t, "memstore", func(t *testing.T) store.Engine {
		return memstore.New()
	})
}
