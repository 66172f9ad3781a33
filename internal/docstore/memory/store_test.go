package memory_test

import (
	"testing"

	"minshare/internal/docstore"
	"minshare/internal/docstore/memory"
	"minshare/internal/docstore/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		return memory.New()
	})
}
