package storage_test

import (
	"testing"

	"xdao.co/trailproof/storage"
	"xdao.co/trailproof/storage/testkit"
)

func TestMemory_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS { return storage.NewMemory() })
}

func TestMulti_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return storage.MultiCAS{Adapters: []storage.CAS{storage.NewMemory(), storage.NewMemory()}}
	})
}

func TestReplicating_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return storage.ReplicatingCAS{Backends: []storage.NamedCAS{
			{Name: "a", CAS: storage.NewMemory()},
			{Name: "b", CAS: storage.NewMemory()},
		}}
	})
}
