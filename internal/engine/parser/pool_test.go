package parser

import (
	"sync"
	"testing"
)

func TestParserPool_GetPut(t *testing.T) {
	pool := NewParserPool(PythonLanguage())

	sp := pool.Get()
	if sp == nil {
		t.Fatal("expected non-nil parser from pool")
	}
	if pool.leasedCount() != 1 {
		t.Fatalf("expected 1 leased parser, got %d", pool.leasedCount())
	}

	pool.Put(sp)
	if pool.leasedCount() != 0 {
		t.Fatalf("expected 0 leased parsers, got %d", pool.leasedCount())
	}
}

func TestParserPool_PutNil(t *testing.T) {
	pool := NewParserPool(PythonLanguage())
	pool.Put(nil)
	if pool.leasedCount() != 0 {
		t.Fatalf("Put(nil) must not change the lease count, got %d", pool.leasedCount())
	}
}

func TestParserPool_ParsesValidPython(t *testing.T) {
	pool := NewParserPool(PythonLanguage())

	sp := pool.Get()
	defer pool.Put(sp)

	tree := sp.Parse([]byte("import os\n\ndef main():\n    pass\n"), nil)
	if tree == nil {
		t.Fatal("expected non-nil parse tree for valid Python source")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		t.Fatal("expected error-free root node")
	}
}

func TestParserPool_ConcurrentAccess(t *testing.T) {
	pool := NewParserPool(PythonLanguage())

	const goroutines = 20
	const iters = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)

	src := []byte("from pkg import mod\nx, y = 1, 2\n")

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				sp := pool.Get()
				tree := sp.Parse(src, nil)
				if tree == nil {
					t.Errorf("expected non-nil parse tree")
				} else {
					facts := Extract(tree.RootNode(), src)
					if !facts.hasImport("pkg.mod") {
						t.Errorf("expected pkg.mod import")
					}
					tree.Close()
				}
				pool.Put(sp)
			}
		}()
	}

	wg.Wait()
}
