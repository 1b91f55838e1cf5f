package parser

import (
	"strings"
	"testing"
)

func FuzzExtract(f *testing.F) {
	f.Add([]byte(`def main():
    print("hello")
if __name__ == "__main__":
    main()`))
	f.Add([]byte("from . import *\nfrom ..pkg import (a as b, c)\nx, [y] = 1, [2]\n"))
	f.Add([]byte("def broken(\n"))

	p := NewParser()
	f.Fuzz(func(t *testing.T, data []byte) {
		facts, err := p.ParseFile("fuzz.py", data)
		if err != nil {
			return
		}
		for _, imp := range facts.Imports() {
			if imp == "" || strings.HasPrefix(string(imp), ".") || strings.HasSuffix(string(imp), ".") {
				t.Fatalf("malformed import path %q", imp)
			}
		}
		for _, name := range facts.Defined() {
			if name == "" {
				t.Fatal("empty defined name")
			}
		}
	})
}
