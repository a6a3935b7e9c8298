// Command genmanifest reads the app archive's YAML manifest and emits the
// plain-Go manifestEntries table kernel/loader compiles into the
// freestanding kernel image. It is a host-side build tool only -- nothing
// under kernel/ imports gopkg.in/yaml.v3 or runs on the target machine;
// the generated manifest_gen.go is committed like any other generated
// source.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type manifestEntry struct {
	Name string   `yaml:"name"`
	File string   `yaml:"file"`
	Argv []string `yaml:"argv"`
}

type manifestFile struct {
	Apps []manifestEntry `yaml:"apps"`
}

func main() {
	in := flag.String("in", "", "path to manifest.yaml")
	out := flag.String("out", "", "path to write the generated Go source")
	flag.Parse()

	data, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintln(os.Stderr, "genmanifest:", err)
		os.Exit(1)
	}

	var m manifestFile
	if err := yaml.Unmarshal(data, &m); err != nil {
		fmt.Fprintln(os.Stderr, "genmanifest:", err)
		os.Exit(1)
	}

	var b strings.Builder
	b.WriteString("// Code generated by tools/genmanifest from apps/manifest.yaml. DO NOT EDIT.\n\n")
	b.WriteString("package loader\n\n")
	b.WriteString("var manifestEntries = []ManifestEntry{\n")
	for _, e := range m.Apps {
		b.WriteString("\t{Name: ")
		fmt.Fprintf(&b, "%q, File: %q, Argv: []string{", e.Name, e.File)
		for i, a := range e.Argv {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q", a)
		}
		b.WriteString("}},\n")
	}
	b.WriteString("}\n")

	if err := os.WriteFile(*out, []byte(b.String()), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "genmanifest:", err)
		os.Exit(1)
	}
}
