package loader

//go:generate go run ../../tools/genmanifest -in apps/manifest.yaml -out manifest_gen.go

// ManifestEntry is one line of apps/manifest.yaml: an app's name, the
// archive-relative file holding its ELF64 image, and the argv strings it
// is permitted to be invoked with. manifestEntries (manifest_gen.go) is
// generated from apps/manifest.yaml by tools/genmanifest at build time --
// the freestanding kernel binary itself never parses YAML, only the host
// build step that produces manifest_gen.go does.
type ManifestEntry struct {
	Name string
	File string
	Argv []string
}
