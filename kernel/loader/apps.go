// Package loader holds the embedded user-program archive the kernel links
// directly into its own text: one image file per app plus a manifest naming
// them and the argv each is permitted to receive. The images bundled under
// apps/ are 16-byte placeholders holding only the ELF identification bytes;
// they are not complete ELF64 programs and elf.Parse rejects them. Grounded
// on spec.md §1's "embedded user-program image archive (list_apps /
// get_app_data_by_name)" and original_source's callers of those two
// functions (kernel/src/syscall/syscall.rs's sys_exec, kernel/src/task/
// mod.rs's initial task construction), neither of which had its own
// defining source retrieved into the pack -- this package is authored from
// their call sites and spec.md's description rather than transliterated.
package loader

import "embed"

//go:embed apps/*.bin
var appFS embed.FS

// App is one archive entry: its name, the argv the manifest permits it to
// run with, and its raw ELF64 image bytes.
type App struct {
	Name string
	Argv []string
	Data []byte
}

var (
	apps   []App
	byName map[string]*App
)

func init() {
	loadArchive()
}

// loadArchive reads each file manifestEntries names out of appFS,
// building the apps slice and byName index. Panics on a missing file --
// the archive is baked in at build time, so that is a build-time defect,
// not a runtime condition callers can recover from.
func loadArchive() {
	apps = make([]App, 0, len(manifestEntries))
	byName = make(map[string]*App, len(manifestEntries))
	for _, e := range manifestEntries {
		data, err := appFS.ReadFile("apps/" + e.File)
		if err != nil {
			panic("loader: manifest names missing file " + e.File + ": " + err.Error())
		}
		apps = append(apps, App{Name: e.Name, Argv: e.Argv, Data: data})
	}
	for i := range apps {
		byName[apps[i].Name] = &apps[i]
	}
}

// Apps returns the archive's app names, in manifest order. The
// original_source equivalent is list_apps().
func Apps() []string {
	names := make([]string, len(apps))
	for i, a := range apps {
		names[i] = a.Name
	}
	return names
}

// Lookup returns the named app's image bytes and permitted argv, or
// ok=false if no such app is in the archive. The original_source
// equivalent is get_app_data_by_name(name).
func Lookup(name string) (data []byte, argv []string, ok bool) {
	a, found := byName[name]
	if !found {
		return nil, nil, false
	}
	return a.Data, a.Argv, true
}
