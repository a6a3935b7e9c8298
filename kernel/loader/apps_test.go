package loader

import "testing"

func TestAppsListsManifestNamesInOrder(t *testing.T) {
	names := Apps()
	if len(names) != len(manifestEntries) {
		t.Fatalf("Apps() returned %d names, want %d", len(names), len(manifestEntries))
	}
	for i, e := range manifestEntries {
		if names[i] != e.Name {
			t.Fatalf("Apps()[%d] = %q, want %q", i, names[i], e.Name)
		}
	}
}

func TestLookupReturnsDataAndArgvForKnownApp(t *testing.T) {
	data, argv, ok := Lookup("echo")
	if !ok {
		t.Fatal("Lookup(\"echo\") ok = false, want true")
	}
	if len(data) == 0 {
		t.Fatal("Lookup(\"echo\") returned empty data")
	}
	if len(argv) != 1 || argv[0] != "text" {
		t.Fatalf("Lookup(\"echo\") argv = %v, want [\"text\"]", argv)
	}
}

func TestLookupUnknownAppReturnsFalse(t *testing.T) {
	if _, _, ok := Lookup("no-such-app"); ok {
		t.Fatal("Lookup on an unknown name returned ok = true")
	}
}

func TestEveryManifestEntryResolvesToNonemptyData(t *testing.T) {
	for _, e := range manifestEntries {
		data, _, ok := Lookup(e.Name)
		if !ok {
			t.Fatalf("Lookup(%q) ok = false", e.Name)
		}
		if len(data) == 0 {
			t.Fatalf("Lookup(%q) returned empty data", e.Name)
		}
	}
}
