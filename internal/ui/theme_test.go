package ui

import "testing"

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 2 {
		t.Fatalf("ThemeNames() returned %d names, want 2", len(names))
	}
	if names[0] != "Jamie" || names[1] != "Slate" {
		t.Fatalf("ThemeNames() = %v, want [Jamie Slate]", names)
	}
}

func TestNextTheme(t *testing.T) {
	if got := NextTheme("Jamie"); got != "Slate" {
		t.Fatalf("NextTheme(Jamie) = %q, want Slate", got)
	}
	if got := NextTheme("Slate"); got != "Jamie" {
		t.Fatalf("NextTheme(Slate) = %q, want Jamie", got)
	}
	if got := NextTheme("Unknown"); got != "Jamie" {
		t.Fatalf("NextTheme(Unknown) = %q, want Jamie", got)
	}
}

func TestGetTheme_FallsBackToJamie(t *testing.T) {
	if got := GetTheme("Slate").Name; got != "Slate" {
		t.Fatalf("GetTheme(Slate).Name = %q", got)
	}
	if got := GetTheme("Dracula").Name; got != "Jamie" {
		t.Fatalf("GetTheme(Dracula).Name = %q, want Jamie (fallback)", got)
	}
}

func TestThemesColorEveryTierAndJobState(t *testing.T) {
	keys := []string{"pending", "complete", "failed", "anonymous", "registered", "subscriber", "admin"}
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		for _, k := range keys {
			if th.StatusColors[k] == "" {
				t.Errorf("theme %s has no color for %q", name, k)
			}
		}
	}
}
