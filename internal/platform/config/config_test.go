package config

import (
	"testing"
	"time"

	"alertrecon/internal/platform/testkit"
)

func TestPrefixComposition(t *testing.T) {
	t.Setenv("ENGINE_BATCH_SIZE", "25")

	root := New()
	if got := root.Prefix("ENGINE_").MayInt("BATCH_SIZE", 1); got != 25 {
		t.Fatalf("MayInt = %d, want 25", got)
	}
	// nested prefixes stack
	t.Setenv("A_B_KEY", "v")
	if got := root.Prefix("A_").Prefix("B_").MayString("KEY", ""); got != "v" {
		t.Fatalf("nested prefix = %q, want v", got)
	}
}

func TestMustStringPanicsWhenMissing(t *testing.T) {
	testkit.MustPanic(t, func() {
		New().MustString("DEFINITELY_NOT_SET_9321")
	})
}

func TestMustPortValidates(t *testing.T) {
	t.Setenv("API_PORT", "4600")
	if got := New().Prefix("API_").MustPort("PORT"); got != ":4600" {
		t.Fatalf("MustPort = %q", got)
	}

	t.Setenv("API_PORT", "99999")
	testkit.MustPanic(t, func() {
		New().Prefix("API_").MustPort("PORT")
	})
}

func TestMayDefaults(t *testing.T) {
	c := New().Prefix("UNSET_")
	if got := c.MayString("X", "fallback"); got != "fallback" {
		t.Fatalf("MayString = %q", got)
	}
	if got := c.MayInt("X", 7); got != 7 {
		t.Fatalf("MayInt = %d", got)
	}
	if got := c.MayBool("X", true); got != true {
		t.Fatalf("MayBool = %v", got)
	}
	if got := c.MayDuration("X", time.Minute); got != time.Minute {
		t.Fatalf("MayDuration = %v", got)
	}
}

func TestMayInvalidFallsBack(t *testing.T) {
	t.Setenv("BAD_INT", "not-a-number")
	t.Setenv("BAD_BOOL", "not-a-bool")
	t.Setenv("BAD_DUR", "soon")

	c := New()
	if got := c.MayInt("BAD_INT", 3); got != 3 {
		t.Fatalf("MayInt = %d, want fallback", got)
	}
	if got := c.MayBool("BAD_BOOL", true); !got {
		t.Fatal("MayBool fell through fallback")
	}
	if got := c.MayDuration("BAD_DUR", time.Second); got != time.Second {
		t.Fatalf("MayDuration = %v, want fallback", got)
	}
}

func TestMayCSV(t *testing.T) {
	t.Setenv("FILTER_DOMAINS", " gtbank.com , zenithbank.com ,, ")
	got := New().Prefix("FILTER_").MayCSV("DOMAINS", nil)
	if len(got) != 2 || got[0] != "gtbank.com" || got[1] != "zenithbank.com" {
		t.Fatalf("MayCSV = %v", got)
	}
	if def := New().MayCSV("FILTER_UNSET", []string{"x"}); len(def) != 1 || def[0] != "x" {
		t.Fatalf("MayCSV default = %v", def)
	}
}
