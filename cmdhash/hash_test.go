package cmdhash

import "testing"

func buildHash(args []string, cwd string, env map[string]string, redirect string) Hash {
	var b Builder
	for _, a := range args {
		b.Argument(ArgOwned, a)
	}
	b.WorkingDirectory(cwd)
	for k, v := range env {
		b.Env(k, v)
	}
	if redirect != "" {
		b.Redirect(redirect)
	}
	return b.Sum()
}

// TestDeterminism: identical commands hash identically, regardless of
// environment map insertion order.
func TestDeterminism(t *testing.T) {
	args := []string{"cc", "-c", "a.c"}
	env1 := map[string]string{"PATH": "/bin", "CC": "gcc"}
	env2 := map[string]string{"CC": "gcc", "PATH": "/bin"}

	h1 := buildHash(args, "/work", env1, "")
	h2 := buildHash(args, "/work", env2, "")
	if h1 != h2 {
		t.Fatalf("env order changed hash: %v != %v", h1, h2)
	}

	// repeated build is stable
	h3 := buildHash(args, "/work", env1, "")
	if h1 != h3 {
		t.Fatalf("hash not stable across calls")
	}
}

// TestSensitivity: any observable change to argv, cwd, env, or
// redirection changes the hash.
func TestSensitivity(t *testing.T) {
	base := buildHash([]string{"cc", "-c", "a.c"}, "/work", map[string]string{"CC": "gcc"}, "")

	variants := []Hash{
		buildHash([]string{"cc", "-c", "b.c"}, "/work", map[string]string{"CC": "gcc"}, ""),
		buildHash([]string{"cc", "-c", "a.c"}, "/other", map[string]string{"CC": "gcc"}, ""),
		buildHash([]string{"cc", "-c", "a.c"}, "/work", map[string]string{"CC": "clang"}, ""),
		buildHash([]string{"cc", "-c", "a.c"}, "/work", map[string]string{"CC": "gcc"}, "/tmp/out"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d did not change the hash", i)
		}
	}
}

// TestArgKindMatters: a path argument and a plain string argument with
// the same text must not collide.
func TestArgKindMatters(t *testing.T) {
	var b1, b2 Builder
	b1.Argument(ArgOwned, "foo")
	b2.Argument(ArgPath, "foo")
	if b1.Sum() == b2.Sum() {
		t.Fatal("argument kind did not affect hash")
	}
}
