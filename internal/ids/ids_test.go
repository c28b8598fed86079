package ids

import "testing"

func TestNewIsSortableAndUnique(t *testing.T) {
	prev := New()
	seen := map[string]struct{}{prev: {}}
	for i := 0; i < 1000; i++ {
		next := New()
		if len(next) != 26 {
			t.Fatalf("expected 26 character ulid, got %q", next)
		}
		if next <= prev {
			t.Fatalf("ids not monotonic: %s <= %s", next, prev)
		}
		if _, dup := seen[next]; dup {
			t.Fatalf("duplicate id %s", next)
		}
		seen[next] = struct{}{}
		prev = next
	}
}
