package idgen

import (
	"errors"
	"regexp"
	"slices"
	"testing"

	"meal-stub-service/internal/domain"
)

func TestGenerate_Three(t *testing.T) {
	seq, err := Generate("MP", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := slices.Collect(seq)
	want := []string{"MP_00001", "MP_00002", "MP_00003"}
	if !slices.Equal(got, want) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestGenerate_DistinctAndShaped(t *testing.T) {
	shape := regexp.MustCompile(`^MP_\d{5}$`)

	for _, quantity := range []int{1, 2, 17, 1000} {
		seq, err := Generate("MP", quantity)
		if err != nil {
			t.Fatalf("quantity %d: unexpected error: %v", quantity, err)
		}

		seen := make(map[string]struct{})
		for id := range seq {
			if !shape.MatchString(id) {
				t.Errorf("quantity %d: id %q does not match shape", quantity, id)
			}
			seen[id] = struct{}{}
		}
		if len(seen) != quantity {
			t.Errorf("quantity %d: want %d distinct ids, got %d", quantity, quantity, len(seen))
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	first, err := Generate("MP", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Generate("MP", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := slices.Collect(first)
	b := slices.Collect(second)
	if !slices.Equal(a, b) {
		t.Error("expected identical sequences for the same quantity")
	}

	// 同じシーケンスを再度rangeしても同じ結果になる
	if again := slices.Collect(first); !slices.Equal(a, again) {
		t.Error("expected re-ranging to yield the same ids")
	}
}

func TestGenerate_EarlyStop(t *testing.T) {
	seq, err := Generate("MP", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []string
	for id := range seq {
		got = append(got, id)
		if len(got) == 2 {
			break
		}
	}
	if len(got) != 2 {
		t.Errorf("want 2 ids, got %d", len(got))
	}
}

func TestGenerate_InvalidQuantity(t *testing.T) {
	for _, quantity := range []int{0, -1} {
		_, err := Generate("MP", quantity)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("quantity %d: want ErrInvalidArgument, got %v", quantity, err)
		}
	}
}

func TestGenerate_RangeExceeded(t *testing.T) {
	if _, err := Generate("MP", MaxQuantity); err != nil {
		t.Errorf("quantity %d: unexpected error: %v", MaxQuantity, err)
	}

	_, err := Generate("MP", MaxQuantity+1)
	if !errors.Is(err, domain.ErrRangeExceeded) {
		t.Errorf("want ErrRangeExceeded, got %v", err)
	}
}

func TestGenerate_InvalidPrefix(t *testing.T) {
	for _, prefix := range []string{"", "M_P", "MP!", "ABCDEFGHIJKLMNOPQ"} {
		_, err := Generate(prefix, 1)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("prefix %q: want ErrInvalidArgument, got %v", prefix, err)
		}
	}
}

func TestParse(t *testing.T) {
	prefix, seq, err := Parse("MP_00042")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prefix != "MP" || seq != 42 {
		t.Errorf("want (MP, 42), got (%s, %d)", prefix, seq)
	}

	for _, id := range []string{"MP00042", "MP_42", "MP_0004x", "MP_00000", "_00001"} {
		if _, _, err := Parse(id); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("Parse(%q): want ErrInvalidArgument, got %v", id, err)
		}
	}
}
