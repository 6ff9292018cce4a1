// Package idgen は食券の平文IDを生成する。
package idgen

import (
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"meal-stub-service/internal/domain"
)

const (
	// DefaultPrefix は既定のIDプレフィックス。
	DefaultPrefix = "MP"

	// MaxQuantity は5桁ゼロ埋めで表現できる最大数量。
	MaxQuantity = 99999

	sequenceWidth   = 5
	maxPrefixLength = 16
)

var prefixRegex = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ValidatePrefix はプレフィックスの形式を検証する。
// アンダースコアは区切り文字として予約している。
func ValidatePrefix(prefix string) error {
	if prefix == "" || len(prefix) > maxPrefixLength || !prefixRegex.MatchString(prefix) {
		return fmt.Errorf("%w: prefix %q must be 1-%d alphanumeric characters", domain.ErrInvalidArgument, prefix, maxPrefixLength)
	}
	return nil
}

// Generate は PREFIX_00001 から PREFIX_{quantity} までのIDを順に返すシーケンスを生成する。
// 結果は数量だけで決まり、何度rangeしても同じ値を返す。
func Generate(prefix string, quantity int) (iter.Seq[string], error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be a positive integer, got %d", domain.ErrInvalidArgument, quantity)
	}
	if quantity > MaxQuantity {
		return nil, fmt.Errorf("%w: quantity %d exceeds %d", domain.ErrRangeExceeded, quantity, MaxQuantity)
	}

	return func(yield func(string) bool) {
		for seq := 1; seq <= quantity; seq++ {
			if !yield(Format(prefix, seq)) {
				return
			}
		}
	}, nil
}

// Format は単一のIDを組み立てる。
func Format(prefix string, seq int) string {
	return fmt.Sprintf("%s_%0*d", prefix, sequenceWidth, seq)
}

// Parse はIDをプレフィックスと連番に分解する。
func Parse(id string) (prefix string, seq int, err error) {
	prefix, digits, ok := strings.Cut(id, "_")
	if !ok || len(digits) != sequenceWidth {
		return "", 0, fmt.Errorf("%w: malformed identifier %q", domain.ErrInvalidArgument, id)
	}
	if err := ValidatePrefix(prefix); err != nil {
		return "", 0, err
	}
	seq, err = strconv.Atoi(digits)
	if err != nil || seq < 1 {
		return "", 0, fmt.Errorf("%w: malformed identifier %q", domain.ErrInvalidArgument, id)
	}
	return prefix, seq, nil
}
