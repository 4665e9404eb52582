package indexer

import (
	"fmt"
	"strings"

	"github.com/stellar/go/strkey"
)

// ParseContractIDs validates contract strkeys (C...) and drops blanks and
// repeats, keeping input order.
func ParseContractIDs(inputs []string) ([]string, error) {
	ids := make([]string, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if _, err := strkey.Decode(strkey.VersionByteContract, input); err != nil {
			return nil, fmt.Errorf("invalid contract id %s: %w", input, err)
		}
		if _, ok := seen[input]; ok {
			continue
		}
		seen[input] = struct{}{}
		ids = append(ids, input)
	}
	return ids, nil
}
